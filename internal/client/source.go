package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"baseball_db/ingestion/internal/catalog"
	"baseball_db/ingestion/internal/pacing"
	"baseball_db/ingestion/internal/pull"
	"baseball_db/ingestion/internal/tabular"
)

// Endpoint is a provider URL template. Path and Params may reference
// {period}, {year}, {start}, {end} and {page}.
type Endpoint struct {
	Path        string
	Params      map[string]string
	Format      string
	RecordsPath string
}

// EndpointFromConfig builds an endpoint from a catalog source entry
func EndpointFromConfig(sc catalog.SourceConfig) Endpoint {
	return Endpoint{
		Path:        sc.URL,
		Params:      sc.Params,
		Format:      sc.Format,
		RecordsPath: sc.RecordsPath,
	}
}

// render substitutes the request arguments into the template. page is
// ignored when zero.
func render(tmpl string, req pull.Request, page int) string {
	if !strings.Contains(tmpl, "{") {
		return tmpl
	}

	key := req.Period.String()
	year := key
	if len(year) > 4 {
		year = year[:4]
	}
	var start, end string
	if !req.Range.Start.IsZero() {
		start = req.Range.StartDate()
		end = req.Range.EndDate()
	}
	var pageStr string
	if page > 0 {
		pageStr = strconv.Itoa(page)
	}

	return strings.NewReplacer(
		"{period}", key,
		"{year}", year,
		"{start}", start,
		"{end}", end,
		"{page}", pageStr,
	).Replace(tmpl)
}

// FetchTable renders the endpoint for a request and decodes the response
func (c *Client) FetchTable(ctx context.Context, ep Endpoint, req pull.Request, page int) (*tabular.Table, error) {
	path := render(ep.Path, req, page)
	params := make(map[string]string, len(ep.Params))
	for k, v := range ep.Params {
		params[k] = render(v, req, page)
	}

	accept := "text/csv"
	if ep.Format == "json" {
		accept = "application/json"
	}

	body, err := c.get(ctx, path, params, accept)
	if err != nil {
		return nil, err
	}

	switch ep.Format {
	case "json":
		return decodeJSON(body, ep.RecordsPath)
	case "tsv":
		return decodeDelimited(body, '\t')
	default:
		return decodeDelimited(body, ',')
	}
}

func decodeDelimited(body []byte, sep rune) (*tabular.Table, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return tabular.New(), nil
	}
	t, err := tabular.Read(bytes.NewReader(body), sep, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return t, nil
}

func decodeJSON(body []byte, recordsPath string) (*tabular.Table, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if recordsPath != "" {
		for _, key := range strings.Split(recordsPath, ".") {
			obj, ok := doc.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("records path %q: %q is not an object", recordsPath, key)
			}
			doc = obj[key]
		}
	}

	if doc == nil {
		return tabular.New(), nil
	}
	items, ok := doc.([]interface{})
	if !ok {
		return nil, fmt.Errorf("expected an array of records, got %T", doc)
	}

	records := make([]map[string]interface{}, 0, len(items))
	for i, item := range items {
		rec, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("record %d is %T, not an object", i, item)
		}
		records = append(records, rec)
	}
	return tabular.FromRecords(records), nil
}

// Source builds the pull.Source a catalog entry describes. Paged sources
// pause with pacer between pages.
func (c *Client) Source(sc catalog.SourceConfig, pacer pacing.Pacer) pull.Source {
	ep := EndpointFromConfig(sc)

	if sc.Strategy == catalog.StrategyPaged {
		return pull.Paged{
			Page: func(ctx context.Context, req pull.Request, page int) (*tabular.Table, error) {
				return c.FetchTable(ctx, ep, req, page)
			},
			MaxPages: sc.MaxPages,
			Pacer:    pacer,
		}
	}

	return pull.FetchFunc(func(ctx context.Context, req pull.Request) (*tabular.Table, error) {
		return c.FetchTable(ctx, ep, req, 0)
	})
}
