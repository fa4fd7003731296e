package pull

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"baseball_db/ingestion/internal/period"

	"github.com/jszwec/csvutil"
)

// ManifestFile records what the fetcher wrote into a period directory. It has
// no "tsv" infix, so coverage resolution never treats it as a period file.
const ManifestFile = "_manifest.csv"

// ManifestEntry is the sentinel written after a period file lands on disk.
type ManifestEntry struct {
	Period    string    `csv:"period"`
	Rows      int       `csv:"rows"`
	Bytes     int64     `csv:"bytes"`
	WrittenAt time.Time `csv:"written_at"`
}

// Manifest maps a period to its last recorded write.
type Manifest map[period.Period]ManifestEntry

// ReadManifest loads the manifest of dir; a missing file is an empty manifest.
func ReadManifest(dir string) (Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if errors.Is(err, os.ErrNotExist) {
		return Manifest{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	if len(data) == 0 {
		return Manifest{}, nil
	}

	var entries []ManifestEntry
	if err := csvutil.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}

	m := make(Manifest, len(entries))
	for _, e := range entries {
		m[period.Period(e.Period)] = e
	}
	return m, nil
}

// Matches reports whether the file at path is the one the manifest recorded.
func (m Manifest) Matches(p period.Period, path string) bool {
	entry, ok := m[p]
	if !ok {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Size() == entry.Bytes
}

// Write stores the manifest in dir, replacing the previous one atomically.
func (m Manifest) Write(dir string) error {
	entries := make([]ManifestEntry, 0, len(m))
	for _, e := range m {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Period < entries[j].Period })

	data, err := csvutil.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	tmp := filepath.Join(dir, "."+ManifestFile+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, ManifestFile)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move manifest into place: %w", err)
	}
	return nil
}

// recordManifest adds or replaces the entry for the period file at path.
func recordManifest(dir string, p period.Period, path string, rows int) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	m, err := ReadManifest(dir)
	if err != nil {
		return err
	}
	m[p] = ManifestEntry{
		Period:    p.String(),
		Rows:      rows,
		Bytes:     info.Size(),
		WrittenAt: time.Now().UTC(),
	}
	return m.Write(dir)
}
