package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordFetch(t *testing.T) {
	before := testutil.ToFloat64(FetchesTotal.WithLabelValues("metrics_test", "success"))

	RecordFetch("metrics_test", "success", 1.5, 120)
	RecordFetch("metrics_test", "failed", 0.2, 0)

	assert.Equal(t, before+1, testutil.ToFloat64(FetchesTotal.WithLabelValues("metrics_test", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(FetchesTotal.WithLabelValues("metrics_test", "failed")))
	assert.Equal(t, 120.0, testutil.ToFloat64(FetchedRows.WithLabelValues("metrics_test")))
}

func TestRecordCoverage(t *testing.T) {
	RecordCoverage("coverage_test", 10, 3)

	assert.Equal(t, 10.0, testutil.ToFloat64(CoveredPeriods.WithLabelValues("coverage_test")))
	assert.Equal(t, 3.0, testutil.ToFloat64(OutstandingPeriods.WithLabelValues("coverage_test")))
}

func TestRecordRemoved_IgnoresZero(t *testing.T) {
	RecordRemoved("removed_test", "malformed", 0)
	RecordRemoved("removed_test", "invalidated", 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(FilesRemovedTotal.WithLabelValues("removed_test", "invalidated")))
}

func TestRecordRun_SetsLastSuccess(t *testing.T) {
	RecordRun("run_test", "success", 12)

	assert.Equal(t, 1.0, testutil.ToFloat64(RunsTotal.WithLabelValues("run_test", "success")))
	assert.Greater(t, testutil.ToFloat64(LastSuccessfulRun.WithLabelValues("run_test")), 0.0)
}
