package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/reportsummary/reportsummary/internal/reports"
	"github.com/reportsummary/reportsummary/internal/reports/repository"
	"github.com/reportsummary/reportsummary/pkg/metrics"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestIngestor(repo repository.Repository, opts ...Option) *Ingestor {
	return NewIngestor(repo, append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)...)
}

func TestIngest_SkipsNonArrayBatch(t *testing.T) {
	repo := repository.NewMemoryRepo()
	ing := newTestIngestor(repo)
	before := testutil.ToFloat64(metrics.IngestWarnings.WithLabelValues("batch_not_array"))

	res, err := ing.Ingest(context.Background(), map[string]interface{}{
		"foo": []interface{}{map[string]interface{}{"a": 1}},
		"bar": "not-an-array",
	})
	require.NoError(t, err)
	require.Equal(t, map[string]reports.InsertResult{"foo": {InsertedCount: 1}}, res)

	docs := repo.Documents("foo")
	require.Len(t, docs, 1)
	require.Equal(t, 1, docs[0]["a"])
	require.Equal(t, fixedNow, docs[0]["created"])
	require.Equal(t, fixedNow, docs[0]["updated"])
	require.Empty(t, repo.Documents("bar"))
	require.Equal(t, before+1, testutil.ToFloat64(metrics.IngestWarnings.WithLabelValues("batch_not_array")))
}

func TestIngest_TopLevelShapeRejected(t *testing.T) {
	ing := newTestIngestor(repository.NewMemoryRepo())
	for _, payload := range []interface{}{
		[]interface{}{map[string]interface{}{"a": 1}},
		"scalar",
		42.0,
		nil,
	} {
		_, err := ing.Ingest(context.Background(), payload)
		require.True(t, errors.Is(err, reports.ErrInvalidPayload), "payload %v", payload)
		require.Equal(t, "Invalid webhook data format", err.Error())
	}
}

func TestIngest_TimestampRules(t *testing.T) {
	repo := repository.NewMemoryRepo()
	ing := newTestIngestor(repo)
	_, err := ing.Ingest(context.Background(), map[string]interface{}{
		"clients": []interface{}{
			map[string]interface{}{"name": "kept", "created": "2020-05-01T00:00:00Z", "updated": "2020-05-02T00:00:00Z"},
			map[string]interface{}{"name": "empty", "created": ""},
			map[string]interface{}{"name": "missing"},
		},
	})
	require.NoError(t, err)

	docs := repo.Documents("clients")
	require.Len(t, docs, 3)
	byName := map[string]map[string]interface{}{}
	for _, d := range docs {
		byName[d["name"].(string)] = d
	}
	require.Equal(t, "2020-05-01T00:00:00Z", byName["kept"]["created"])
	// updated is always overwritten with the shared ingestion instant
	for _, d := range docs {
		require.Equal(t, fixedNow, d["updated"])
	}
	require.Equal(t, fixedNow, byName["empty"]["created"])
	require.Equal(t, fixedNow, byName["missing"]["created"])
}

func TestIngest_DoesNotMutateInput(t *testing.T) {
	ing := newTestIngestor(repository.NewMemoryRepo())
	rec := map[string]interface{}{"a": 1}
	_, err := ing.Ingest(context.Background(), map[string]interface{}{"foo": []interface{}{rec}})
	require.NoError(t, err)
	require.NotContains(t, rec, "created")
	require.NotContains(t, rec, "updated")
}

func TestIngest_InvalidRecordPassesThrough(t *testing.T) {
	repo := &failingRepo{MemoryRepo: repository.NewMemoryRepo()}
	ing := newTestIngestor(repo)
	// the record reaches the store unchanged, and the store refuses it
	_, err := ing.Ingest(context.Background(), map[string]interface{}{
		"foo": []interface{}{map[string]interface{}{"a": 1}, "primitive"},
	})
	require.Error(t, err)
	require.Empty(t, repo.Documents("foo"))
}

func TestIngest_InsertErrorAbortsWithoutRollback(t *testing.T) {
	mem := repository.NewMemoryRepo()
	repo := &failingRepo{MemoryRepo: mem, failInsertInto: "b"}
	ing := newTestIngestor(repo)

	res, err := ing.Ingest(context.Background(), map[string]interface{}{
		"a": []interface{}{map[string]interface{}{"n": 1}},
		"b": []interface{}{map[string]interface{}{"n": 2}},
		"c": []interface{}{map[string]interface{}{"n": 3}},
	})
	require.Nil(t, res)
	require.True(t, errors.Is(err, errStore))
	// batches run in key order: a is kept, c is never reached
	require.Len(t, mem.Documents("a"), 1)
	require.Empty(t, mem.Documents("c"))
}

func TestIngest_EmptyBatch(t *testing.T) {
	ing := newTestIngestor(repository.NewMemoryRepo())
	res, err := ing.Ingest(context.Background(), map[string]interface{}{"foo": []interface{}{}})
	require.NoError(t, err)
	require.Equal(t, 0, res["foo"].InsertedCount)
}

func TestIngest_Archive(t *testing.T) {
	arch := &fakeArchiver{}
	ing := newTestIngestor(repository.NewMemoryRepo(), WithArchiver(arch))
	_, err := ing.Ingest(context.Background(), map[string]interface{}{"foo": []interface{}{map[string]interface{}{"a": 1}}})
	require.NoError(t, err)
	require.Len(t, arch.payloads, 1)
	require.JSONEq(t, `{"foo":[{"a":1}]}`, string(arch.payloads[0]))

	// a failing archive never fails ingestion
	failing := &fakeArchiver{err: errors.New("bucket gone")}
	ing = newTestIngestor(repository.NewMemoryRepo(), WithArchiver(failing))
	res, err := ing.Ingest(context.Background(), map[string]interface{}{"foo": []interface{}{map[string]interface{}{"a": 1}}})
	require.NoError(t, err)
	require.Equal(t, 1, res["foo"].InsertedCount)
}

func TestIngest_CountsInsertedDocuments(t *testing.T) {
	ing := newTestIngestor(repository.NewMemoryRepo())
	before := testutil.ToFloat64(metrics.IngestedDocuments.WithLabelValues("metrics_probe"))
	_, err := ing.Ingest(context.Background(), map[string]interface{}{
		"metrics_probe": []interface{}{map[string]interface{}{}, map[string]interface{}{}},
	})
	require.NoError(t, err)
	require.Equal(t, before+2, testutil.ToFloat64(metrics.IngestedDocuments.WithLabelValues("metrics_probe")))
}
