package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/reportsummary/reportsummary/internal/reports"
	"github.com/reportsummary/reportsummary/internal/reports/repository"
	"github.com/reportsummary/reportsummary/pkg/logger"
	"github.com/reportsummary/reportsummary/pkg/metrics"
)

// Archiver keeps a copy of raw webhook payloads. *storage.MinIOStorage implements it.
type Archiver interface {
	ArchivePayload(ctx context.Context, payload []byte, receivedAt time.Time) (string, error)
}

// Ingestor writes webhook batches into the collections named by their keys.
//
// Normalization is lenient per batch and per record: a batch that is not an
// array is skipped and a record that is not an object is passed through
// as is. Storage is strict: the first failed insert aborts the call, and
// collections written before it keep their documents.
type Ingestor struct {
	repo     repository.Repository
	archiver Archiver
	now      func() time.Time
	log      *logger.Logger
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithArchiver makes the Ingestor archive each accepted payload before inserting it.
func WithArchiver(a Archiver) Option {
	return func(i *Ingestor) { i.archiver = a }
}

// WithClock replaces the wall clock used for created/updated stamps.
func WithClock(now func() time.Time) Option {
	return func(i *Ingestor) { i.now = now }
}

func NewIngestor(repo repository.Repository, opts ...Option) *Ingestor {
	i := &Ingestor{repo: repo, now: time.Now, log: logger.New("IntegrationService")}
	for _, o := range opts {
		o(i)
	}
	return i
}

// Ingest stores every batch of payload and returns the inserted count per
// collection. payload must be a JSON object whose values are arrays of records.
func (i *Ingestor) Ingest(ctx context.Context, payload interface{}) (map[string]reports.InsertResult, error) {
	i.log.Infof("Handling webhook request")
	batches, ok := payload.(map[string]interface{})
	if !ok || batches == nil {
		i.log.Errorf("Invalid webhook data format")
		return nil, reports.ErrInvalidPayload
	}

	now := i.now().UTC()
	i.archive(ctx, payload, now)

	names := make([]string, 0, len(batches))
	for name := range batches {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make(map[string]reports.InsertResult, len(names))
	for _, name := range names {
		records, ok := batches[name].([]interface{})
		if !ok {
			i.log.Warnf("Skipping collection %q because data is not an array", name)
			metrics.IngestWarnings.WithLabelValues("batch_not_array").Inc()
			continue
		}

		docs := make([]interface{}, 0, len(records))
		for _, rec := range records {
			docs = append(docs, i.normalize(rec, now))
		}

		n, err := i.repo.InsertMany(ctx, name, docs)
		if err != nil {
			i.log.Errorf("Error processing webhook: %v", err)
			return nil, fmt.Errorf("ingest %q: %w", name, err)
		}
		results[name] = reports.InsertResult{InsertedCount: n}
		metrics.IngestedDocuments.WithLabelValues(name).Add(float64(n))
		i.log.Infof("Inserted %d documents into collection %q", n, name)
	}
	return results, nil
}

// normalize stamps an object record with created (when missing) and
// updated. Anything else is returned unchanged.
func (i *Ingestor) normalize(rec interface{}, now time.Time) interface{} {
	obj, ok := rec.(map[string]interface{})
	if !ok || obj == nil {
		i.log.Warnf("Skipping invalid document: %s", describe(rec))
		metrics.IngestWarnings.WithLabelValues("invalid_record").Inc()
		return rec
	}
	doc := make(map[string]interface{}, len(obj)+2)
	for k, v := range obj {
		doc[k] = v
	}
	if reports.IsMissingCreated(doc) {
		doc["created"] = now
	}
	doc["updated"] = now
	return doc
}

func (i *Ingestor) archive(ctx context.Context, payload interface{}, now time.Time) {
	if i.archiver == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		i.log.Warnf("Could not encode webhook payload for archiving: %v", err)
		return
	}
	key, err := i.archiver.ArchivePayload(ctx, raw, now)
	if err != nil {
		i.log.Warnf("Could not archive webhook payload: %v", err)
		return
	}
	i.log.Debugf("Archived webhook payload as %s", key)
}

func describe(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
