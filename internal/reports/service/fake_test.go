package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/reportsummary/reportsummary/internal/reports"
	"github.com/reportsummary/reportsummary/internal/reports/repository"
	"go.mongodb.org/mongo-driver/mongo"
)

// failingRepo wraps a MemoryRepo and fails selected operations.
type failingRepo struct {
	*repository.MemoryRepo
	failInvoices   bool
	failQueries    bool
	failInsertInto string
}

var errStore = errors.New("store exploded")

func (f *failingRepo) QueryStatusCounts(ctx context.Context) ([]reports.QueryStatusCount, error) {
	if f.failQueries {
		return nil, errStore
	}
	return f.MemoryRepo.QueryStatusCounts(ctx)
}

func (f *failingRepo) InvoiceStatusTotals(ctx context.Context) ([]reports.InvoiceBucket, error) {
	if f.failInvoices {
		return nil, errStore
	}
	return f.MemoryRepo.InvoiceStatusTotals(ctx)
}

func (f *failingRepo) InsertMany(ctx context.Context, collection string, docs []interface{}) (int, error) {
	if collection == f.failInsertInto {
		return 0, errStore
	}
	return f.MemoryRepo.InsertMany(ctx, collection, docs)
}

type fakeArchiver struct {
	mu       sync.Mutex
	payloads [][]byte
	err      error
}

func (a *fakeArchiver) ArchivePayload(ctx context.Context, payload []byte, receivedAt time.Time) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return "", a.err
	}
	a.payloads = append(a.payloads, payload)
	return "webhooks/test.json", nil
}

type downProvider struct{}

func (downProvider) Database(context.Context) (*mongo.Database, error) {
	return nil, fmt.Errorf("%w: dial tcp: connection refused", reports.ErrConnection)
}
