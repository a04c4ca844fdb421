package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/reportsummary/reportsummary/internal/reports"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
)

// MemoryRepo keeps collections in process and evaluates the report
// pipelines in Go with the same semantics as MongoRepo. It backs the
// service when no MONGODB_URI is configured and is used by unit tests.
type MemoryRepo struct {
	mu          sync.RWMutex
	collections map[string][]bson.M
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{collections: make(map[string][]bson.M)}
}

// InsertMany appends docs to collection. Like the driver, it rejects the
// whole batch when an element is not a document.
func (m *MemoryRepo) InsertMany(ctx context.Context, collection string, docs []interface{}) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	batch := make([]bson.M, 0, len(docs))
	for i, d := range docs {
		var doc bson.M
		switch v := d.(type) {
		case bson.M:
			doc = v
		case map[string]interface{}:
			doc = bson.M(v)
		default:
			return 0, fmt.Errorf("insert %s: document %d is %T, not an object", collection, i, d)
		}
		cp := make(bson.M, len(doc))
		for k, val := range doc {
			cp[k] = val
		}
		batch = append(batch, cp)
	}
	m.mu.Lock()
	m.collections[collection] = append(m.collections[collection], batch...)
	m.mu.Unlock()
	return len(batch), nil
}

// Documents returns a snapshot of a collection.
func (m *MemoryRepo) Documents(collection string) []bson.M {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]bson.M, len(m.collections[collection]))
	copy(out, m.collections[collection])
	return out
}

func (m *MemoryRepo) Ping(ctx context.Context) error {
	return ctx.Err()
}

type monthKey struct {
	year  int
	month int
}

func (m *MemoryRepo) CustomerCohorts(ctx context.Context) ([]reports.CustomerCohort, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	groups := map[monthKey]*reports.CustomerCohort{}
	for _, doc := range m.Documents(reports.CustomersCollection) {
		created, ok := reports.CreatedDate(doc)
		if !ok {
			continue
		}
		k := monthKey{created.Year(), int(created.Month())}
		g, ok := groups[k]
		if !ok {
			g = &reports.CustomerCohort{Year: k.year, Month: k.month}
			groups[k] = g
		}
		g.TotalCount++
		if reports.IsTrue(doc, "enabled") {
			g.EnabledCount++
		}
		if reports.IsTrue(doc, "removed") {
			g.RemovedCount++
		}
	}
	out := make([]reports.CustomerCohort, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out, nil
}

func (m *MemoryRepo) QueryStatusCounts(ctx context.Context) ([]reports.QueryStatusCount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	index := map[string]int{}
	out := []reports.QueryStatusCount{}
	for _, doc := range m.Documents(reports.QueriesCollection) {
		status := reports.Status(doc)
		key := reports.StatusKey(status)
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, reports.QueryStatusCount{Status: status})
		}
		out[i].Count++
	}
	return out, nil
}

type invoiceAcc struct {
	bucket reports.InvoiceBucket
	sum    decimal.Decimal
}

func (m *MemoryRepo) invoiceTotals(ctx context.Context, byStatus bool) ([]reports.InvoiceBucket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	groups := map[string]*invoiceAcc{}
	for _, doc := range m.Documents(reports.InvoicesCollection) {
		if !reports.NotRemoved(doc) {
			continue
		}
		created, ok := reports.CreatedDate(doc)
		if !ok {
			continue
		}
		b := reports.InvoiceBucket{Year: created.Year(), Month: int(created.Month())}
		key := fmt.Sprintf("%d-%02d", b.Year, b.Month)
		if byStatus {
			b.Status = reports.Status(doc)
			b.HasStatus = true
			key += "|" + reports.StatusKey(b.Status)
		}
		acc, ok := groups[key]
		if !ok {
			acc = &invoiceAcc{bucket: b, sum: decimal.Zero}
			groups[key] = acc
		}
		acc.bucket.InvoiceCount++
		if total, ok := reports.Total(doc); ok {
			acc.sum = acc.sum.Add(decimal.NewFromFloat(total))
		}
	}
	out := make([]reports.InvoiceBucket, 0, len(groups))
	for _, acc := range groups {
		acc.bucket.TotalAmount = acc.sum.InexactFloat64()
		out = append(out, acc.bucket)
	}
	reports.SortInvoiceBuckets(out)
	return out, nil
}

func (m *MemoryRepo) InvoiceMonthlyTotals(ctx context.Context) ([]reports.InvoiceBucket, error) {
	return m.invoiceTotals(ctx, false)
}

func (m *MemoryRepo) InvoiceStatusTotals(ctx context.Context) ([]reports.InvoiceBucket, error) {
	return m.invoiceTotals(ctx, true)
}

// QueryOverview counts queries whose removed flag is explicitly false.
func (m *MemoryRepo) QueryOverview(ctx context.Context) (*reports.QueryOverview, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ov := &reports.QueryOverview{}
	for _, doc := range m.Documents(reports.QueriesCollection) {
		if removed, ok := doc["removed"].(bool); !ok || removed {
			continue
		}
		ov.TotalQueries++
		switch doc["status"] {
		case reports.StatusOpen:
			ov.OpenQueries++
		case reports.StatusInProgress:
			ov.InProgressQueries++
		case reports.StatusClosed:
			ov.ClosedQueries++
		}
		switch doc["priority"] {
		case reports.PriorityHigh:
			ov.HighPriorityQueries++
		case reports.PriorityCritical:
			ov.CriticalPriorityQueries++
		}
	}
	return ov, nil
}
