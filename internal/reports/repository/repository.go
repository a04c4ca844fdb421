package repository

import (
	"context"

	"github.com/reportsummary/reportsummary/internal/reports"
)

// Repository is the store boundary of the reporting service. Read methods
// compute one report shape each; InsertMany appends documents to a
// collection, creating it when absent.
type Repository interface {
	CustomerCohorts(ctx context.Context) ([]reports.CustomerCohort, error)
	QueryStatusCounts(ctx context.Context) ([]reports.QueryStatusCount, error)
	InvoiceMonthlyTotals(ctx context.Context) ([]reports.InvoiceBucket, error)
	InvoiceStatusTotals(ctx context.Context) ([]reports.InvoiceBucket, error)
	QueryOverview(ctx context.Context) (*reports.QueryOverview, error)
	InsertMany(ctx context.Context, collection string, docs []interface{}) (int, error)
	Ping(ctx context.Context) error
}
