package service

import (
	"context"
	"fmt"
	"time"

	"github.com/reportsummary/reportsummary/internal/reports"
	"github.com/reportsummary/reportsummary/internal/reports/repository"
	"github.com/reportsummary/reportsummary/pkg/logger"
	"github.com/reportsummary/reportsummary/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// Engine runs the read-only report pipelines. Every call recomputes its
// result from the store; a failing pipeline fails the whole call.
type Engine struct {
	repo repository.Repository
	log  *logger.Logger
}

func NewEngine(repo repository.Repository) *Engine {
	return &Engine{repo: repo, log: logger.New("ReportEngine")}
}

// observe times one pipeline and wraps its error in ErrAggregation.
func observe(pipeline string, fn func() error) error {
	start := time.Now()
	err := fn()
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.AggregationDuration.WithLabelValues(pipeline, outcome).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("%w: %s: %w", reports.ErrAggregation, pipeline, err)
	}
	return nil
}

// CustomerGrowth returns customer cohorts by creation month.
func (e *Engine) CustomerGrowth(ctx context.Context) ([]reports.CustomerCohort, error) {
	e.log.Infof("Fetching customer cohorts")
	var out []reports.CustomerCohort
	err := observe("customer_cohorts", func() error {
		var err error
		out, err = e.repo.CustomerCohorts(ctx)
		return err
	})
	if err != nil {
		e.log.Errorf("Error fetching customers: %v", err)
		return nil, err
	}
	return out, nil
}

// Invoices returns month header rows and per-status rows merged into one
// sorted sequence. Both shapes are fetched concurrently.
func (e *Engine) Invoices(ctx context.Context) ([]reports.InvoiceBucket, error) {
	var monthly, byStatus []reports.InvoiceBucket
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return observe("invoice_monthly", func() error {
			var err error
			monthly, err = e.repo.InvoiceMonthlyTotals(gctx)
			return err
		})
	})
	g.Go(func() error {
		return observe("invoice_status", func() error {
			var err error
			byStatus, err = e.repo.InvoiceStatusTotals(gctx)
			return err
		})
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports.MergeInvoiceBuckets(monthly, byStatus), nil
}

// Summary returns the query status distribution and the invoice report together.
func (e *Engine) Summary(ctx context.Context) (*reports.Summary, error) {
	e.log.Infof("Fetching summary data")
	var (
		queries  []reports.QueryStatusCount
		invoices []reports.InvoiceBucket
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return observe("query_status", func() error {
			var err error
			queries, err = e.repo.QueryStatusCounts(gctx)
			return err
		})
	})
	g.Go(func() error {
		var err error
		invoices, err = e.Invoices(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		e.log.Errorf("Error fetching summary data: %v", err)
		return nil, err
	}
	return &reports.Summary{Query: queries, Invoice: invoices}, nil
}

// QueryOverview returns the query dashboard counters.
func (e *Engine) QueryOverview(ctx context.Context) (*reports.QueryOverview, error) {
	var out *reports.QueryOverview
	err := observe("query_overview", func() error {
		var err error
		out, err = e.repo.QueryOverview(ctx)
		return err
	})
	if err != nil {
		e.log.Errorf("Error fetching query overview: %v", err)
		return nil, err
	}
	return out, nil
}
