package reports

import "encoding/json"

// Collections read by the reporting pipelines.
const (
	CustomersCollection = "clients"
	QueriesCollection   = "queries"
	InvoicesCollection  = "invoices"
)

// CustomerCohort counts customers created in one calendar month (UTC).
type CustomerCohort struct {
	Year         int   `json:"year" bson:"year"`
	Month        int   `json:"month" bson:"month"`
	EnabledCount int64 `json:"enabledCount" bson:"enabledCount"`
	RemovedCount int64 `json:"removedCount" bson:"removedCount"`
	TotalCount   int64 `json:"totalCount" bson:"totalCount"`
}

// QueryStatusCount is the number of queries sharing one raw status value.
// Status is nil for queries without a status.
type QueryStatusCount struct {
	Status interface{} `json:"status" bson:"status"`
	Count  int64       `json:"count" bson:"count"`
}

// InvoiceBucket is one row of the invoice report. Header rows carry the
// month totals over all statuses and have HasStatus false; per-status rows
// have HasStatus true and Status holds the raw value (nil when missing).
type InvoiceBucket struct {
	Year         int         `bson:"year"`
	Month        int         `bson:"month"`
	TotalAmount  float64     `bson:"totalAmount"`
	InvoiceCount int64       `bson:"invoiceCount"`
	Status       interface{} `bson:"status,omitempty"`
	HasStatus    bool        `bson:"-"`
}

// MarshalJSON omits the status key on month header rows so consumers can
// tell them apart from a per-status row whose status is null.
func (b InvoiceBucket) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{
		"year":         b.Year,
		"month":        b.Month,
		"totalAmount":  b.TotalAmount,
		"invoiceCount": b.InvoiceCount,
	}
	if b.HasStatus {
		out["status"] = b.Status
	}
	return json.Marshal(out)
}

// QueryOverview is the single-row query dashboard over non-removed queries.
type QueryOverview struct {
	TotalQueries            int64 `json:"totalQueries" bson:"totalQueries"`
	OpenQueries             int64 `json:"openQueries" bson:"openQueries"`
	InProgressQueries       int64 `json:"inProgressQueries" bson:"inProgressQueries"`
	ClosedQueries           int64 `json:"closedQueries" bson:"closedQueries"`
	HighPriorityQueries     int64 `json:"highPriorityQueries" bson:"highPriorityQueries"`
	CriticalPriorityQueries int64 `json:"criticalPriorityQueries" bson:"criticalPriorityQueries"`
}

// Summary combines the query and invoice reports consumed by dashboards.
type Summary struct {
	Query   []QueryStatusCount `json:"query"`
	Invoice []InvoiceBucket    `json:"invoice"`
}

// InsertResult reports how many documents a webhook batch added.
type InsertResult struct {
	InsertedCount int `json:"insertedCount"`
}
