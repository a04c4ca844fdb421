package repository

import (
	"context"
	"fmt"

	"github.com/reportsummary/reportsummary/internal/reports"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// DatabaseProvider hands out the shared database handle.
// *database.Gateway implements it.
type DatabaseProvider interface {
	Database(ctx context.Context) (*mongo.Database, error)
}

// MongoRepo runs the report pipelines inside MongoDB. It borrows the
// database handle per call and never caches results.
type MongoRepo struct {
	db DatabaseProvider
}

func NewMongoRepo(db DatabaseProvider) *MongoRepo {
	return &MongoRepo{db: db}
}

// toDateExpr converts expr to a date, yielding null instead of failing the
// pipeline on values that cannot be converted.
func toDateExpr(expr interface{}) bson.M {
	return bson.M{"$convert": bson.M{
		"input":   expr,
		"to":      "date",
		"onError": nil,
		"onNull":  nil,
	}}
}

// createdDateExpr normalizes the created field: arrays give null, strings
// are converted, embedded objects contribute their date (or $date) field,
// and any other value is kept as is.
func createdDateExpr() bson.M {
	nested := bson.M{"$ifNull": bson.A{
		bson.M{"$getField": bson.M{"field": "date", "input": "$created"}},
		bson.M{"$getField": bson.M{"field": bson.M{"$literal": "$date"}, "input": "$created"}},
	}}
	return bson.M{"$cond": bson.A{
		bson.M{"$isArray": bson.A{"$created"}},
		nil,
		bson.M{"$switch": bson.M{
			"branches": bson.A{
				bson.M{
					"case": bson.M{"$eq": bson.A{bson.M{"$type": "$created"}, "string"}},
					"then": toDateExpr("$created"),
				},
				bson.M{
					"case": bson.M{"$eq": bson.A{bson.M{"$type": "$created"}, "object"}},
					"then": toDateExpr(nested),
				},
			},
			"default": "$created",
		}},
	}}
}

// datedStages adds createdDate and drops documents without a real date.
func datedStages() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$addFields", Value: bson.M{"createdDate": createdDateExpr()}}},
		{{Key: "$match", Value: bson.M{"createdDate": bson.M{"$type": "date"}}}},
	}
}

func notRemovedMatch() bson.D {
	return bson.D{{Key: "$match", Value: bson.M{"$or": bson.A{
		bson.M{"removed": false},
		bson.M{"removed": bson.M{"$exists": false}},
	}}}}
}

func boolCount(field string) bson.M {
	return bson.M{"$sum": bson.M{"$cond": bson.A{bson.M{"$eq": bson.A{"$" + field, true}}, 1, 0}}}
}

func eqCount(field, value string) bson.M {
	return bson.M{"$sum": bson.M{"$cond": bson.A{bson.M{"$eq": bson.A{"$" + field, value}}, 1, 0}}}
}

// CustomerCohortPipeline groups customers by creation month.
func CustomerCohortPipeline() mongo.Pipeline {
	p := datedStages()
	return append(p,
		bson.D{{Key: "$group", Value: bson.M{
			"_id": bson.M{
				"year":  bson.M{"$year": "$createdDate"},
				"month": bson.M{"$month": "$createdDate"},
			},
			"enabledCount": boolCount("enabled"),
			"removedCount": boolCount("removed"),
			"totalCount":   bson.M{"$sum": 1},
		}}},
		bson.D{{Key: "$project", Value: bson.M{
			"_id":          0,
			"year":         "$_id.year",
			"month":        "$_id.month",
			"enabledCount": 1,
			"removedCount": 1,
			"totalCount":   1,
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "year", Value: 1}, {Key: "month", Value: 1}}}},
	)
}

// QueryStatusPipeline counts queries per raw status value.
func QueryStatusPipeline() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
		{{Key: "$project", Value: bson.M{"_id": 0, "status": "$_id", "count": 1}}},
	}
}

// InvoiceTotalsPipeline sums live invoices per month, or per month and
// status when byStatus is set.
func InvoiceTotalsPipeline(byStatus bool) mongo.Pipeline {
	id := bson.M{
		"year":  bson.M{"$year": "$createdDate"},
		"month": bson.M{"$month": "$createdDate"},
	}
	project := bson.M{
		"_id":          0,
		"year":         "$_id.year",
		"month":        "$_id.month",
		"totalAmount":  1,
		"invoiceCount": 1,
	}
	sortKeys := bson.D{{Key: "year", Value: 1}, {Key: "month", Value: 1}}
	if byStatus {
		id["status"] = "$status"
		project["status"] = "$_id.status"
		sortKeys = append(sortKeys, bson.E{Key: "status", Value: 1})
	}

	p := mongo.Pipeline{notRemovedMatch()}
	p = append(p, datedStages()...)
	return append(p,
		bson.D{{Key: "$group", Value: bson.M{
			"_id":          id,
			"totalAmount":  bson.M{"$sum": "$total"},
			"invoiceCount": bson.M{"$sum": 1},
		}}},
		bson.D{{Key: "$project", Value: project}},
		bson.D{{Key: "$sort", Value: sortKeys}},
	)
}

// QueryOverviewPipeline builds the single-row query dashboard.
func QueryOverviewPipeline() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"removed": false}}},
		{{Key: "$group", Value: bson.M{
			"_id":                     nil,
			"totalQueries":            bson.M{"$sum": 1},
			"openQueries":             eqCount("status", reports.StatusOpen),
			"inProgressQueries":       eqCount("status", reports.StatusInProgress),
			"closedQueries":           eqCount("status", reports.StatusClosed),
			"highPriorityQueries":     eqCount("priority", reports.PriorityHigh),
			"criticalPriorityQueries": eqCount("priority", reports.PriorityCritical),
		}}},
		{{Key: "$project", Value: bson.M{"_id": 0}}},
	}
}

func (m *MongoRepo) collection(ctx context.Context, name string) (*mongo.Collection, error) {
	db, err := m.db.Database(ctx)
	if err != nil {
		return nil, err
	}
	return db.Collection(name), nil
}

// aggregate runs pipeline against collection and decodes every result into out.
func (m *MongoRepo) aggregate(ctx context.Context, collection string, pipeline mongo.Pipeline, out interface{}) error {
	col, err := m.collection(ctx, collection)
	if err != nil {
		return err
	}
	cur, err := col.Aggregate(ctx, pipeline)
	if err != nil {
		return fmt.Errorf("aggregate %s: %w", collection, err)
	}
	defer cur.Close(ctx)
	if err := cur.All(ctx, out); err != nil {
		return fmt.Errorf("decode %s: %w", collection, err)
	}
	return nil
}

func (m *MongoRepo) CustomerCohorts(ctx context.Context) ([]reports.CustomerCohort, error) {
	out := []reports.CustomerCohort{}
	if err := m.aggregate(ctx, reports.CustomersCollection, CustomerCohortPipeline(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *MongoRepo) QueryStatusCounts(ctx context.Context) ([]reports.QueryStatusCount, error) {
	out := []reports.QueryStatusCount{}
	if err := m.aggregate(ctx, reports.QueriesCollection, QueryStatusPipeline(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *MongoRepo) invoiceTotals(ctx context.Context, byStatus bool) ([]reports.InvoiceBucket, error) {
	out := []reports.InvoiceBucket{}
	if err := m.aggregate(ctx, reports.InvoicesCollection, InvoiceTotalsPipeline(byStatus), &out); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].HasStatus = byStatus
	}
	return out, nil
}

func (m *MongoRepo) InvoiceMonthlyTotals(ctx context.Context) ([]reports.InvoiceBucket, error) {
	return m.invoiceTotals(ctx, false)
}

func (m *MongoRepo) InvoiceStatusTotals(ctx context.Context) ([]reports.InvoiceBucket, error) {
	return m.invoiceTotals(ctx, true)
}

func (m *MongoRepo) QueryOverview(ctx context.Context) (*reports.QueryOverview, error) {
	out := []reports.QueryOverview{}
	if err := m.aggregate(ctx, reports.QueriesCollection, QueryOverviewPipeline(), &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return &reports.QueryOverview{}, nil
	}
	return &out[0], nil
}

// InsertMany appends docs to collection. An empty batch is a no-op.
func (m *MongoRepo) InsertMany(ctx context.Context, collection string, docs []interface{}) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	col, err := m.collection(ctx, collection)
	if err != nil {
		return 0, err
	}
	res, err := col.InsertMany(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", collection, err)
	}
	return len(res.InsertedIDs), nil
}

func (m *MongoRepo) Ping(ctx context.Context) error {
	db, err := m.db.Database(ctx)
	if err != nil {
		return err
	}
	return db.Client().Ping(ctx, nil)
}
