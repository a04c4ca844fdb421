package reports

import (
	"errors"

	"github.com/reportsummary/reportsummary/internal/database"
)

var (
	// ErrConnection means the document store could not be reached.
	ErrConnection = database.ErrConnection
	// ErrInvalidPayload means the webhook body is not an object of batches.
	ErrInvalidPayload = errors.New("Invalid webhook data format")
	// ErrAggregation wraps any failure while running a report pipeline.
	ErrAggregation = errors.New("aggregation failed")
)
