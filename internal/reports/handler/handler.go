package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/reportsummary/reportsummary/internal/reports"
	"github.com/reportsummary/reportsummary/pkg/logger"
)

const (
	msgCustomersFetched = "Customers fetched successfully"
	msgSummaryFetched   = "Summary data fetched successfully"
	msgQueriesFetched   = "Query summary fetched successfully"
	msgInternalError    = "Internal server error"
)

// Reporter is the read side used by the summary routes.
type Reporter interface {
	CustomerGrowth(ctx context.Context) ([]reports.CustomerCohort, error)
	Summary(ctx context.Context) (*reports.Summary, error)
	QueryOverview(ctx context.Context) (*reports.QueryOverview, error)
}

// Ingester accepts webhook payloads.
type Ingester interface {
	Ingest(ctx context.Context, payload interface{}) (map[string]reports.InsertResult, error)
}

// SummaryHandler exposes the reports and the webhook over HTTP.
// Every failure is answered with 500 and {"error": message}.
type SummaryHandler struct {
	reports      Reporter
	ingester     Ingester
	maxBodyBytes int64
	log          *logger.Logger
}

func NewSummaryHandler(r Reporter, i Ingester, maxBodyMB int) *SummaryHandler {
	if maxBodyMB <= 0 {
		maxBodyMB = 10
	}
	return &SummaryHandler{
		reports:      r,
		ingester:     i,
		maxBodyBytes: int64(maxBodyMB) * 1024 * 1024,
		log:          logger.New("SummaryHandler"),
	}
}

// Register mounts the summary and integration routes. Extra handlers, such
// as a rate limiter, run in front of the webhook only.
func (h *SummaryHandler) Register(rg gin.IRouter, webhook ...gin.HandlerFunc) {
	s := rg.Group("/summary")
	s.GET("/customers", h.GetCustomers)
	s.GET("/queries", h.GetQueryOverview)

	i := rg.Group("/integration")
	i.GET("/reports/summary", h.GetSummary)
	chain := make([]gin.HandlerFunc, 0, len(webhook)+1)
	chain = append(chain, webhook...)
	chain = append(chain, h.Webhook)
	i.POST("/webhook", chain...)
}

// GetCustomers returns customer cohorts by creation month.
func (h *SummaryHandler) GetCustomers(c *gin.Context) {
	h.reqLog(c).Infof("Fetching all customers")
	out, err := h.reports.CustomerGrowth(c.Request.Context())
	if err != nil {
		h.fail(c, "Error fetching customers", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"Result": out, "Message": msgCustomersFetched})
}

// GetSummary returns the query and invoice reports.
func (h *SummaryHandler) GetSummary(c *gin.Context) {
	h.reqLog(c).Infof("Fetching summary data")
	out, err := h.reports.Summary(c.Request.Context())
	if err != nil {
		h.fail(c, "Error fetching summary", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"Result": out, "Message": msgSummaryFetched})
}

// GetQueryOverview returns the query dashboard counters.
func (h *SummaryHandler) GetQueryOverview(c *gin.Context) {
	out, err := h.reports.QueryOverview(c.Request.Context())
	if err != nil {
		h.fail(c, "Error fetching query summary", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"Result": out, "Message": msgQueriesFetched})
}

// Webhook stores the posted batches and returns inserted counts per collection.
func (h *SummaryHandler) Webhook(c *gin.Context) {
	h.reqLog(c).Infof("Received webhook data")
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, h.maxBodyBytes+1))
	if err != nil {
		h.fail(c, "Error reading webhook body", err)
		return
	}
	if int64(len(body)) > h.maxBodyBytes {
		h.reqLog(c).Warnf("Webhook body exceeds %d bytes", h.maxBodyBytes)
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body exceeds maximum allowed size"})
		return
	}

	payload, err := reports.DecodePayload(bytes.NewReader(body))
	if err != nil {
		h.fail(c, "Error processing webhook", err)
		return
	}

	res, err := h.ingester.Ingest(c.Request.Context(), payload)
	if err != nil {
		h.fail(c, "Error processing webhook", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"Result": res})
}

func (h *SummaryHandler) fail(c *gin.Context, what string, err error) {
	msg := err.Error()
	if msg == "" {
		msg = msgInternalError
	}
	if errors.Is(err, reports.ErrInvalidPayload) {
		msg = reports.ErrInvalidPayload.Error()
	}
	h.reqLog(c).Errorf("%s: %v", what, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}

// reqLog tags log lines with the id set by the request id middleware.
func (h *SummaryHandler) reqLog(c *gin.Context) *logger.Logger {
	return h.log.WithRequest(c.GetString("request_id"))
}
