package storage

import (
	"fmt"
	"time"
)

// MinIOConfig holds MinIO connection configuration
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// Enabled reports whether an endpoint was configured.
func (c *MinIOConfig) Enabled() bool {
	return c != nil && c.Endpoint != ""
}

// PayloadKey returns the object key for a webhook payload received at t,
// e.g. "webhooks/2024/01/15/1705312800000000000.json".
func PayloadKey(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("webhooks/%04d/%02d/%02d/%d.json", t.Year(), int(t.Month()), t.Day(), t.UnixNano())
}
