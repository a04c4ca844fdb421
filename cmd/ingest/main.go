package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/reportsummary/reportsummary/internal/config"
	"github.com/reportsummary/reportsummary/internal/database"
	"github.com/reportsummary/reportsummary/internal/reports"
	"github.com/reportsummary/reportsummary/internal/reports/repository"
	"github.com/reportsummary/reportsummary/internal/reports/service"
	"github.com/reportsummary/reportsummary/internal/storage"
	"github.com/reportsummary/reportsummary/pkg/logger"
)

type ingester interface {
	Ingest(ctx context.Context, payload interface{}) (map[string]reports.InsertResult, error)
}

func main() {
	file := flag.String("file", "", "path to a webhook payload (JSON object of arrays); - reads stdin")
	archived := flag.String("archived", "", "object key of an archived payload to replay from MinIO")
	dryRun := flag.Bool("dry-run", false, "ingest into an in-memory store instead of MongoDB")
	flag.Parse()

	logger.Init(os.Getenv("LOG_LEVEL"))
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	in, err := openInput(ctx, cfg, *file, *archived)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	defer in.Close()

	var repo repository.Repository
	if *dryRun || cfg.MongoDB.URI == "" {
		if !*dryRun {
			logger.Warnf("MONGODB_URI is not set; ingesting into an in-memory store")
		}
		repo = repository.NewMemoryRepo()
	} else {
		gw := database.NewGateway(cfg.MongoDB.URI, cfg.MongoDB.Database, cfg.MongoDB.Timeout)
		defer func() { _ = gw.Close(context.Background()) }()
		repo = repository.NewMongoRepo(gw)
	}

	if err := run(ctx, in, service.NewIngestor(repo), os.Stdout); err != nil {
		logger.Fatalf("ingest failed: %v", err)
	}
}

func openInput(ctx context.Context, cfg *config.Config, file, archived string) (io.ReadCloser, error) {
	switch {
	case file != "" && archived != "":
		return nil, errors.New("use either -file or -archived")
	case archived != "":
		if !cfg.MinIO.Enabled() {
			return nil, errors.New("-archived needs MINIO_ENDPOINT")
		}
		store, err := storage.NewMinIOStorage(ctx, &cfg.MinIO)
		if err != nil {
			return nil, err
		}
		return store.OpenPayload(ctx, archived)
	case file == "-":
		return io.NopCloser(os.Stdin), nil
	case file != "":
		return os.Open(file)
	default:
		return nil, errors.New("-file or -archived is required")
	}
}

// run decodes one payload from in, ingests it and writes the per-collection
// counts to out as JSON.
func run(ctx context.Context, in io.Reader, ing ingester, out io.Writer) error {
	raw, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}
	payload, err := reports.DecodePayload(bytes.NewReader(raw))
	if err != nil {
		return err
	}
	res, err := ing.Ingest(ctx, payload)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
