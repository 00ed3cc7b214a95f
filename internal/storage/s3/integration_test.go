//go:build integration

package s3

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/nlquery/nlquery/internal/storage"
)

func TestStorePutAgainstMinIO(t *testing.T) {
	endpoint := envOr("NLQUERY_TEST_S3_ENDPOINT", "")
	if endpoint == "" {
		t.Skip("NLQUERY_TEST_S3_ENDPOINT is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	store, err := New(ctx, Config{
		Endpoint:         endpoint,
		Region:           envOr("NLQUERY_TEST_S3_REGION", "us-east-1"),
		Bucket:           envOr("NLQUERY_TEST_S3_BUCKET", "nlquery-it"),
		AccessKeyID:      envOr("NLQUERY_TEST_S3_ACCESS_KEY", "minio"),
		SecretAccessKey:  envOr("NLQUERY_TEST_S3_SECRET_KEY", "miniostorage"),
		Prefix:           "integration-tests",
		AutoCreateBucket: true,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := store.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	key, err := storage.BuildJournalPath("journal", time.Now(), "it-"+time.Now().UTC().Format("20060102150405"))
	if err != nil {
		t.Fatalf("BuildJournalPath() error = %v", err)
	}
	payload := []byte("parquet-bytes")
	info, err := store.Put(ctx, key, bytes.NewReader(payload), int64(len(payload)), storage.PutOptions{ContentType: "application/octet-stream"})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if info.Size != int64(len(payload)) {
		t.Fatalf("Size = %d", info.Size)
	}
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
