package journal

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nlquery/nlquery/internal/observability"
	"github.com/nlquery/nlquery/internal/storage"
)

const (
	defaultPrefix        = "journal"
	defaultBatchSize     = 100
	defaultFlushInterval = 30 * time.Second
	shutdownFlushTimeout = 10 * time.Second

	parquetContentType = "application/vnd.apache.parquet"
)

type Config struct {
	Prefix        string
	BatchSize     int
	FlushInterval time.Duration
	// MaxPending bounds the buffer while the store is failing. The oldest entries are
	// dropped first. Defaults to ten batches.
	MaxPending int
}

// Journal buffers query exchanges and archives them as parquet objects, one object per
// flush.
type Journal struct {
	store  storage.ObjectStore
	cfg    Config
	logger *slog.Logger
	clock  func() time.Time
	newID  func() string

	mu      sync.Mutex
	pending []Entry
	flushMu sync.Mutex
	wake    chan struct{}
}

func New(store storage.ObjectStore, cfg Config, logger *slog.Logger) (*Journal, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaultFlushInterval
	}
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = cfg.BatchSize * 10
	}
	if cfg.MaxPending < cfg.BatchSize {
		cfg.MaxPending = cfg.BatchSize
	}
	if _, err := storage.BuildJournalPath(cfg.Prefix, time.Now(), "probe"); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{
		store:  store,
		cfg:    cfg,
		logger: logger,
		clock:  time.Now,
		newID:  uuid.NewString,
		wake:   make(chan struct{}, 1),
	}, nil
}

// Append buffers entry, filling in ID and CreatedAt when unset. A full batch wakes Run.
func (j *Journal) Append(_ context.Context, entry Entry) {
	if entry.ID == "" {
		entry.ID = j.newID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = j.clock().UTC()
	}

	j.mu.Lock()
	j.pending = append(j.pending, entry)
	dropped := j.trimLocked()
	full := len(j.pending) >= j.cfg.BatchSize
	j.mu.Unlock()

	observability.IncrementJournalDropped(dropped)
	if full {
		select {
		case j.wake <- struct{}{}:
		default:
		}
	}
}

func (j *Journal) Pending() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.pending)
}

// Flush writes everything buffered as one object. On failure the entries go back to
// the front of the buffer.
func (j *Journal) Flush(ctx context.Context) error {
	j.flushMu.Lock()
	defer j.flushMu.Unlock()

	j.mu.Lock()
	batch := j.pending
	j.pending = nil
	j.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}

	key, err := j.write(ctx, batch)
	observability.ObserveJournalFlush(len(batch), err)
	if err != nil {
		j.requeue(batch)
		return err
	}
	j.logger.InfoContext(ctx, "journal batch written",
		slog.String("key", key),
		slog.Int("entries", len(batch)),
	)
	return nil
}

func (j *Journal) write(ctx context.Context, batch []Entry) (string, error) {
	encoded, err := EncodeEntries(batch)
	if err != nil {
		return "", fmt.Errorf("encode journal batch: %w", err)
	}
	key, err := storage.BuildJournalPath(j.cfg.Prefix, encoded.MinCreatedAt, j.newID())
	if err != nil {
		return "", fmt.Errorf("build journal path: %w", err)
	}
	if _, err := j.store.Put(ctx, key, bytes.NewReader(encoded.Data), int64(len(encoded.Data)), storage.PutOptions{ContentType: parquetContentType}); err != nil {
		return "", fmt.Errorf("put journal batch: %w", err)
	}
	return key, nil
}

func (j *Journal) requeue(batch []Entry) {
	j.mu.Lock()
	j.pending = append(batch, j.pending...)
	dropped := j.trimLocked()
	j.mu.Unlock()
	observability.IncrementJournalDropped(dropped)
}

// trimLocked drops the oldest entries above MaxPending. Caller holds j.mu.
func (j *Journal) trimLocked() int {
	over := len(j.pending) - j.cfg.MaxPending
	if over <= 0 {
		return 0
	}
	j.pending = append([]Entry(nil), j.pending[over:]...)
	return over
}

// Run flushes on every interval tick and whenever a batch fills up. When ctx ends it
// makes a last flush attempt with a fresh timeout.
func (j *Journal) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), shutdownFlushTimeout)
			defer cancel()
			if err := j.Flush(flushCtx); err != nil {
				j.logger.Error("journal final flush failed", slog.Any("error", err), slog.Int("pending", j.Pending()))
			}
			return nil
		case <-ticker.C:
		case <-j.wake:
		}
		if err := j.Flush(ctx); err != nil {
			j.logger.ErrorContext(ctx, "journal flush failed", slog.Any("error", err))
		}
	}
}

// Ping checks the underlying object store.
func (j *Journal) Ping(ctx context.Context) error {
	return j.store.Ping(ctx)
}
