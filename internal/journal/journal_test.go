package journal

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/nlquery/nlquery/internal/storage"
)

type putCall struct {
	key         string
	data        []byte
	contentType string
}

type fakeStore struct {
	mu     sync.Mutex
	puts   []putCall
	putErr error
}

func (s *fakeStore) Put(_ context.Context, key string, body io.Reader, size int64, opts storage.PutOptions) (storage.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return storage.ObjectInfo{}, s.putErr
	}
	data, _ := io.ReadAll(body)
	s.puts = append(s.puts, putCall{key: key, data: data, contentType: opts.ContentType})
	return storage.ObjectInfo{Key: key, Size: size}, nil
}

func (s *fakeStore) Ping(context.Context) error { return nil }

func (s *fakeStore) calls() []putCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]putCall, len(s.puts))
	copy(out, s.puts)
	return out
}

func (s *fakeStore) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putErr = err
}

func newTestJournal(t *testing.T, store storage.ObjectStore, cfg Config) *Journal {
	t.Helper()
	j, err := New(store, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	j.clock = func() time.Time { return time.Date(2026, time.March, 4, 9, 30, 0, 0, time.UTC) }
	ids := 0
	j.newID = func() string {
		ids++
		return "id-" + string(rune('0'+ids))
	}
	return j
}

func readEntries(t *testing.T, data []byte) []parquetEntry {
	t.Helper()
	reader := parquet.NewGenericReader[parquetEntry](bytes.NewReader(data))
	defer func() { _ = reader.Close() }()
	rows := make([]parquetEntry, reader.NumRows())
	count, err := reader.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		t.Fatalf("reader.Read() error = %v", err)
	}
	return rows[:count]
}

func TestFlushWritesOneParquetObject(t *testing.T) {
	store := &fakeStore{}
	j := newTestJournal(t, store, Config{})

	j.Append(context.Background(), Entry{Question: "how many", GeneratedSQL: "SELECT 1;", Status: StatusOK, RowCount: 1, Duration: 1500 * time.Millisecond})
	j.Append(context.Background(), Entry{Question: "weather", Status: StatusTranslationFailed, Error: "no match"})
	if j.Pending() != 2 {
		t.Fatalf("Pending() = %d", j.Pending())
	}

	if err := j.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if j.Pending() != 0 {
		t.Fatalf("Pending() after flush = %d", j.Pending())
	}

	puts := store.calls()
	if len(puts) != 1 {
		t.Fatalf("puts = %d", len(puts))
	}
	if puts[0].key != "journal/dt=2026-03-04/id-3.parquet" {
		t.Fatalf("key = %q", puts[0].key)
	}
	if puts[0].contentType != parquetContentType {
		t.Fatalf("content type = %q", puts[0].contentType)
	}

	rows := readEntries(t, puts[0].data)
	if len(rows) != 2 {
		t.Fatalf("rows = %d", len(rows))
	}
	if rows[0].ID != "id-1" || rows[0].Status != "ok" || rows[0].DurationMs != 1500 || rows[0].RowCount != 1 {
		t.Fatalf("row 0 = %+v", rows[0])
	}
	if rows[1].Status != "translation_failed" || rows[1].Error != "no match" {
		t.Fatalf("row 1 = %+v", rows[1])
	}
}

func TestFlushWithNothingPendingSkipsStore(t *testing.T) {
	store := &fakeStore{}
	j := newTestJournal(t, store, Config{})
	if err := j.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if len(store.calls()) != 0 {
		t.Fatal("expected no puts")
	}
}

func TestFlushFailureRequeuesEntries(t *testing.T) {
	store := &fakeStore{putErr: errors.New("connection reset")}
	j := newTestJournal(t, store, Config{})

	j.Append(context.Background(), Entry{Question: "a", Status: StatusOK})
	if err := j.Flush(context.Background()); err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("Flush() error = %v", err)
	}
	j.Append(context.Background(), Entry{Question: "b", Status: StatusOK})
	if j.Pending() != 2 {
		t.Fatalf("Pending() = %d", j.Pending())
	}

	store.setErr(nil)
	if err := j.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	rows := readEntries(t, store.calls()[0].data)
	if len(rows) != 2 || rows[0].Question != "a" || rows[1].Question != "b" {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestAppendDropsOldestAboveMaxPending(t *testing.T) {
	j := newTestJournal(t, &fakeStore{}, Config{BatchSize: 2, MaxPending: 3})
	for _, q := range []string{"1", "2", "3", "4", "5"} {
		j.Append(context.Background(), Entry{Question: q, Status: StatusOK})
	}
	if j.Pending() != 3 {
		t.Fatalf("Pending() = %d", j.Pending())
	}
	j.mu.Lock()
	first := j.pending[0].Question
	j.mu.Unlock()
	if first != "3" {
		t.Fatalf("oldest kept = %q", first)
	}
}

func TestRunFlushesFullBatchAndOnShutdown(t *testing.T) {
	store := &fakeStore{}
	j := newTestJournal(t, store, Config{BatchSize: 2, FlushInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()

	j.Append(context.Background(), Entry{Question: "a", Status: StatusOK})
	j.Append(context.Background(), Entry{Question: "b", Status: StatusOK})

	deadline := time.After(5 * time.Second)
	for len(store.calls()) == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for batch flush")
		case <-time.After(10 * time.Millisecond):
		}
	}

	j.Append(context.Background(), Entry{Question: "c", Status: StatusOK})
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := len(store.calls()); got != 2 {
		t.Fatalf("puts = %d", got)
	}
	if j.Pending() != 0 {
		t.Fatalf("Pending() = %d", j.Pending())
	}
}

func TestNewValidatesConfig(t *testing.T) {
	if _, err := New(nil, Config{}, nil); err == nil {
		t.Fatal("expected store error")
	}
	if _, err := New(&fakeStore{}, Config{Prefix: "../x"}, nil); err == nil {
		t.Fatal("expected prefix error")
	}
}

func TestEncodeEntriesTracksTimeRange(t *testing.T) {
	early := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)
	result, err := EncodeEntries([]Entry{
		{ID: "b", Status: StatusOK, CreatedAt: late},
		{ID: "a", Status: StatusOK, CreatedAt: early},
	})
	if err != nil {
		t.Fatalf("EncodeEntries() error = %v", err)
	}
	if result.RecordCount != 2 || !result.MinCreatedAt.Equal(early) || !result.MaxCreatedAt.Equal(late) {
		t.Fatalf("result = %+v", result)
	}
	if _, err := EncodeEntries(nil); err == nil {
		t.Fatal("expected error for empty batch")
	}
}
