package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/iuprojects/lcnotes/internal/services/mailer/storage"
)

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestOpenReappliesMigrationsIdempotently(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mailer.db")
	first, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}
	second, err := Open(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	if err := second.Close(); err != nil {
		t.Fatalf("close reopened store: %v", err)
	}
}

func TestRecordGetAndListDeliveries(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	fired := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	records := []storage.DeliveryRecord{
		{
			ID:          "del-1",
			MessageID:   "msg-1",
			TriggerID:   "evt-1",
			TriggerTime: fired,
			Transport:   "ses",
			Recipients:  []string{"a@example.com", "b@example.com"},
			Subject:     "LC Notes digest for 2024-03-01",
			Status:      storage.DeliveryStatusDelivered,
			CreatedAt:   fired.Add(time.Second),
		},
		{
			ID:          "del-2",
			MessageID:   "msg-2",
			TriggerID:   "evt-2",
			TriggerTime: fired.Add(24 * time.Hour),
			Transport:   "smtp",
			Recipients:  []string{"a@example.com"},
			Status:      storage.DeliveryStatusFailed,
			Permanent:   true,
			LastError:   " mailbox unavailable ",
			CreatedAt:   fired.Add(24*time.Hour + time.Second),
		},
	}
	for _, record := range records {
		if err := store.RecordDelivery(ctx, record); err != nil {
			t.Fatalf("record delivery %s: %v", record.ID, err)
		}
	}

	got, err := store.GetDelivery(ctx, "del-1")
	if err != nil {
		t.Fatalf("get delivery: %v", err)
	}
	if got.MessageID != "msg-1" || got.Transport != "ses" || got.Status != storage.DeliveryStatusDelivered {
		t.Fatalf("unexpected delivery: %+v", got)
	}
	if strings.Join(got.Recipients, ",") != "a@example.com,b@example.com" {
		t.Fatalf("recipients = %v", got.Recipients)
	}
	if !got.TriggerTime.Equal(fired) {
		t.Fatalf("trigger time = %v, want %v", got.TriggerTime, fired)
	}

	list, err := store.ListDeliveries(ctx, 10)
	if err != nil {
		t.Fatalf("list deliveries: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("list len = %d, want 2", len(list))
	}
	if list[0].ID != "del-2" || list[1].ID != "del-1" {
		t.Fatalf("list order = %s,%s, want del-2,del-1", list[0].ID, list[1].ID)
	}
	if !list[0].Permanent || list[0].LastError != "mailbox unavailable" {
		t.Fatalf("failed record = %+v", list[0])
	}

	limited, err := store.ListDeliveries(ctx, 1)
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "del-2" {
		t.Fatalf("limited list = %+v", limited)
	}
}

func TestGetDeliveryNotFound(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	if _, err := store.GetDelivery(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRecordDeliveryRejectsDuplicateID(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	record := storage.DeliveryRecord{
		ID:        "del-1",
		MessageID: "msg-1",
		Transport: "log",
		Status:    storage.DeliveryStatusDelivered,
	}
	if err := store.RecordDelivery(context.Background(), record); err != nil {
		t.Fatalf("record delivery: %v", err)
	}
	if err := store.RecordDelivery(context.Background(), record); err == nil {
		t.Fatal("expected duplicate id error")
	}
}

func TestRecordDeliveryValidation(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	valid := storage.DeliveryRecord{ID: "d", MessageID: "m", Transport: "log", Status: storage.DeliveryStatusDelivered}

	tests := []struct {
		name   string
		mutate func(*storage.DeliveryRecord)
	}{
		{name: "missing id", mutate: func(r *storage.DeliveryRecord) { r.ID = " " }},
		{name: "missing message id", mutate: func(r *storage.DeliveryRecord) { r.MessageID = "" }},
		{name: "missing transport", mutate: func(r *storage.DeliveryRecord) { r.Transport = "" }},
		{name: "bad status", mutate: func(r *storage.DeliveryRecord) { r.Status = "queued" }},
	}
	for _, tt := range tests {
		record := valid
		tt.mutate(&record)
		if err := store.RecordDelivery(context.Background(), record); err == nil {
			t.Fatalf("%s: expected validation error", tt.name)
		}
	}
}

func TestStoreRejectsCanceledContextAndBadLimit(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.RecordDelivery(ctx, storage.DeliveryRecord{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("record err = %v, want context.Canceled", err)
	}
	if _, err := store.ListDeliveries(context.Background(), 0); err == nil {
		t.Fatal("expected limit error")
	}
}

func TestNilStoreIsSafe(t *testing.T) {
	t.Parallel()

	var store *Store
	if err := store.Close(); err != nil {
		t.Fatalf("close nil store: %v", err)
	}
	if err := store.RecordDelivery(context.Background(), storage.DeliveryRecord{}); err == nil {
		t.Fatal("expected not configured error")
	}
}

func openTempStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "mailer.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}
