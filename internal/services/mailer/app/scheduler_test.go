package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
)

func TestSchedulerFireSynthesizesEvent(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 3, 1, 5, 0, 0, 0, time.FixedZone("BRT", -3*60*60))
	var got events.CloudWatchEvent
	scheduler := NewScheduler(func(_ context.Context, event events.CloudWatchEvent) (string, error) {
		got = event
		return "ok", nil
	}, time.Hour, func() time.Time { return at }, nil)
	scheduler.newID = fixedID("trigger-1")

	result, err := scheduler.Fire(context.Background())
	if err != nil {
		t.Fatalf("fire: %v", err)
	}
	if result != "ok" {
		t.Fatalf("result = %q", result)
	}
	if got.ID != "trigger-1" || got.Source != SchedulerSource || got.DetailType != "Scheduled Event" {
		t.Fatalf("event = %+v", got)
	}
	if !got.Time.Equal(at) || got.Time.Location() != time.UTC {
		t.Fatalf("event time = %v, want %v in UTC", got.Time, at)
	}
	if len(got.Resources) != 1 || got.Resources[0] != SchedulerResource {
		t.Fatalf("resources = %v", got.Resources)
	}
}

func TestSchedulerFireIDError(t *testing.T) {
	t.Parallel()

	called := false
	scheduler := NewScheduler(func(context.Context, events.CloudWatchEvent) (string, error) {
		called = true
		return "", nil
	}, time.Hour, nil, nil)
	scheduler.newID = func() (string, error) { return "", errors.New("entropy") }

	if _, err := scheduler.Fire(context.Background()); err == nil || !strings.Contains(err.Error(), "entropy") {
		t.Fatalf("error = %v, want id error", err)
	}
	if called {
		t.Fatal("handler must not run without a trigger id")
	}
}

func TestSchedulerRunFiresImmediatelyAndStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	calls := 0
	var logs []string
	scheduler := NewScheduler(func(context.Context, events.CloudWatchEvent) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 2 {
			return "", errors.New("relay down")
		}
		if calls == 3 {
			cancel()
		}
		return fmt.Sprintf("run %d", calls), nil
	}, 5*time.Millisecond, nil, func(format string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		logs = append(logs, fmt.Sprintf(format, args...))
	})

	done := make(chan error, 1)
	go func() { done <- scheduler.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	if len(logs) != 3 || logs[0] != "run 1" || !strings.Contains(logs[1], "relay down") || logs[2] != "run 3" {
		t.Fatalf("logs = %v", logs)
	}
}

func TestSchedulerRunValidates(t *testing.T) {
	t.Parallel()

	handle := func(context.Context, events.CloudWatchEvent) (string, error) { return "", nil }
	tests := []struct {
		name      string
		scheduler *Scheduler
	}{
		{name: "nil scheduler"},
		{name: "nil handler", scheduler: NewScheduler(nil, time.Second, nil, nil)},
		{name: "zero interval", scheduler: NewScheduler(handle, 0, nil, nil)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if err := tc.scheduler.Run(context.Background()); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
