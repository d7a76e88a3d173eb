package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/iuprojects/lcnotes/internal/platform/id"
)

const (
	// SchedulerSource is the event source used for locally fired triggers.
	SchedulerSource = "lcnotes.scheduler"
	// SchedulerResource stands in for the rule ARN on local triggers.
	SchedulerResource = "lcnotes.scheduler/local"

	scheduledDetailType = "Scheduled Event"
)

// EventHandler matches Handler.HandleScheduledEvent.
type EventHandler func(ctx context.Context, event events.CloudWatchEvent) (string, error)

// Scheduler fires the handler on a fixed interval outside Lambda. Each tick
// is one invocation; failed invocations are logged and not repeated.
type Scheduler struct {
	handle   EventHandler
	interval time.Duration
	clock    func() time.Time
	newID    func() (string, error)
	logf     func(string, ...any)
}

// NewScheduler builds a scheduler. Nil clock and logf use time.Now and
// log.Printf.
func NewScheduler(handle EventHandler, interval time.Duration, clock func() time.Time, logf func(string, ...any)) *Scheduler {
	if clock == nil {
		clock = time.Now
	}
	if logf == nil {
		logf = log.Printf
	}
	return &Scheduler{
		handle:   handle,
		interval: interval,
		clock:    clock,
		newID:    id.NewID,
		logf:     logf,
	}
}

// Run fires once immediately and then every interval until ctx ends.
func (s *Scheduler) Run(ctx context.Context) error {
	if s == nil || s.handle == nil {
		return fmt.Errorf("scheduler handler is required")
	}
	if s.interval <= 0 {
		return fmt.Errorf("scheduler interval must be positive")
	}

	s.tick(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// Fire runs one invocation with a freshly synthesized event.
func (s *Scheduler) Fire(ctx context.Context) (string, error) {
	if s == nil || s.handle == nil {
		return "", fmt.Errorf("scheduler handler is required")
	}
	eventID, err := s.newID()
	if err != nil {
		return "", fmt.Errorf("generate trigger id: %w", err)
	}
	return s.handle(ctx, SyntheticEvent(eventID, s.clock()))
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	result, err := s.Fire(ctx)
	if err != nil {
		s.logf("scheduled invocation failed: %v", err)
		return
	}
	s.logf("%s", result)
}

// SyntheticEvent builds the scheduled event a local trigger delivers, shaped
// like an EventBridge schedule payload.
func SyntheticEvent(eventID string, at time.Time) events.CloudWatchEvent {
	return events.CloudWatchEvent{
		Version:    "0",
		ID:         eventID,
		DetailType: scheduledDetailType,
		Source:     SchedulerSource,
		Time:       at.UTC(),
		Resources:  []string{SchedulerResource},
		Detail:     json.RawMessage(`{}`),
	}
}
