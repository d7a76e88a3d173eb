// Package domain models the scheduled email: triggers, messages, senders,
// and the confirmation returned to the invoking platform.
package domain

import (
	"context"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
)

// EventTimeLayout renders trigger timestamps as ISO-8601 with millisecond
// precision, e.g. 2024-03-01T08:00:00.000Z.
const EventTimeLayout = "2006-01-02T15:04:05.000Z07:00"

const confirmationPrefix = "Email sent "

// Message is one composed email ready for a transport.
type Message struct {
	ID        string
	TriggerID string
	From      string
	To        []string
	Subject   string
	BodyText  string
}

// Sender delivers composed messages. Implementations must not retry
// internally beyond what their client library does for a single request.
type Sender interface {
	// Name identifies the transport in logs, traces, and delivery records.
	Name() string
	Send(ctx context.Context, msg Message) error
}

// ScheduledTrigger is the transport-neutral view of one schedule firing.
type ScheduledTrigger struct {
	ID         string
	Source     string
	DetailType string
	Account    string
	Region     string
	Time       time.Time
	Resources  []string
}

// TriggerFromCloudWatch adapts an EventBridge scheduled event.
func TriggerFromCloudWatch(event events.CloudWatchEvent) ScheduledTrigger {
	resources := make([]string, 0, len(event.Resources))
	for _, resource := range event.Resources {
		if resource = strings.TrimSpace(resource); resource != "" {
			resources = append(resources, resource)
		}
	}
	return ScheduledTrigger{
		ID:         strings.TrimSpace(event.ID),
		Source:     strings.TrimSpace(event.Source),
		DetailType: strings.TrimSpace(event.DetailType),
		Account:    strings.TrimSpace(event.AccountID),
		Region:     strings.TrimSpace(event.Region),
		Time:       event.Time,
		Resources:  resources,
	}
}

// RuleName returns the schedule rule name from the first resource ARN, e.g.
// "daily-notes" for arn:aws:events:us-east-1:123:rule/daily-notes. It returns
// the raw resource when it is not a rule ARN and "" when there is none.
func (t ScheduledTrigger) RuleName() string {
	if len(t.Resources) == 0 {
		return ""
	}
	resource := t.Resources[0]
	if idx := strings.LastIndex(resource, ":rule/"); idx != -1 {
		return resource[idx+len(":rule/"):]
	}
	return resource
}

// FormatEventTime renders t in UTC using EventTimeLayout.
func FormatEventTime(t time.Time) string {
	return t.UTC().Format(EventTimeLayout)
}

// Confirmation is the invocation result returned to the platform after a
// successful send.
func Confirmation(t time.Time) string {
	return confirmationPrefix + FormatEventTime(t)
}
