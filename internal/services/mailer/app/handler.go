package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iuprojects/lcnotes/internal/platform/id"
	platformotel "github.com/iuprojects/lcnotes/internal/platform/otel"
	"github.com/iuprojects/lcnotes/internal/platform/timeouts"
	"github.com/iuprojects/lcnotes/internal/services/mailer/domain"
	"github.com/iuprojects/lcnotes/internal/services/mailer/storage"
)

// Composer builds the message for one trigger.
type Composer interface {
	Compose(trigger domain.ScheduledTrigger) (domain.Message, error)
}

// Recorder persists the outcome of a send. It is optional.
type Recorder interface {
	RecordDelivery(ctx context.Context, record storage.DeliveryRecord) error
}

// Handler is the scheduled-event entry point invoked by the platform.
type Handler struct {
	composer    Composer
	sender      domain.Sender
	recorder    Recorder
	sendTimeout time.Duration
	clock       func() time.Time
	newID       func() (string, error)
	logf        func(string, ...any)
}

// NewHandler wires a handler. recorder may be nil; a non-positive
// sendTimeout uses timeouts.SendEmail.
func NewHandler(composer Composer, sender domain.Sender, recorder Recorder, sendTimeout time.Duration, clock func() time.Time) *Handler {
	if clock == nil {
		clock = time.Now
	}
	if sendTimeout <= 0 {
		sendTimeout = timeouts.SendEmail
	}
	return &Handler{
		composer:    composer,
		sender:      sender,
		recorder:    recorder,
		sendTimeout: sendTimeout,
		clock:       clock,
		newID:       id.NewID,
		logf:        log.Printf,
	}
}

// HandleScheduledEvent sends the scheduled email exactly once and returns
// "Email sent <event time>". A send failure is returned unchanged in kind;
// there is no retry here.
func (h *Handler) HandleScheduledEvent(ctx context.Context, event events.CloudWatchEvent) (string, error) {
	if h == nil || h.sender == nil {
		return "", domain.ErrSenderNotConfigured
	}
	if h.composer == nil {
		return "", domain.ErrComposerNotConfigured
	}
	trigger := domain.TriggerFromCloudWatch(event)

	ctx, span := platformotel.Tracer().Start(ctx, "mailer.HandleScheduledEvent", trace.WithAttributes(
		attribute.String("lcnotes.trigger.id", trigger.ID),
		attribute.String("lcnotes.trigger.time", domain.FormatEventTime(trigger.Time)),
		attribute.String("lcnotes.trigger.rule", trigger.RuleName()),
	))
	defer span.End()

	msg, err := h.composer.Compose(trigger)
	if err != nil {
		err = fmt.Errorf("compose scheduled email: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "compose failed")
		return "", err
	}

	sendErr := h.send(ctx, msg)
	h.record(ctx, trigger, msg, sendErr)
	if sendErr != nil {
		err := fmt.Errorf("send scheduled email via %s: %w", h.sender.Name(), sendErr)
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		return "", err
	}
	return domain.Confirmation(trigger.Time), nil
}

func (h *Handler) send(ctx context.Context, msg domain.Message) error {
	ctx, span := platformotel.Tracer().Start(ctx, "mailer.Send", trace.WithAttributes(
		attribute.String("lcnotes.transport", h.sender.Name()),
		attribute.String("lcnotes.message.id", msg.ID),
		attribute.Int("lcnotes.message.recipients", len(msg.To)),
	))
	defer span.End()

	sendCtx, cancel := context.WithTimeout(ctx, h.sendTimeout)
	defer cancel()
	err := h.sender.Send(sendCtx, msg)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("lcnotes.error.permanent", domain.IsPermanent(err)))
		span.SetStatus(codes.Error, "transport error")
	}
	return err
}

// record writes the delivery log entry. Failures are logged only; the log
// never changes the invocation result.
func (h *Handler) record(ctx context.Context, trigger domain.ScheduledTrigger, msg domain.Message, sendErr error) {
	if h.recorder == nil {
		return
	}
	recordID, err := h.newID()
	if err != nil {
		h.logf("delivery log id for message %s: %v", msg.ID, err)
		return
	}
	record := storage.DeliveryRecord{
		ID:          recordID,
		MessageID:   msg.ID,
		TriggerID:   trigger.ID,
		TriggerTime: trigger.Time,
		Transport:   h.sender.Name(),
		Recipients:  append([]string(nil), msg.To...),
		Subject:     msg.Subject,
		Status:      storage.DeliveryStatusDelivered,
		CreatedAt:   h.clock().UTC(),
	}
	if sendErr != nil {
		record.Status = storage.DeliveryStatusFailed
		record.Permanent = domain.IsPermanent(sendErr)
		record.LastError = strings.TrimSpace(sendErr.Error())
	}

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeouts.RecordDelivery)
	defer cancel()
	if err := h.recorder.RecordDelivery(recordCtx, record); err != nil {
		h.logf("record delivery for message %s: %v", msg.ID, err)
	}
}
