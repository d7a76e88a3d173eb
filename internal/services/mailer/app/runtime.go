package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	platformgrpc "github.com/iuprojects/lcnotes/internal/platform/grpc"
	platformotel "github.com/iuprojects/lcnotes/internal/platform/otel"
	"github.com/iuprojects/lcnotes/internal/platform/timeouts"
	"github.com/iuprojects/lcnotes/internal/services/mailer/domain"
	"github.com/iuprojects/lcnotes/internal/services/mailer/render"
	"github.com/iuprojects/lcnotes/internal/services/mailer/storage/sqlite"
	"github.com/iuprojects/lcnotes/internal/services/mailer/transport/amqp"
	"github.com/iuprojects/lcnotes/internal/services/mailer/transport/logsender"
	"github.com/iuprojects/lcnotes/internal/services/mailer/transport/ses"
	"github.com/iuprojects/lcnotes/internal/services/mailer/transport/smtp"
)

// Run modes.
const (
	ModeLambda   = "lambda"
	ModeOnce     = "once"
	ModeSchedule = "schedule"
)

// Transport names.
const (
	TransportLog  = "log"
	TransportSES  = "ses"
	TransportSMTP = "smtp"
	TransportAMQP = "amqp"
)

// SchedulerHealthService is reported SERVING while the schedule loop runs.
const SchedulerHealthService = "mailer.scheduler"

// RuntimeConfig is the resolved runtime configuration.
type RuntimeConfig struct {
	Mode        string
	Transport   string
	From        string
	To          []string
	Locale      string
	DBPath      string
	SendTimeout time.Duration
	Interval    time.Duration
	HealthPort  int

	SES  ses.Config
	SMTP smtp.Config

	AMQPURL   string
	AMQPQueue string
}

// startLambda hands the handler to the Lambda runtime. Tests replace it.
var startLambda = func(ctx context.Context, handler EventHandler) {
	lambda.StartWithOptions(handler, lambda.WithContext(ctx))
}

// newSender builds the configured transport. Tests replace it.
var newSender = buildSender

// Run builds the mailer and serves it in the configured mode.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	composer := domain.NewComposer(cfg.From, cfg.To, render.NewPrinter(cfg.Locale), nil)
	if err := composer.Validate(); err != nil {
		return fmt.Errorf("mailer configuration: %w", err)
	}

	sender, err := newSender(ctx, cfg)
	if err != nil {
		return err
	}
	if closer, ok := sender.(io.Closer); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				log.Printf("close %s transport: %v", sender.Name(), err)
			}
		}()
	}

	var recorder Recorder
	if path := strings.TrimSpace(cfg.DBPath); path != "" {
		store, err := sqlite.Open(path)
		if err != nil {
			return fmt.Errorf("open delivery log: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Printf("close delivery log: %v", err)
			}
		}()
		recorder = store
	}

	handler := NewHandler(composer, sender, recorder, cfg.SendTimeout, nil)

	switch cfg.Mode {
	case ModeLambda:
		log.Printf("mailer starting lambda runtime transport=%s recipients=%d", sender.Name(), len(composer.Recipients()))
		startLambda(ctx, flushAfter(handler.HandleScheduledEvent))
		return nil
	case ModeOnce:
		result, err := NewScheduler(handler.HandleScheduledEvent, 0, nil, nil).Fire(ctx)
		if err != nil {
			return err
		}
		log.Printf("%s", result)
		return nil
	case ModeSchedule:
		return runSchedule(ctx, cfg, handler)
	default:
		return fmt.Errorf("unsupported mode %q", cfg.Mode)
	}
}

// flushAfter exports the invocation's spans before Lambda freezes the process.
func flushAfter(handle EventHandler) EventHandler {
	return func(ctx context.Context, event events.CloudWatchEvent) (string, error) {
		result, err := handle(ctx, event)
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeouts.TraceFlush)
		defer cancel()
		if flushErr := platformotel.Flush(flushCtx); flushErr != nil {
			log.Printf("flush traces: %v", flushErr)
		}
		return result, err
	}
}

func runSchedule(ctx context.Context, cfg RuntimeConfig, handler *Handler) error {
	addr := net.JoinHostPort("", strconv.Itoa(cfg.HealthPort))
	health, err := platformgrpc.StartHealthServer(addr, SchedulerHealthService)
	if err != nil {
		return fmt.Errorf("start health server: %w", err)
	}
	defer health.Stop()
	log.Printf("mailer scheduler every %s health=%s", cfg.Interval, health.Addr())

	err = NewScheduler(handler.HandleScheduledEvent, cfg.Interval, nil, nil).Run(ctx)
	health.SetNotServing(SchedulerHealthService)
	return err
}

func buildSender(ctx context.Context, cfg RuntimeConfig) (domain.Sender, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Transport)) {
	case "", TransportLog:
		return logsender.New(nil), nil
	case TransportSES:
		sender, err := ses.New(ctx, cfg.SES)
		if err != nil {
			return nil, fmt.Errorf("init ses transport: %w", err)
		}
		return sender, nil
	case TransportSMTP:
		sender, err := smtp.New(cfg.SMTP)
		if err != nil {
			return nil, fmt.Errorf("init smtp transport: %w", err)
		}
		return sender, nil
	case TransportAMQP:
		publisher, err := amqp.Dial(cfg.AMQPURL, cfg.AMQPQueue)
		if err != nil {
			return nil, fmt.Errorf("init amqp transport: %w", err)
		}
		return publisher, nil
	default:
		return nil, fmt.Errorf("unsupported transport %q", cfg.Transport)
	}
}
