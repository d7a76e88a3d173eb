// Package mailer parses mailer command flags and launches the mailer runtime.
package mailer

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	entrypoint "github.com/iuprojects/lcnotes/internal/platform/cmd"
	mailerapp "github.com/iuprojects/lcnotes/internal/services/mailer/app"
	"github.com/iuprojects/lcnotes/internal/services/mailer/transport/ses"
	"github.com/iuprojects/lcnotes/internal/services/mailer/transport/smtp"
)

// ModeAuto picks lambda inside the Lambda runtime and once elsewhere.
const ModeAuto = "auto"

// DefaultEnvFile is loaded before configuration is parsed, when present.
const DefaultEnvFile = ".env"

const lambdaRuntimeEnv = "AWS_LAMBDA_RUNTIME_API"

// Config holds mailer command configuration.
type Config struct {
	Mode        string        `env:"LCNOTES_MAILER_MODE" envDefault:"auto"`
	Transport   string        `env:"LCNOTES_MAILER_TRANSPORT" envDefault:"log"`
	From        string        `env:"LCNOTES_MAILER_FROM"`
	To          []string      `env:"LCNOTES_MAILER_TO" envSeparator:","`
	Locale      string        `env:"LCNOTES_MAILER_LOCALE" envDefault:"en"`
	DBPath      string        `env:"LCNOTES_MAILER_DB_PATH"`
	SendTimeout time.Duration `env:"LCNOTES_MAILER_SEND_TIMEOUT" envDefault:"10s"`
	Interval    time.Duration `env:"LCNOTES_MAILER_INTERVAL" envDefault:"24h"`
	HealthPort  int           `env:"LCNOTES_MAILER_HEALTH_PORT" envDefault:"8092"`

	SESRegion           string `env:"LCNOTES_MAILER_SES_REGION"`
	SESConfigurationSet string `env:"LCNOTES_MAILER_SES_CONFIGURATION_SET"`

	SMTPHost     string `env:"LCNOTES_MAILER_SMTP_HOST"`
	SMTPPort     int    `env:"LCNOTES_MAILER_SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"LCNOTES_MAILER_SMTP_USERNAME"`
	SMTPPassword string `env:"LCNOTES_MAILER_SMTP_PASSWORD"`
	SMTPTLS      string `env:"LCNOTES_MAILER_SMTP_TLS" envDefault:"mandatory"`

	AMQPURL   string `env:"LCNOTES_MAILER_AMQP_URL"`
	AMQPQueue string `env:"LCNOTES_MAILER_AMQP_QUEUE" envDefault:"email_notifications"`

	CheckTimeout time.Duration `env:"LCNOTES_MAILER_CHECK_TIMEOUT" envDefault:"3s"`

	EnvFile        string
	ListDeliveries int
	DeliveryID     string
	CheckHealth    bool
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	cfg.EnvFile = DefaultEnvFile
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "Run mode: auto, lambda, once, or schedule")
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "Email transport: log, ses, smtp, or amqp")
	fs.StringVar(&cfg.From, "from", cfg.From, "Sender address")
	fs.Func("to", "Comma-separated recipient addresses (replaces the env list)", func(value string) error {
		cfg.To = splitList(value)
		return nil
	})
	fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "Email locale (en, pt-BR)")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "Delivery log SQLite path; empty disables the log")
	fs.DurationVar(&cfg.SendTimeout, "send-timeout", cfg.SendTimeout, "Timeout for one transport call")
	fs.DurationVar(&cfg.Interval, "interval", cfg.Interval, "Schedule mode interval")
	fs.IntVar(&cfg.HealthPort, "health-port", cfg.HealthPort, "Schedule mode health gRPC port")
	fs.StringVar(&cfg.SESRegion, "ses-region", cfg.SESRegion, "SES region override")
	fs.StringVar(&cfg.SMTPHost, "smtp-host", cfg.SMTPHost, "SMTP relay host")
	fs.IntVar(&cfg.SMTPPort, "smtp-port", cfg.SMTPPort, "SMTP relay port")
	fs.StringVar(&cfg.SMTPTLS, "smtp-tls", cfg.SMTPTLS, "SMTP TLS policy: mandatory, opportunistic, or none")
	fs.StringVar(&cfg.AMQPURL, "amqp-url", cfg.AMQPURL, "AMQP broker URL")
	fs.StringVar(&cfg.AMQPQueue, "amqp-queue", cfg.AMQPQueue, "AMQP notification queue")
	fs.StringVar(&cfg.EnvFile, "env-file", cfg.EnvFile, "Optional .env file loaded before parsing")
	fs.IntVar(&cfg.ListDeliveries, "list-deliveries", 0, "Print the N newest delivery log entries and exit")
	fs.StringVar(&cfg.DeliveryID, "delivery", "", "Print one delivery log entry by id and exit")
	fs.BoolVar(&cfg.CheckHealth, "check-health", false, "Check the local schedule-mode health server and exit")
	fs.DurationVar(&cfg.CheckTimeout, "check-timeout", cfg.CheckTimeout, "How long -check-health waits for SERVING")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	cfg.To = splitList(strings.Join(cfg.To, ","))
	return cfg, nil
}

// EnvFileFromArgs finds the -env-file value ahead of full flag parsing, so
// the file can seed the environment that ParseConfig reads.
func EnvFileFromArgs(args []string) string {
	for i, arg := range args {
		if arg == "--" {
			break
		}
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if !strings.HasPrefix(arg, "-") || name != "env-file" {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return DefaultEnvFile
}

// ResolveMode maps auto to a concrete mode and rejects unknown names.
func ResolveMode(mode string, lookupEnv func(string) (string, bool)) (string, error) {
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}
	switch mode = strings.ToLower(strings.TrimSpace(mode)); mode {
	case "", ModeAuto:
		if value, ok := lookupEnv(lambdaRuntimeEnv); ok && strings.TrimSpace(value) != "" {
			return mailerapp.ModeLambda, nil
		}
		return mailerapp.ModeOnce, nil
	case mailerapp.ModeLambda, mailerapp.ModeOnce, mailerapp.ModeSchedule:
		return mode, nil
	default:
		return "", fmt.Errorf("unsupported mode %q", mode)
	}
}

// Run starts the mailer runtime, or answers an inspection flag and returns.
func Run(ctx context.Context, cfg Config) error {
	return run(ctx, cfg, os.Stdout)
}

func run(ctx context.Context, cfg Config, out io.Writer) error {
	switch {
	case cfg.CheckHealth:
		return mailerapp.CheckScheduler(ctx, cfg.HealthPort, cfg.CheckTimeout)
	case strings.TrimSpace(cfg.DeliveryID) != "" || cfg.ListDeliveries > 0:
		query := mailerapp.DeliveryQuery{ID: cfg.DeliveryID, Limit: cfg.ListDeliveries}
		return mailerapp.InspectDeliveries(ctx, cfg.DBPath, query, out)
	}

	mode, err := ResolveMode(cfg.Mode, nil)
	if err != nil {
		return err
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMailer, func(ctx context.Context) error {
		return mailerapp.Run(ctx, RuntimeConfig(cfg, mode))
	})
}

// RuntimeConfig converts command configuration for the given resolved mode.
func RuntimeConfig(cfg Config, mode string) mailerapp.RuntimeConfig {
	return mailerapp.RuntimeConfig{
		Mode:        mode,
		Transport:   cfg.Transport,
		From:        cfg.From,
		To:          cfg.To,
		Locale:      cfg.Locale,
		DBPath:      cfg.DBPath,
		SendTimeout: cfg.SendTimeout,
		Interval:    cfg.Interval,
		HealthPort:  cfg.HealthPort,
		SES: ses.Config{
			Region:           cfg.SESRegion,
			ConfigurationSet: cfg.SESConfigurationSet,
		},
		SMTP: smtp.Config{
			Host:      cfg.SMTPHost,
			Port:      cfg.SMTPPort,
			Username:  cfg.SMTPUsername,
			Password:  cfg.SMTPPassword,
			TLSPolicy: cfg.SMTPTLS,
			Timeout:   cfg.SendTimeout,
		},
		AMQPURL:   cfg.AMQPURL,
		AMQPQueue: cfg.AMQPQueue,
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
