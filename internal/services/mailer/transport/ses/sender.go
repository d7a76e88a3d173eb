// Package ses delivers scheduled email through Amazon SES (v2 API).
package ses

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/aws/smithy-go"

	"github.com/iuprojects/lcnotes/internal/services/mailer/domain"
)

const charset = "UTF-8"

// SES error codes that resending the same message cannot fix.
var permanentCodes = map[string]struct{}{
	"MessageRejected":                    {},
	"MailFromDomainNotVerifiedException": {},
	"BadRequestException":                {},
	"AccountSuspendedException":          {},
	"SendingPausedException":             {},
	"NotFoundException":                  {},
}

type sendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Config selects the SES region and optional configuration set.
type Config struct {
	Region           string
	ConfigurationSet string
}

// Sender sends messages with sesv2.SendEmail.
type Sender struct {
	client           sendEmailAPI
	configurationSet string
}

// New loads the default AWS credential chain, which inside Lambda is the
// function's execution role.
func New(ctx context.Context, cfg Config) (*Sender, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region := strings.TrimSpace(cfg.Region); region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewWithClient(sesv2.NewFromConfig(awsCfg), cfg.ConfigurationSet), nil
}

// NewWithClient wraps an existing SES client.
func NewWithClient(client sendEmailAPI, configurationSet string) *Sender {
	return &Sender{client: client, configurationSet: strings.TrimSpace(configurationSet)}
}

// Name implements domain.Sender.
func (s *Sender) Name() string { return "ses" }

// Send implements domain.Sender. All recipients share one SES request.
func (s *Sender) Send(ctx context.Context, msg domain.Message) error {
	if s == nil || s.client == nil {
		return domain.ErrSenderNotConfigured
	}
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(msg.From),
		Destination:      &types.Destination{ToAddresses: append([]string(nil), msg.To...)},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String(charset)},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(msg.BodyText), Charset: aws.String(charset)},
				},
			},
		},
		EmailTags: messageTags(msg),
	}
	if s.configurationSet != "" {
		input.ConfigurationSetName = aws.String(s.configurationSet)
	}

	if _, err := s.client.SendEmail(ctx, input); err != nil {
		if isPermanent(err) {
			return domain.Permanent(fmt.Errorf("ses send email: %w", err))
		}
		return fmt.Errorf("ses send email: %w", err)
	}
	return nil
}

func messageTags(msg domain.Message) []types.MessageTag {
	var tags []types.MessageTag
	if msg.ID != "" {
		tags = append(tags, types.MessageTag{Name: aws.String("message_id"), Value: aws.String(tagValue(msg.ID))})
	}
	if msg.TriggerID != "" {
		tags = append(tags, types.MessageTag{Name: aws.String("trigger_id"), Value: aws.String(tagValue(msg.TriggerID))})
	}
	return tags
}

// tagValue keeps only the characters SES accepts in tag values.
func tagValue(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

func isPermanent(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	_, ok := permanentCodes[apiErr.ErrorCode()]
	return ok
}
