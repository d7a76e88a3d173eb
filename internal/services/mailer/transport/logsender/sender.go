// Package logsender is the dry-run transport: it writes messages to a log
// function instead of delivering them.
package logsender

import (
	"context"
	"log"
	"strings"

	"github.com/iuprojects/lcnotes/internal/services/mailer/domain"
)

// Sender logs each message it is asked to send.
type Sender struct {
	logf func(string, ...any)
}

// New creates a dry-run sender. A nil logf uses log.Printf.
func New(logf func(string, ...any)) *Sender {
	if logf == nil {
		logf = log.Printf
	}
	return &Sender{logf: logf}
}

// Name implements domain.Sender.
func (s *Sender) Name() string { return "log" }

// Send implements domain.Sender.
func (s *Sender) Send(ctx context.Context, msg domain.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logf("dry-run email %s from=%s to=%s subject=%q\n%s",
		msg.ID,
		msg.From,
		strings.Join(msg.To, ","),
		msg.Subject,
		msg.BodyText,
	)
	return nil
}
