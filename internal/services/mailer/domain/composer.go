package domain

import (
	"strings"

	"github.com/iuprojects/lcnotes/internal/platform/id"
	"github.com/iuprojects/lcnotes/internal/services/mailer/render"
)

// Composer turns a schedule firing into the configured email.
type Composer struct {
	from  string
	to    []string
	loc   render.Localizer
	newID func() (string, error)
}

// NewComposer builds a composer for a fixed sender and recipient list.
// Recipients are trimmed and de-duplicated case-insensitively, keeping the
// first spelling and the configured order.
func NewComposer(from string, to []string, loc render.Localizer, newID func() (string, error)) *Composer {
	if newID == nil {
		newID = id.NewID
	}
	return &Composer{
		from:  strings.TrimSpace(from),
		to:    normalizeRecipients(to),
		loc:   loc,
		newID: newID,
	}
}

// Validate reports the configuration error Compose would hit on every
// trigger, so callers can refuse to start instead.
func (c *Composer) Validate() error {
	if c == nil {
		return ErrComposerNotConfigured
	}
	if c.from == "" {
		return ErrSenderAddressRequired
	}
	if len(c.to) == 0 {
		return ErrRecipientRequired
	}
	return nil
}

// Compose renders the message for one trigger.
func (c *Composer) Compose(trigger ScheduledTrigger) (Message, error) {
	if err := c.Validate(); err != nil {
		return Message{}, err
	}
	if c.newID == nil {
		return Message{}, ErrIDGeneratorNotConfigured
	}
	messageID, err := c.newID()
	if err != nil {
		return Message{}, err
	}

	out := render.Render(c.loc, render.Input{
		TriggeredAt: trigger.Time,
		RuleName:    trigger.RuleName(),
		TriggerID:   trigger.ID,
	})
	to := make([]string, len(c.to))
	copy(to, c.to)
	return Message{
		ID:        messageID,
		TriggerID: trigger.ID,
		From:      c.from,
		To:        to,
		Subject:   out.Subject,
		BodyText:  out.BodyText,
	}, nil
}

// Recipients returns a copy of the normalized recipient list.
func (c *Composer) Recipients() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.to))
	copy(out, c.to)
	return out
}

func normalizeRecipients(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, value := range raw {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		key := strings.ToLower(value)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, value)
	}
	return out
}
