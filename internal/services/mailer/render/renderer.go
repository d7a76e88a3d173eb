// Package render produces localized copy for the scheduled email.
package render

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	keySubject     = "mail.scheduled.subject"
	keyIntro       = "mail.scheduled.intro"
	keyTrigger     = "mail.scheduled.trigger"
	keyUnnamedRule = "mail.scheduled.rule_unnamed"
	keyReference   = "mail.scheduled.reference"
	keyFooter      = "mail.scheduled.footer"

	dateLayout = "2006-01-02"
	timeLayout = "15:04 MST"
)

var defaults = map[string]string{
	keySubject:     "LC Notes digest for %s",
	keyIntro:       "Here is your scheduled LC Notes email.",
	keyTrigger:     "Sent by %s at %s.",
	keyUnnamedRule: "the notes schedule",
	keyReference:   "Reference: %s",
	keyFooter:      "You receive this message because your address is on the LC Notes mailing list.",
}

var supported = []language.Tag{
	language.English,
	language.BrazilianPortuguese,
}

var matcher = language.NewMatcher(supported)

// Input describes one scheduled email render.
type Input struct {
	TriggeredAt time.Time
	RuleName    string
	TriggerID   string
}

// Output is the rendered email copy.
type Output struct {
	Subject  string
	BodyText string
}

// Localizer is the minimal message-printer contract required by the renderer.
type Localizer interface {
	Sprintf(key message.Reference, args ...any) string
}

// NewPrinter returns a printer for the closest supported locale. Unknown or
// malformed locales fall back to English.
func NewPrinter(locale string) *message.Printer {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		return message.NewPrinter(language.English)
	}
	_, idx, _ := matcher.Match(tag)
	return message.NewPrinter(supported[idx])
}

// Render returns the subject and plain-text body for one trigger.
func Render(loc Localizer, input Input) Output {
	when := input.TriggeredAt.UTC()
	rule := strings.TrimSpace(input.RuleName)
	if rule == "" {
		rule = text(loc, keyUnnamedRule)
	}

	lines := []string{
		text(loc, keyIntro),
		"",
		text(loc, keyTrigger, rule, when.Format(dateLayout+" "+timeLayout)),
	}
	if ref := strings.TrimSpace(input.TriggerID); ref != "" {
		lines = append(lines, text(loc, keyReference, ref))
	}
	lines = append(lines, "", text(loc, keyFooter))

	return Output{
		Subject:  text(loc, keySubject, when.Format(dateLayout)),
		BodyText: strings.Join(lines, "\n"),
	}
}

// text localizes key, falling back to the English default when the
// localizer has no translation for it.
func text(loc Localizer, key string, args ...any) string {
	fallback := fmt.Sprintf(defaults[key], args...)
	if loc == nil {
		return fallback
	}
	value := strings.TrimSpace(loc.Sprintf(key, args...))
	if value == "" || strings.HasPrefix(value, key) {
		return fallback
	}
	return value
}
