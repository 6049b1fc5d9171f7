package subscription

import (
	tpl "github.com/ordbokapi/notify/internal/pkg/template"
)

// Subscriber is a verified email with a live unsubscribe token. Unique both
// by email and by token.
type Subscriber struct {
	Email            string
	UnsubscribeToken string
}

// PendingSubscriber is an email that requested subscription but has not yet
// confirmed. The record lives under a TTL and disappears on expiry.
type PendingSubscriber struct {
	Email             string
	VerificationToken string
}

// Job is one queued unit of outbound notification work. It is serialized to
// JSON and stored as a single encrypted string; the field names are the wire
// format and must not change (queued jobs carry no version field).
type Job struct {
	Template             tpl.ID            `json:"template"`
	Subject              string            `json:"subject"`
	Params               map[string]string `json:"params"`
	Addresses            []string          `json:"addresses"`
	NeedsUnsubscribeLink bool              `json:"needsUnsubscribeLink"`
}
