// Package mailbox reads the monitored inbox that vendor replies arrive in.
// The Provider interface abstracts the mailbox API so the ingestion pipeline
// can be tested against fakes; the one real implementation speaks the Gmail
// REST API with an OAuth refresh token.
package mailbox

import (
	"context"
	"encoding/base64"
	"time"
)

// Message is one inbound email reduced to what ingestion needs.
type Message struct {
	ID      string
	From    string // raw From header, e.g. `Acme Sales <sales@acme.test>`
	Subject string
	Body    string // decoded text of the first text part found
}

// Provider is the mailbox API surface used by the push listener.
type Provider interface {
	// Watch (re)registers the push subscription and returns its expiration.
	Watch(ctx context.Context) (time.Time, error)

	// HistorySince returns the IDs of messages added to the inbox after the
	// given change-log position.
	HistorySince(ctx context.Context, startHistoryID string) ([]string, error)

	// ListRecentUnread returns up to max unread message IDs. Used to
	// bootstrap when no cursor position is known yet.
	ListRecentUnread(ctx context.Context, max int) ([]string, error)

	// GetMessage fetches and decodes one message.
	GetMessage(ctx context.Context, id string) (*Message, error)
}

// decodeBody handles the mailbox API's base64url payloads, which arrive both
// with and without padding.
func decodeBody(data string) string {
	if b, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(b)
	}
	if b, err := base64.RawURLEncoding.DecodeString(data); err == nil {
		return string(b)
	}
	return ""
}
