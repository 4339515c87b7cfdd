package ingest

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/procurehub/go-procurement-backend/internal/http/middleware"
	"github.com/procurehub/go-procurement-backend/internal/mailbox"
	"github.com/procurehub/go-procurement-backend/internal/repo"
)

// bootstrapLimit caps how many recent unread messages are examined when the
// listener starts with no stored cursor.
const bootstrapLimit = 5

// Notification is the decoded payload of a mailbox push: the account it
// concerns and the change-log position as of the push.
type Notification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// pushEnvelope is the Pub/Sub wrapper the webhook receives; the payload is
// base64 inside message.data.
type pushEnvelope struct {
	Message struct {
		Data string `json:"data"`
	} `json:"message"`
}

// DecodeNotification unwraps a raw Pub/Sub push body.
func DecodeNotification(raw []byte) (*Notification, error) {
	var env pushEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode push envelope: %w", err)
	}
	data, err := base64.StdEncoding.DecodeString(env.Message.Data)
	if err != nil {
		return nil, fmt.Errorf("decode push payload: %w", err)
	}
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("decode push notification: %w", err)
	}
	if n.HistoryID == 0 {
		return nil, errors.New("push notification missing historyId")
	}
	return &n, nil
}

// Listener reacts to mailbox push notifications by draining the change log
// between the stored cursor and the notified position. The cursor is
// persisted so a restart resumes instead of reprocessing or skipping.
type Listener struct {
	DB       *gorm.DB
	Provider mailbox.Provider
	Pipeline *Pipeline
	Mailbox  string // account identity the cursor is keyed by
}

// HandleNotification processes one push. Individual messages fail in
// isolation: a bad message is logged and skipped, and the cursor still
// advances to the notified position at the end of the batch. Poison messages
// therefore cannot wedge the listener; replays are absorbed by the
// (rfp, vendor) upsert key.
func (l *Listener) HandleNotification(ctx context.Context, n *Notification) error {
	newCursor := fmt.Sprintf("%d", n.HistoryID)

	cursor, err := repo.GetPushCursor(l.DB, l.Mailbox)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("load push cursor: %w", err)
		}
		// First notification ever: no change-log position to read from,
		// so scan a handful of recent unread messages instead.
		log.Info().Str("mailbox", l.Mailbox).Msg("no push cursor, bootstrapping from recent unread")
		ids, err := l.Provider.ListRecentUnread(ctx, bootstrapLimit)
		if err != nil {
			return fmt.Errorf("bootstrap message list: %w", err)
		}
		l.processBatch(ctx, ids)
		return repo.SetPushCursor(l.DB, l.Mailbox, newCursor)
	}

	ids, err := l.Provider.HistorySince(ctx, cursor)
	if err != nil {
		return fmt.Errorf("read mailbox history: %w", err)
	}
	l.processBatch(ctx, ids)

	return repo.SetPushCursor(l.DB, l.Mailbox, newCursor)
}

// processBatch runs every message through the pipeline with per-message
// error isolation.
func (l *Listener) processBatch(ctx context.Context, ids []string) {
	for _, id := range ids {
		if err := l.processMessage(ctx, id); err != nil {
			middleware.CountProposalDropped(DropReason(err))
			log.Warn().Err(err).Str("message_id", id).Msg("inbound message skipped")
		}
	}
}

func (l *Listener) processMessage(ctx context.Context, id string) error {
	msg, err := l.Provider.GetMessage(ctx, id)
	if err != nil {
		return fmt.Errorf("fetch message: %w", err)
	}
	if !SubjectRelated(msg.Subject) {
		log.Debug().Str("message_id", id).Str("subject", msg.Subject).Msg("subject not rfp-related, skipped")
		return nil
	}
	if _, err := l.Pipeline.ProcessReply(ctx, msg.From, msg.Body); err != nil {
		return err
	}
	middleware.CountProposalIngested("push")
	return nil
}

// StartWatch registers the mailbox push subscription and keeps renewing it
// at roughly 85% of each grant's lifetime until ctx is done. Registration
// failures retry on a fixed backoff; the feature degrades, the process
// stays up.
func (l *Listener) StartWatch(ctx context.Context) {
	go func() {
		const retryDelay = 5 * time.Minute
		for {
			delay := retryDelay
			exp, err := l.Provider.Watch(ctx)
			if err != nil {
				log.Error().Err(err).Msg("mailbox watch registration failed")
			} else if until := time.Until(exp); until > 0 {
				delay = until * 85 / 100
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}
	}()
}
