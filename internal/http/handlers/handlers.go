// Handler wiring.
//
// Handlers groups every HTTP endpoint of the API and depends on abstract
// service interfaces so that transport concerns stay separate from business
// logic. Each endpoint file in this package declares the contract it consumes.
package handlers

import (
	"context"

	"github.com/procurehub/go-procurement-backend/internal/domain"
	"github.com/procurehub/go-procurement-backend/internal/fanout"
	"github.com/procurehub/go-procurement-backend/internal/ingest"
)

// ReplyIngestor processes an inbound vendor reply end to end.
type ReplyIngestor interface {
	// ProcessReply extracts structured fields from a raw email body and
	// records the resulting proposal. It returns the stored proposal.
	ProcessReply(ctx context.Context, from, body string) (*domain.Proposal, error)
}

// PushIngestor handles decoded mailbox push notifications.
type PushIngestor interface {
	// HandleNotification advances the mailbox cursor and ingests any new
	// messages the notification points at.
	HandleNotification(ctx context.Context, n *ingest.Notification) error
}

// EventStream exposes the pub/sub hub to SSE handlers.
type EventStream interface {
	// Subscribe registers a listener on a channel; the returned func
	// detaches it and closes the event stream.
	Subscribe(channel string) (<-chan fanout.Event, func())
	// ReplayFrom returns logged events with IDs greater than fromID.
	ReplayFrom(ctx context.Context, channel string, fromID int64) ([]fanout.Event, error)
}

// Handlers groups HTTP endpoints for vendors, RFPs, proposals, inbound
// webhooks, and live event streams.
type Handlers struct {
	vendorSvc   VendorService
	rfpSvc      RFPService
	proposalSvc ProposalService
	ingestor    ReplyIngestor
	push        PushIngestor
	stream      EventStream
}

// New constructs and returns a Handlers instance bound to the given services.
// push may be nil when mailbox monitoring is not configured; the gmail push
// webhook then acknowledges notifications without processing them.
func New(vendorSvc VendorService, rfpSvc RFPService, proposalSvc ProposalService, ingestor ReplyIngestor, push PushIngestor, stream EventStream) *Handlers {
	return &Handlers{
		vendorSvc:   vendorSvc,
		rfpSvc:      rfpSvc,
		proposalSvc: proposalSvc,
		ingestor:    ingestor,
		push:        push,
		stream:      stream,
	}
}
