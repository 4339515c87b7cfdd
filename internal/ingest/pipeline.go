package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/procurehub/go-procurement-backend/internal/ai"
	"github.com/procurehub/go-procurement-backend/internal/domain"
	"github.com/procurehub/go-procurement-backend/internal/fanout"
	"github.com/procurehub/go-procurement-backend/internal/repo"
)

// DropReason classifies a ProcessReply failure for metrics labels.
func DropReason(err error) string {
	switch {
	case errors.Is(err, ErrUnknownVendor):
		return "unknown_vendor"
	case errors.Is(err, ErrNoOpenRFP):
		return "no_rfp"
	case errors.Is(err, ErrEmptyBody):
		return "empty_body"
	case errors.Is(err, ai.ErrExtraction):
		return "extraction"
	default:
		return "error"
	}
}

// Pipeline processes one vendor reply end to end. Extraction runs strictly
// before any write: a reply that cannot be extracted leaves no trace.
type Pipeline struct {
	DB       *gorm.DB
	Oracle   ai.Oracle
	Hub      *fanout.Hub
	Resolver RFPResolver
}

// NewPipeline wires a pipeline with the default recency-based correlator.
func NewPipeline(db *gorm.DB, oracle ai.Oracle, hub *fanout.Hub) *Pipeline {
	return &Pipeline{DB: db, Oracle: oracle, Hub: hub, Resolver: LatestProposalResolver{}}
}

// ProcessReply ingests one inbound email body attributed to the given From
// header. On success the stored proposal is returned and subscribers have
// been notified. Failures before the upsert are side-effect free.
func (p *Pipeline) ProcessReply(ctx context.Context, from, body string) (*domain.Proposal, error) {
	if body == "" {
		return nil, ErrEmptyBody
	}

	addr := SenderAddress(from)
	vendor, err := repo.GetVendorByEmail(p.DB, addr)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownVendor, addr)
		}
		return nil, err
	}

	rfpID, err := p.Resolver.ResolveRFP(p.DB, vendor.ID)
	if err != nil {
		return nil, err
	}

	fields, err := p.Oracle.ParseProposalEmail(ctx, body)
	if err != nil {
		return nil, err
	}

	proposal, err := repo.UpsertProposal(p.DB, rfpID, vendor.ID, domain.AutomatedReply(body), fields)
	if err != nil {
		return nil, fmt.Errorf("store proposal: %w", err)
	}

	if err := repo.AddVendorRole(p.DB, rfpID, vendor.ID, domain.RoleResponded); err != nil {
		// The proposal is stored; surface the inconsistency but do not
		// unwind it. The next reply from this vendor repairs the set.
		return proposal, fmt.Errorf("record responded vendor: %w", err)
	}

	p.notify(rfpID, proposal)

	log.Info().
		Str("vendor", vendor.Name).
		Str("rfp_id", rfpID).
		Msg("vendor reply ingested")
	return proposal, nil
}

// notify publishes the proposal event on the RFP's channel and the global
// channel. Stats failures degrade to a zero snapshot rather than losing the
// notification.
func (p *Pipeline) notify(rfpID string, proposal *domain.Proposal) {
	if p.Hub == nil {
		return
	}
	stats, err := repo.RFPResponseStats(p.DB, rfpID)
	if err != nil {
		log.Warn().Err(err).Str("rfp_id", rfpID).Msg("response stats unavailable for fanout")
	}
	ev := fanout.ProposalEvent{
		Proposal:      proposal,
		RFPID:         rfpID,
		ResponseStats: stats,
	}
	p.Hub.Publish(fanout.RFPChannel(rfpID), fanout.EventNewProposal, ev)
	p.Hub.Publish(fanout.GlobalChannel, fanout.EventProposalUpdate, ev)
}
