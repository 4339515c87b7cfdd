// Package services – ProposalService
//
// This file implements ProposalService, which owns proposal reads, manual
// submission, and the lazy compliance engine: verdicts are computed on first
// read after ingestion and cached until explicitly invalidated, so repeated
// reads cost nothing and the oracle is only consulted when a reply changed.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/procurehub/go-procurement-backend/internal/ai"
	"github.com/procurehub/go-procurement-backend/internal/domain"
	"github.com/procurehub/go-procurement-backend/internal/fanout"
	"github.com/procurehub/go-procurement-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ProposalService coordinates proposal persistence, evaluation, and fanout.
type ProposalService struct {
	DB     *gorm.DB
	Oracle ai.Oracle
	Hub    *fanout.Hub
}

// SubmitManual records a vendor reply pasted in by an operator. It runs the
// same extract-then-upsert sequence as the automated pipeline but writes the
// body to the manual-submission field and requires explicit RFP and vendor
// identifiers instead of correlating.
func (s *ProposalService) SubmitManual(ctx context.Context, rfpID, vendorID, emailBody string) (*domain.Proposal, error) {
	tr := otel.Tracer("services/ProposalService")
	ctx, span := tr.Start(ctx, "SubmitManual",
		trace.WithAttributes(
			attribute.String("rfp.id", rfpID),
			attribute.String("vendor.id", vendorID),
		),
	)
	defer span.End()

	if emailBody == "" {
		return nil, ErrEmptyProposal
	}
	if _, err := repo.GetRFP(s.DB, rfpID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrRFPNotFound
		}
		return nil, err
	}
	if _, err := repo.GetVendor(s.DB, vendorID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrVendorNotFound
		}
		return nil, err
	}

	fields, err := s.Oracle.ParseProposalEmail(ctx, emailBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}

	p, err := repo.UpsertProposal(s.DB, rfpID, vendorID, domain.ManualReply(emailBody), fields)
	if err != nil {
		return nil, err
	}
	if err := repo.AddVendorRole(s.DB, rfpID, vendorID, domain.RoleResponded); err != nil {
		return p, err
	}

	s.notify(rfpID, p)
	return p, nil
}

// Get fetches one proposal by ID.
func (s *ProposalService) Get(ctx context.Context, id string) (*domain.Proposal, error) {
	tr := otel.Tracer("services/ProposalService")
	_, span := tr.Start(ctx, "Get",
		trace.WithAttributes(attribute.String("proposal.id", id)),
	)
	defer span.End()

	p, err := repo.GetProposal(s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrProposalNotFound
		}
		return nil, err
	}
	return p, nil
}

// ListForRFP returns an RFP's proposals with vendor identity preloaded,
// running the lazy compliance pass first so every evaluable proposal carries
// a verdict.
func (s *ProposalService) ListForRFP(ctx context.Context, rfpID string) ([]domain.Proposal, error) {
	tr := otel.Tracer("services/ProposalService")
	ctx, span := tr.Start(ctx, "ListForRFP",
		trace.WithAttributes(attribute.String("rfp.id", rfpID)),
	)
	defer span.End()

	r, err := repo.GetRFP(s.DB, rfpID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrRFPNotFound
		}
		return nil, err
	}

	if err := s.EnsureComplianceForRFP(ctx, r); err != nil {
		log.Warn().Err(err).Str("rfp_id", rfpID).Msg("compliance pass incomplete")
	}
	return repo.ListProposalsForRFP(s.DB, rfpID)
}

// ListAll returns every proposal with vendor identity preloaded.
func (s *ProposalService) ListAll(ctx context.Context) ([]domain.Proposal, error) {
	tr := otel.Tracer("services/ProposalService")
	_, span := tr.Start(ctx, "ListAll")
	defer span.End()

	return repo.ListAllProposals(s.DB)
}

// InvalidateCompliance clears a proposal's cached verdict so the next read
// re-evaluates it.
func (s *ProposalService) InvalidateCompliance(ctx context.Context, proposalID string) error {
	tr := otel.Tracer("services/ProposalService")
	_, span := tr.Start(ctx, "InvalidateCompliance",
		trace.WithAttributes(attribute.String("proposal.id", proposalID)),
	)
	defer span.End()

	if _, err := repo.GetProposal(s.DB, proposalID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrProposalNotFound
		}
		return err
	}
	return repo.ResetCompliance(s.DB, proposalID)
}

// EnsureComplianceForRFP evaluates every unverdicted, evaluable proposal of
// an RFP concurrently. Each evaluation fails in isolation: an oracle error
// on one proposal is logged, the verdict stays unset for the next read, and
// the rest of the batch still completes.
func (s *ProposalService) EnsureComplianceForRFP(ctx context.Context, r *domain.RFP) error {
	proposals, err := repo.ListProposalsForRFP(s.DB, r.ID)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	for i := range proposals {
		p := proposals[i]
		if p.Fulfilled != nil || !evaluable(&p) {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.evaluateOne(ctx, r, &p)
		}()
	}
	wg.Wait()
	return nil
}

// evaluable reports whether a proposal has content worth judging: anything
// extracted, or a reply body beyond the dispatch placeholder.
func evaluable(p *domain.Proposal) bool {
	if p.TotalPrice != nil || p.DeliveryDate != nil || p.WarrantyProvided != nil || p.Notes != nil {
		return true
	}
	return p.VendorResponseEmail != ""
}

func (s *ProposalService) evaluateOne(ctx context.Context, r *domain.RFP, p *domain.Proposal) {
	verdict, err := s.Oracle.CompareProposalToRFP(ctx, r, p)
	if err != nil {
		log.Warn().Err(err).Str("proposal_id", p.ID).Msg("compliance evaluation failed")
		return
	}
	if err := repo.SaveCompliance(s.DB, p.ID, verdict.Fulfilled, verdict.Reasons, verdict.Summary); err != nil {
		log.Error().Err(err).Str("proposal_id", p.ID).Msg("compliance verdict not saved")
	}
}

// notify mirrors the ingestion pipeline's fanout for the manual path.
func (s *ProposalService) notify(rfpID string, p *domain.Proposal) {
	if s.Hub == nil {
		return
	}
	stats, err := repo.RFPResponseStats(s.DB, rfpID)
	if err != nil {
		log.Warn().Err(err).Str("rfp_id", rfpID).Msg("response stats unavailable for fanout")
	}
	ev := fanout.ProposalEvent{Proposal: p, RFPID: rfpID, ResponseStats: stats}
	s.Hub.Publish(fanout.RFPChannel(rfpID), fanout.EventNewProposal, ev)
	s.Hub.Publish(fanout.GlobalChannel, fanout.EventProposalUpdate, ev)
}
