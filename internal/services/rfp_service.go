// Package services – RFPService
//
// This file implements RFPService, which owns the RFP lifecycle: creation
// from a free-text description via the extraction oracle, vendor matching,
// draft management, dispatch over email, and status transitions.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/procurehub/go-procurement-backend/internal/ai"
	"github.com/procurehub/go-procurement-backend/internal/domain"
	"github.com/procurehub/go-procurement-backend/internal/mail"
	"github.com/procurehub/go-procurement-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// dispatchMarker seeds the proposal row of every invited vendor so inbound
// replies can be correlated back to the RFP before the vendor has answered.
const dispatchMarker = "Email sent via automated system"

// RFPService coordinates RFP creation, dispatch, and lifecycle transitions.
type RFPService struct {
	DB     *gorm.DB
	Oracle ai.Oracle
	Mailer mail.Mailer

	// Proposals runs the lazy compliance pass after a status change.
	Proposals *ProposalService
}

// RFPWithVendors pairs a freshly created RFP with the vendors matched to its
// extracted category set.
type RFPWithVendors struct {
	RFP            *domain.RFP     `json:"rfp"`
	MatchedVendors []domain.Vendor `json:"matched_vendors"`
}

// RFPWithStats pairs an RFP with its response snapshot for listings.
type RFPWithStats struct {
	domain.RFP
	ResponseStats domain.ResponseStats `json:"response_stats"`
}

// VendorDispatch is the per-vendor outcome of one dispatch.
type VendorDispatch struct {
	VendorID   string `json:"vendor_id"`
	VendorName string `json:"vendor_name"`
	Email      string `json:"email"`
	Error      string `json:"error,omitempty"`
}

// DispatchResult summarizes a dispatch: which vendors were reached and which
// deliveries failed. Partial failure is a normal outcome, not an error.
type DispatchResult struct {
	RFP    *domain.RFP      `json:"rfp"`
	Sent   []VendorDispatch `json:"sent"`
	Failed []VendorDispatch `json:"failed"`
}

// ParseAndCreate turns a free-text procurement description into a draft RFP.
// The oracle extracts structured requirements constrained to the known
// vendor categories; the original description is kept verbatim alongside
// them. Vendors matching the extracted category set are returned as dispatch
// candidates.
func (s *RFPService) ParseAndCreate(ctx context.Context, description string) (*RFPWithVendors, error) {
	tr := otel.Tracer("services/RFPService")
	ctx, span := tr.Start(ctx, "ParseAndCreate")
	defer span.End()

	description = strings.TrimSpace(description)
	if description == "" {
		return nil, ErrEmptyDescription
	}

	categories, err := repo.DistinctVendorCategories(s.DB)
	if err != nil {
		return nil, err
	}

	req, err := s.Oracle.ParseRFPDescription(ctx, description, categories)
	if err != nil {
		log.Error().Err(err).Msg("rfp description extraction failed")
		return nil, fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}

	r := &domain.RFP{
		OriginalDescription: description,
		Items:               req.Items,
		Budget:              req.Budget,
		Deadline:            req.Deadline,
		PaymentTerms:        req.PaymentTerms,
		Warranty:            req.Warranty,
		Category:            req.Category,
		SuggestedCategories: req.SuggestedCategories,
		Status:              domain.StatusDraft,
	}
	if err := repo.CreateRFP(s.DB, r); err != nil {
		return nil, err
	}

	matched, err := s.matchVendors(req)
	if err != nil {
		return nil, err
	}
	return &RFPWithVendors{RFP: r, MatchedVendors: matched}, nil
}

// matchVendors looks up vendors for the extracted category plus any
// suggested alternatives. No category means every vendor is a candidate.
func (s *RFPService) matchVendors(req *ai.RFPRequirements) ([]domain.Vendor, error) {
	var cats []string
	if req.Category != nil {
		cats = append(cats, *req.Category)
	}
	cats = append(cats, req.SuggestedCategories...)
	if len(cats) == 0 {
		return repo.ListVendors(s.DB)
	}
	return repo.ListVendorsByCategories(s.DB, cats)
}

// Get fetches one RFP by ID.
func (s *RFPService) Get(ctx context.Context, id string) (*domain.RFP, error) {
	tr := otel.Tracer("services/RFPService")
	_, span := tr.Start(ctx, "Get",
		trace.WithAttributes(attribute.String("rfp.id", id)),
	)
	defer span.End()

	r, err := repo.GetRFP(s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrRFPNotFound
		}
		return nil, err
	}
	return r, nil
}

// Dispatch emails the RFP invitation to the given vendors (falling back to
// the draft's selected set when none are named). Each successful delivery
// adds the vendor to the sent set and seeds its placeholder proposal; any
// success publishes a draft. Per-vendor failures are collected, and only a
// dispatch where every delivery failed is an error.
func (s *RFPService) Dispatch(ctx context.Context, rfpID string, vendorIDs []string) (*DispatchResult, error) {
	tr := otel.Tracer("services/RFPService")
	ctx, span := tr.Start(ctx, "Dispatch",
		trace.WithAttributes(
			attribute.String("rfp.id", rfpID),
			attribute.Int("vendor.count", len(vendorIDs)),
		),
	)
	defer span.End()

	r, err := repo.GetRFP(s.DB, rfpID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrRFPNotFound
		}
		return nil, err
	}

	if len(vendorIDs) == 0 {
		vendorIDs, err = repo.VendorIDsByRole(s.DB, rfpID, domain.RoleSelected)
		if err != nil {
			return nil, err
		}
	}
	if len(vendorIDs) == 0 {
		return nil, ErrNoVendors
	}

	vendors, err := repo.ListVendorsByIDs(s.DB, vendorIDs)
	if err != nil {
		return nil, err
	}
	if len(vendors) == 0 {
		return nil, ErrNoVendors
	}

	result := &DispatchResult{RFP: r}
	for _, v := range vendors {
		if err := s.dispatchOne(ctx, r, &v); err != nil {
			log.Warn().Err(err).Str("vendor", v.Name).Str("rfp_id", r.ID).Msg("rfp delivery failed")
			result.Failed = append(result.Failed, VendorDispatch{
				VendorID: v.ID, VendorName: v.Name, Email: v.Email, Error: err.Error(),
			})
			continue
		}
		result.Sent = append(result.Sent, VendorDispatch{
			VendorID: v.ID, VendorName: v.Name, Email: v.Email,
		})
	}

	if len(result.Sent) == 0 {
		return result, ErrDispatchFailed
	}

	if r.Status == domain.StatusDraft {
		r.Status = domain.StatusPublished
		r.UpdatedAt = time.Now().UTC()
		if err := repo.SaveRFP(s.DB, r); err != nil {
			return result, err
		}
	}
	result.RFP = r

	log.Info().
		Str("rfp_id", r.ID).
		Int("sent", len(result.Sent)).
		Int("failed", len(result.Failed)).
		Msg("rfp dispatched")
	return result, nil
}

// dispatchOne delivers to a single vendor and records the sent membership
// plus the correlation placeholder.
func (s *RFPService) dispatchOne(ctx context.Context, r *domain.RFP, v *domain.Vendor) error {
	html, err := mail.RenderRFPHTML(v.Name, r)
	if err != nil {
		return err
	}
	if _, err := s.Mailer.Send(ctx, v.Email, mail.RFPSubject, html); err != nil {
		return err
	}
	if err := repo.AddVendorRole(s.DB, r.ID, v.ID, domain.RoleSent); err != nil {
		return err
	}
	return repo.SeedProposal(s.DB, r.ID, v.ID, dispatchMarker)
}

// SaveDraft stores the selected vendor set on a draft RFP, replacing any
// previous selection.
func (s *RFPService) SaveDraft(ctx context.Context, rfpID string, vendorIDs []string) (*domain.RFP, error) {
	tr := otel.Tracer("services/RFPService")
	_, span := tr.Start(ctx, "SaveDraft",
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
	if r.Status != domain.StatusDraft {
		return nil, ErrNotDraft
	}
	if err := repo.ReplaceVendorRole(s.DB, rfpID, domain.RoleSelected, vendorIDs); err != nil {
		return nil, err
	}
	r.UpdatedAt = time.Now().UTC()
	if err := repo.SaveRFP(s.DB, r); err != nil {
		return nil, err
	}
	return r, nil
}

// ListDrafts returns all draft RFPs, newest first, each with its selected
// vendors resolved.
func (s *RFPService) ListDrafts(ctx context.Context) ([]RFPWithVendors, error) {
	tr := otel.Tracer("services/RFPService")
	_, span := tr.Start(ctx, "ListDrafts")
	defer span.End()

	drafts, err := repo.ListRFPsByStatus(s.DB, domain.StatusDraft)
	if err != nil {
		return nil, err
	}
	out := make([]RFPWithVendors, 0, len(drafts))
	for i := range drafts {
		ids, err := repo.VendorIDsByRole(s.DB, drafts[i].ID, domain.RoleSelected)
		if err != nil {
			return nil, err
		}
		vendors, err := repo.ListVendorsByIDs(s.DB, ids)
		if err != nil {
			return nil, err
		}
		out = append(out, RFPWithVendors{RFP: &drafts[i], MatchedVendors: vendors})
	}
	return out, nil
}

// DeleteDraft removes a draft RFP. Published and closed RFPs cannot be
// deleted; they carry dispatch and response history.
func (s *RFPService) DeleteDraft(ctx context.Context, rfpID string) error {
	tr := otel.Tracer("services/RFPService")
	_, span := tr.Start(ctx, "DeleteDraft",
		trace.WithAttributes(attribute.String("rfp.id", rfpID)),
	)
	defer span.End()

	r, err := repo.GetRFP(s.DB, rfpID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrRFPNotFound
		}
		return err
	}
	if r.Status != domain.StatusDraft {
		return ErrNotDraft
	}
	return repo.DeleteRFP(s.DB, rfpID)
}

// ListActive returns published RFPs with their response snapshots, newest
// first.
func (s *RFPService) ListActive(ctx context.Context) ([]RFPWithStats, error) {
	tr := otel.Tracer("services/RFPService")
	_, span := tr.Start(ctx, "ListActive")
	defer span.End()

	rfps, err := repo.ListRFPsByStatus(s.DB, domain.StatusPublished)
	if err != nil {
		return nil, err
	}
	out := make([]RFPWithStats, 0, len(rfps))
	for i := range rfps {
		stats, err := repo.RFPResponseStats(s.DB, rfps[i].ID)
		if err != nil {
			return nil, err
		}
		out = append(out, RFPWithStats{RFP: rfps[i], ResponseStats: stats})
	}
	return out, nil
}

// Stats returns the response snapshot for one RFP.
func (s *RFPService) Stats(ctx context.Context, rfpID string) (domain.ResponseStats, error) {
	tr := otel.Tracer("services/RFPService")
	_, span := tr.Start(ctx, "Stats",
		trace.WithAttributes(attribute.String("rfp.id", rfpID)),
	)
	defer span.End()

	if _, err := repo.GetRFP(s.DB, rfpID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.ResponseStats{}, ErrRFPNotFound
		}
		return domain.ResponseStats{}, err
	}
	return repo.RFPResponseStats(s.DB, rfpID)
}

// UpdateStatus transitions an RFP's lifecycle state. The legacy alias
// "completed" maps to closed. After a transition the lazy compliance pass
// runs so closing an RFP leaves every proposal with a verdict.
func (s *RFPService) UpdateStatus(ctx context.Context, rfpID, status string) (*domain.RFP, error) {
	tr := otel.Tracer("services/RFPService")
	ctx, span := tr.Start(ctx, "UpdateStatus",
		trace.WithAttributes(
			attribute.String("rfp.id", rfpID),
			attribute.String("rfp.status", status),
		),
	)
	defer span.End()

	if status == "completed" {
		status = string(domain.StatusClosed)
	}
	next := domain.RFPStatus(status)
	switch next {
	case domain.StatusDraft, domain.StatusPublished, domain.StatusClosed:
	default:
		return nil, ErrInvalidStatus
	}

	r, err := repo.GetRFP(s.DB, rfpID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrRFPNotFound
		}
		return nil, err
	}
	r.Status = next
	r.UpdatedAt = time.Now().UTC()
	if err := repo.SaveRFP(s.DB, r); err != nil {
		return nil, err
	}

	if s.Proposals != nil {
		if err := s.Proposals.EnsureComplianceForRFP(ctx, r); err != nil {
			log.Warn().Err(err).Str("rfp_id", r.ID).Msg("compliance pass after status change failed")
		}
	}
	return r, nil
}
