// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Proposal
// model, including the conditional upsert keyed by the (rfp_id, vendor_id)
// pair, which is the single concurrency guard for racing ingestions.
package repo

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/procurehub/go-procurement-backend/internal/domain"
)

// UpsertProposal creates or replaces the proposal for the (rfpID, vendorID)
// pair in one conditional write. On conflict the content fields are
// overwritten and receivedAt refreshed; only the raw-body column matching the
// reply source is touched, and the cached compliance verdict is deliberately
// left as-is. Returns the stored row.
func UpsertProposal(db *gorm.DB, rfpID, vendorID string, source domain.ReplySource, fields domain.ProposalFields) (*domain.Proposal, error) {
	now := time.Now().UTC()

	p := &domain.Proposal{
		ID:               uuid.NewString(),
		RFPID:            rfpID,
		VendorID:         vendorID,
		TotalPrice:       fields.TotalPrice,
		DeliveryDate:     fields.DeliveryDate,
		WarrantyProvided: fields.WarrantyProvided,
		Notes:            fields.Notes,
		ReceivedAt:       now,
		CreatedAt:        now,
	}
	source.Apply(p)

	bodyColumn := "raw_email_body"
	if source.IsManual() {
		bodyColumn = "vendor_response_email"
	}

	assignments := map[string]interface{}{
		bodyColumn:          source.Body(),
		"total_price":       fields.TotalPrice,
		"delivery_date":     fields.DeliveryDate,
		"warranty_provided": fields.WarrantyProvided,
		"notes":             fields.Notes,
		"received_at":       now,
		"updated_at":        now,
	}

	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "rfp_id"}, {Name: "vendor_id"}},
		DoUpdates: clause.Assignments(assignments),
	}).Create(p).Error
	if err != nil {
		return nil, err
	}

	// The conflict path keeps the existing row ID; re-read to return the
	// stored state either way.
	return GetProposalForPair(db, rfpID, vendorID)
}

// SeedProposal records the dispatch placeholder for a pair without touching
// extracted fields, mirroring the original's "Email sent via automated
// system" marker row. Existing rows are left untouched.
func SeedProposal(db *gorm.DB, rfpID, vendorID, marker string) error {
	now := time.Now().UTC()
	p := &domain.Proposal{
		ID:           uuid.NewString(),
		RFPID:        rfpID,
		VendorID:     vendorID,
		RawEmailBody: marker,
		ReceivedAt:   now,
		CreatedAt:    now,
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "rfp_id"}, {Name: "vendor_id"}},
		DoNothing: true,
	}).Create(p).Error
}

// GetProposal fetches a proposal by ID. Returns ErrNotFound when missing.
func GetProposal(db *gorm.DB, id string) (*domain.Proposal, error) {
	var p domain.Proposal
	if err := db.Preload("Vendor").Where("id = ?", id).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// GetProposalForPair fetches the single proposal owned by an (RFP, vendor)
// pair. Returns ErrNotFound when the pair has none.
func GetProposalForPair(db *gorm.DB, rfpID, vendorID string) (*domain.Proposal, error) {
	var p domain.Proposal
	err := db.Preload("Vendor").
		Where("rfp_id = ? AND vendor_id = ?", rfpID, vendorID).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// LatestProposalForVendor returns the vendor's most recently created
// proposal. This is the correlation heuristic's lookup: inbound mail carries
// no RFP identifier, so the newest proposal's RFP reference is used.
// Returns ErrNotFound when the vendor has never been sent an RFP.
func LatestProposalForVendor(db *gorm.DB, vendorID string) (*domain.Proposal, error) {
	var p domain.Proposal
	err := db.Where("vendor_id = ?", vendorID).
		Order("created_at DESC, id DESC").
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// ListProposalsForRFP returns all proposals for an RFP with vendor identity
// preloaded, newest reply first.
func ListProposalsForRFP(db *gorm.DB, rfpID string) ([]domain.Proposal, error) {
	var out []domain.Proposal
	err := db.Preload("Vendor").
		Where("rfp_id = ?", rfpID).
		Order("received_at DESC, id DESC").
		Find(&out).Error
	return out, err
}

// ListAllProposals returns every proposal with vendor identity preloaded,
// newest reply first.
func ListAllProposals(db *gorm.DB) ([]domain.Proposal, error) {
	var out []domain.Proposal
	err := db.Preload("Vendor").
		Order("received_at DESC, id DESC").
		Find(&out).Error
	return out, err
}

// SaveCompliance caches an evaluation verdict on a proposal. Struct-based
// updates are used (with an explicit column selection) so the JSON serializer
// runs for the reasons list and a false verdict is still written.
func SaveCompliance(db *gorm.DB, proposalID string, fulfilled bool, reasons []string, summary string) error {
	return db.Model(&domain.Proposal{}).
		Where("id = ?", proposalID).
		Select("fulfilled", "reasons", "compliance_summary").
		Updates(domain.Proposal{
			Fulfilled:         &fulfilled,
			Reasons:           reasons,
			ComplianceSummary: summary,
		}).Error
}

// ResetCompliance clears a cached verdict back to the unevaluated tri-state
// so the next read re-runs the evaluator.
func ResetCompliance(db *gorm.DB, proposalID string) error {
	return db.Model(&domain.Proposal{}).
		Where("id = ?", proposalID).
		Select("fulfilled", "reasons", "compliance_summary").
		Updates(domain.Proposal{}).Error
}
