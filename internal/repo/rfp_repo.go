// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the RFP model
// and the rfp_vendors membership table that backs the sent/responded/selected
// vendor sets.
package repo

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/procurehub/go-procurement-backend/internal/domain"
)

// CreateRFP inserts a new RFP row in draft state.
func CreateRFP(db *gorm.DB, r *domain.RFP) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = domain.StatusDraft
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	return db.Create(r).Error
}

// GetRFP fetches an RFP by ID. Returns ErrNotFound when missing.
func GetRFP(db *gorm.DB, id string) (*domain.RFP, error) {
	var r domain.RFP
	if err := db.Where("id = ?", id).First(&r).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

// SaveRFP persists all fields of an already-loaded RFP.
func SaveRFP(db *gorm.DB, r *domain.RFP) error {
	return db.Save(r).Error
}

// DeleteRFP hard-deletes an RFP row. Membership rows are left in place;
// drafts are pre-dispatch so none exist for them.
func DeleteRFP(db *gorm.DB, id string) error {
	return db.Where("id = ?", id).Delete(&domain.RFP{}).Error
}

// ListRFPsByStatus returns RFPs in the given lifecycle state, newest first.
func ListRFPsByStatus(db *gorm.DB, status domain.RFPStatus) ([]domain.RFP, error) {
	var out []domain.RFP
	err := db.Where("status = ?", status).Order("created_at DESC, id DESC").Find(&out).Error
	return out, err
}

// AddVendorRole adds a vendor to one of the RFP's membership sets. The insert
// ignores the unique-index conflict, so calling it any number of times for
// the same (rfp, vendor, role) leaves exactly one row, i.e. set union.
func AddVendorRole(db *gorm.DB, rfpID, vendorID string, role domain.VendorRole) error {
	row := &domain.RFPVendor{
		ID:        uuid.NewString(),
		RFPID:     rfpID,
		VendorID:  vendorID,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "rfp_id"}, {Name: "vendor_id"}, {Name: "role"}},
		DoNothing: true,
	}).Create(row).Error
}

// ReplaceVendorRole overwrites one membership set for an RFP with exactly the
// given vendor IDs (used when a draft's selected vendors are saved again).
func ReplaceVendorRole(db *gorm.DB, rfpID string, role domain.VendorRole, vendorIDs []string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("rfp_id = ? AND role = ?", rfpID, role).
			Delete(&domain.RFPVendor{}).Error; err != nil {
			return err
		}
		for _, vid := range vendorIDs {
			if err := AddVendorRole(tx, rfpID, vid, role); err != nil {
				return err
			}
		}
		return nil
	})
}

// VendorIDsByRole returns the vendor IDs in one of the RFP's membership sets.
func VendorIDsByRole(db *gorm.DB, rfpID string, role domain.VendorRole) ([]string, error) {
	var out []string
	err := db.Model(&domain.RFPVendor{}).
		Where("rfp_id = ? AND role = ?", rfpID, role).
		Order("created_at ASC").
		Pluck("vendor_id", &out).Error
	return out, err
}

// CountVendorRole returns the size of one membership set.
func CountVendorRole(db *gorm.DB, rfpID string, role domain.VendorRole) (int64, error) {
	var n int64
	err := db.Model(&domain.RFPVendor{}).
		Where("rfp_id = ? AND role = ?", rfpID, role).
		Count(&n).Error
	return n, err
}

// RFPResponseStats computes the response snapshot for an RFP from its
// membership sets.
func RFPResponseStats(db *gorm.DB, rfpID string) (domain.ResponseStats, error) {
	responded, err := CountVendorRole(db, rfpID, domain.RoleResponded)
	if err != nil {
		return domain.ResponseStats{}, err
	}
	contacted, err := CountVendorRole(db, rfpID, domain.RoleSent)
	if err != nil {
		return domain.ResponseStats{}, err
	}
	return domain.NewResponseStats(int(responded), int(contacted)), nil
}
