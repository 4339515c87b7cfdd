// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Vendor
// model; vendor email is the unique natural key and is always persisted
// lowercased.
package repo

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/procurehub/go-procurement-backend/internal/domain"
)

// CreateVendor inserts a new vendor row. The email is lowercased and trimmed
// before persisting so that inbound-mail lookups are case-insensitive.
func CreateVendor(db *gorm.DB, name, email, category string, contactPerson *string) (*domain.Vendor, error) {
	v := &domain.Vendor{
		ID:            uuid.NewString(),
		Name:          strings.TrimSpace(name),
		Email:         strings.ToLower(strings.TrimSpace(email)),
		Category:      strings.TrimSpace(category),
		ContactPerson: contactPerson,
		CreatedAt:     time.Now().UTC(),
	}
	return v, db.Create(v).Error
}

// GetVendorByEmail fetches a vendor by its (lowercased) email address.
// Returns ErrNotFound when no vendor owns the address.
func GetVendorByEmail(db *gorm.DB, email string) (*domain.Vendor, error) {
	var v domain.Vendor
	err := db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&v).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

// GetVendor fetches a vendor by ID. Returns ErrNotFound when missing.
func GetVendor(db *gorm.DB, id string) (*domain.Vendor, error) {
	var v domain.Vendor
	if err := db.Where("id = ?", id).First(&v).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

// ListVendors returns all vendors, newest first.
func ListVendors(db *gorm.DB) ([]domain.Vendor, error) {
	var out []domain.Vendor
	err := db.Order("created_at DESC, id DESC").Find(&out).Error
	return out, err
}

// ListVendorsByIDs returns the vendors matching any of the given IDs.
func ListVendorsByIDs(db *gorm.DB, ids []string) ([]domain.Vendor, error) {
	var out []domain.Vendor
	if len(ids) == 0 {
		return out, nil
	}
	err := db.Where("id IN ?", ids).Find(&out).Error
	return out, err
}

// ListVendorsByCategories returns vendors whose category matches any of the
// given category names (case-insensitive substring match, newest first),
// the relational analogue of a per-category regex query.
func ListVendorsByCategories(db *gorm.DB, categories []string) ([]domain.Vendor, error) {
	var out []domain.Vendor
	if len(categories) == 0 {
		return out, nil
	}
	q := db
	for i, cat := range categories {
		cond := "LOWER(category) LIKE ?"
		pattern := "%" + strings.ToLower(strings.TrimSpace(cat)) + "%"
		if i == 0 {
			q = q.Where(cond, pattern)
		} else {
			q = q.Or(cond, pattern)
		}
	}
	err := q.Order("created_at DESC").Find(&out).Error
	return out, err
}

// DistinctVendorCategories returns the set of category tags currently in use,
// used to hint the extraction oracle.
func DistinctVendorCategories(db *gorm.DB) ([]string, error) {
	var out []string
	err := db.Model(&domain.Vendor{}).Distinct("category").Pluck("category", &out).Error
	return out, err
}
