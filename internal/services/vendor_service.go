// Package services – VendorService
//
// This file implements VendorService, which owns the vendor directory:
// registration with the lowercased-email uniqueness rule, listing, and the
// distinct category set fed to the RFP extraction oracle.
package services

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/procurehub/go-procurement-backend/internal/domain"
	"github.com/procurehub/go-procurement-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// VendorService coordinates vendor registration and lookups.
type VendorService struct {
	DB *gorm.DB
}

var categoryCaser = cases.Title(language.English)

// Register creates a vendor. The email is the natural key; registering an
// address twice (in any casing) returns ErrDuplicateVendor. The category is
// normalized to title case so the directory stays consistent for matching.
func (s *VendorService) Register(ctx context.Context, name, email, category string, contactPerson *string) (*domain.Vendor, error) {
	tr := otel.Tracer("services/VendorService")
	_, span := tr.Start(ctx, "Register",
		trace.WithAttributes(attribute.String("vendor.email", email)),
	)
	defer span.End()

	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	category = strings.TrimSpace(category)
	if name == "" || email == "" || category == "" {
		return nil, ErrInvalidVendor
	}

	if _, err := repo.GetVendorByEmail(s.DB, email); err == nil {
		return nil, ErrDuplicateVendor
	} else if err != repo.ErrNotFound {
		return nil, err
	}

	v, err := repo.CreateVendor(s.DB, name, email, categoryCaser.String(category), contactPerson)
	if err != nil {
		// A concurrent registration can still hit the unique index.
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return nil, ErrDuplicateVendor
		}
		return nil, err
	}
	return v, nil
}

// Get fetches one vendor by ID.
func (s *VendorService) Get(ctx context.Context, id string) (*domain.Vendor, error) {
	tr := otel.Tracer("services/VendorService")
	_, span := tr.Start(ctx, "Get",
		trace.WithAttributes(attribute.String("vendor.id", id)),
	)
	defer span.End()

	v, err := repo.GetVendor(s.DB, id)
	if err != nil {
		if err == repo.ErrNotFound {
			return nil, ErrVendorNotFound
		}
		return nil, err
	}
	return v, nil
}

// List returns all registered vendors, newest first.
func (s *VendorService) List(ctx context.Context) ([]domain.Vendor, error) {
	tr := otel.Tracer("services/VendorService")
	_, span := tr.Start(ctx, "List")
	defer span.End()

	return repo.ListVendors(s.DB)
}

// Categories returns the distinct vendor categories. The extraction oracle
// is constrained to this set when classifying a new RFP.
func (s *VendorService) Categories(ctx context.Context) ([]string, error) {
	tr := otel.Tracer("services/VendorService")
	_, span := tr.Start(ctx, "Categories")
	defer span.End()

	return repo.DistinctVendorCategories(s.DB)
}
