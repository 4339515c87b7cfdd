package services

import (
	"context"
	"errors"
	"testing"
)

func TestVendorRegister(t *testing.T) {
	svc := &VendorService{DB: newTestDB(t)}

	v, err := svc.Register(context.Background(), "Acme Supplies", "Sales@ACME.test", "it hardware", nil)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if v.Email != "sales@acme.test" {
		t.Errorf("email = %q, want lowercased", v.Email)
	}
	if v.Category != "It Hardware" {
		t.Errorf("category = %q, want title-cased", v.Category)
	}
	if v.ID == "" {
		t.Error("missing vendor id")
	}
}

func TestVendorRegister_DuplicateEmail(t *testing.T) {
	svc := &VendorService{DB: newTestDB(t)}
	ctx := context.Background()

	if _, err := svc.Register(ctx, "Acme", "sales@acme.test", "IT", nil); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := svc.Register(ctx, "Acme Again", "SALES@acme.test", "IT", nil)
	if !errors.Is(err, ErrDuplicateVendor) {
		t.Fatalf("err = %v, want ErrDuplicateVendor", err)
	}
}

func TestVendorRegister_MissingFields(t *testing.T) {
	svc := &VendorService{DB: newTestDB(t)}
	ctx := context.Background()

	for _, tc := range []struct{ name, email, category string }{
		{"", "a@b.c", "IT"},
		{"Acme", "", "IT"},
		{"Acme", "a@b.c", ""},
		{"  ", "a@b.c", "IT"},
	} {
		if _, err := svc.Register(ctx, tc.name, tc.email, tc.category, nil); !errors.Is(err, ErrInvalidVendor) {
			t.Errorf("Register(%q,%q,%q) err = %v, want ErrInvalidVendor", tc.name, tc.email, tc.category, err)
		}
	}
}

func TestVendorGet_NotFound(t *testing.T) {
	svc := &VendorService{DB: newTestDB(t)}
	if _, err := svc.Get(context.Background(), "nope"); !errors.Is(err, ErrVendorNotFound) {
		t.Fatalf("err = %v, want ErrVendorNotFound", err)
	}
}

func TestVendorCategories(t *testing.T) {
	svc := &VendorService{DB: newTestDB(t)}
	ctx := context.Background()

	for _, v := range []struct{ name, email, cat string }{
		{"A", "a@x.test", "IT Hardware"},
		{"B", "b@x.test", "IT Hardware"},
		{"C", "c@x.test", "Office Furniture"},
	} {
		if _, err := svc.Register(ctx, v.name, v.email, v.cat, nil); err != nil {
			t.Fatalf("register %s: %v", v.name, err)
		}
	}

	cats, err := svc.Categories(ctx)
	if err != nil {
		t.Fatalf("Categories: %v", err)
	}
	if len(cats) != 2 {
		t.Fatalf("categories = %v, want 2 distinct", cats)
	}
}
