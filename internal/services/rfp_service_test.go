package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"gorm.io/gorm"

	"github.com/procurehub/go-procurement-backend/internal/ai"
	"github.com/procurehub/go-procurement-backend/internal/domain"
	"github.com/procurehub/go-procurement-backend/internal/repo"
)

func registerVendor(t *testing.T, db *gorm.DB, name, email, category string) *domain.Vendor {
	t.Helper()
	v, err := repo.CreateVendor(db, name, email, category, nil)
	if err != nil {
		t.Fatalf("create vendor %s: %v", name, err)
	}
	return v
}

func TestParseAndCreate(t *testing.T) {
	db := newTestDB(t)
	registerVendor(t, db, "Acme", "a@acme.test", "IT Hardware")
	registerVendor(t, db, "Chairs Inc", "c@chairs.test", "Office Furniture")

	budget := 25000.0
	cat := "IT Hardware"
	oracle := &fakeOracle{rfpReq: &ai.RFPRequirements{
		Items:    []domain.RFPItem{{Name: "Laptop", Quantity: 10}},
		Budget:   &budget,
		Category: &cat,
	}}

	svc := &RFPService{DB: db, Oracle: oracle, Mailer: &fakeMailer{}}
	out, err := svc.ParseAndCreate(context.Background(), "10 laptops, budget 25k")
	if err != nil {
		t.Fatalf("ParseAndCreate: %v", err)
	}

	if out.RFP.Status != domain.StatusDraft {
		t.Errorf("status = %q, want draft", out.RFP.Status)
	}
	if out.RFP.OriginalDescription != "10 laptops, budget 25k" {
		t.Errorf("original description not preserved: %q", out.RFP.OriginalDescription)
	}
	if out.RFP.Budget == nil || *out.RFP.Budget != 25000 {
		t.Errorf("budget = %v", out.RFP.Budget)
	}
	if len(out.MatchedVendors) != 1 || out.MatchedVendors[0].Name != "Acme" {
		t.Errorf("matched vendors = %+v, want just Acme", out.MatchedVendors)
	}
}

func TestParseAndCreate_EmptyDescription(t *testing.T) {
	svc := &RFPService{DB: newTestDB(t), Oracle: &fakeOracle{}}
	if _, err := svc.ParseAndCreate(context.Background(), "  "); !errors.Is(err, ErrEmptyDescription) {
		t.Fatalf("err = %v, want ErrEmptyDescription", err)
	}
}

func TestParseAndCreate_OracleDown(t *testing.T) {
	db := newTestDB(t)
	oracle := &fakeOracle{rfpErr: fmt.Errorf("connection refused")}
	svc := &RFPService{DB: db, Oracle: oracle}

	_, err := svc.ParseAndCreate(context.Background(), "10 laptops")
	if !errors.Is(err, ErrOracleUnavailable) {
		t.Fatalf("err = %v, want ErrOracleUnavailable", err)
	}

	// Nothing persisted on oracle failure.
	var n int64
	db.Model(&domain.RFP{}).Count(&n)
	if n != 0 {
		t.Fatalf("rfp rows = %d, want 0", n)
	}
}

func newDraftRFP(t *testing.T, db *gorm.DB) *domain.RFP {
	t.Helper()
	r := &domain.RFP{OriginalDescription: "10 laptops"}
	if err := repo.CreateRFP(db, r); err != nil {
		t.Fatalf("create rfp: %v", err)
	}
	return r
}

func TestDispatch_PublishesDraftAndSeedsProposals(t *testing.T) {
	db := newTestDB(t)
	v1 := registerVendor(t, db, "Acme", "a@acme.test", "IT")
	v2 := registerVendor(t, db, "Bolt", "b@bolt.test", "IT")
	r := newDraftRFP(t, db)

	mailer := &fakeMailer{}
	svc := &RFPService{DB: db, Oracle: &fakeOracle{}, Mailer: mailer}

	res, err := svc.Dispatch(context.Background(), r.ID, []string{v1.ID, v2.ID})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(res.Sent) != 2 || len(res.Failed) != 0 {
		t.Fatalf("sent=%d failed=%d", len(res.Sent), len(res.Failed))
	}
	if res.RFP.Status != domain.StatusPublished {
		t.Errorf("status = %q, want published", res.RFP.Status)
	}
	if len(mailer.sent) != 2 {
		t.Errorf("mailer deliveries = %v", mailer.sent)
	}

	sent, _ := repo.VendorIDsByRole(db, r.ID, domain.RoleSent)
	if len(sent) != 2 {
		t.Errorf("sent set = %v", sent)
	}
	for _, v := range []*domain.Vendor{v1, v2} {
		p, err := repo.GetProposalForPair(db, r.ID, v.ID)
		if err != nil {
			t.Fatalf("placeholder for %s: %v", v.Name, err)
		}
		if p.RawEmailBody != dispatchMarker {
			t.Errorf("placeholder body = %q", p.RawEmailBody)
		}
	}
}

func TestDispatch_PartialFailure(t *testing.T) {
	db := newTestDB(t)
	v1 := registerVendor(t, db, "Acme", "a@acme.test", "IT")
	v2 := registerVendor(t, db, "Bolt", "b@bolt.test", "IT")
	r := newDraftRFP(t, db)

	mailer := &fakeMailer{failFor: map[string]bool{"b@bolt.test": true}}
	svc := &RFPService{DB: db, Oracle: &fakeOracle{}, Mailer: mailer}

	res, err := svc.Dispatch(context.Background(), r.ID, []string{v1.ID, v2.ID})
	if err != nil {
		t.Fatalf("partial failure should not be an error: %v", err)
	}
	if len(res.Sent) != 1 || res.Sent[0].VendorID != v1.ID {
		t.Fatalf("sent = %+v", res.Sent)
	}
	if len(res.Failed) != 1 || res.Failed[0].VendorID != v2.ID || res.Failed[0].Error == "" {
		t.Fatalf("failed = %+v", res.Failed)
	}
	if res.RFP.Status != domain.StatusPublished {
		t.Errorf("any success should publish, got %q", res.RFP.Status)
	}

	// The failed vendor is not in the sent set and has no placeholder.
	sent, _ := repo.VendorIDsByRole(db, r.ID, domain.RoleSent)
	if len(sent) != 1 || sent[0] != v1.ID {
		t.Errorf("sent set = %v", sent)
	}
	if _, err := repo.GetProposalForPair(db, r.ID, v2.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Errorf("failed vendor has a placeholder: %v", err)
	}
}

func TestDispatch_AllFail(t *testing.T) {
	db := newTestDB(t)
	v := registerVendor(t, db, "Acme", "a@acme.test", "IT")
	r := newDraftRFP(t, db)

	mailer := &fakeMailer{failFor: map[string]bool{"a@acme.test": true}}
	svc := &RFPService{DB: db, Oracle: &fakeOracle{}, Mailer: mailer}

	res, err := svc.Dispatch(context.Background(), r.ID, []string{v.ID})
	if !errors.Is(err, ErrDispatchFailed) {
		t.Fatalf("err = %v, want ErrDispatchFailed", err)
	}
	if res == nil || len(res.Failed) != 1 {
		t.Fatalf("result = %+v", res)
	}

	got, _ := repo.GetRFP(db, r.ID)
	if got.Status != domain.StatusDraft {
		t.Errorf("status = %q, want draft unchanged", got.Status)
	}
}

func TestDispatch_FallsBackToSelectedVendors(t *testing.T) {
	db := newTestDB(t)
	v := registerVendor(t, db, "Acme", "a@acme.test", "IT")
	r := newDraftRFP(t, db)
	if err := repo.AddVendorRole(db, r.ID, v.ID, domain.RoleSelected); err != nil {
		t.Fatalf("select vendor: %v", err)
	}

	svc := &RFPService{DB: db, Oracle: &fakeOracle{}, Mailer: &fakeMailer{}}
	res, err := svc.Dispatch(context.Background(), r.ID, nil)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(res.Sent) != 1 || res.Sent[0].VendorID != v.ID {
		t.Fatalf("sent = %+v", res.Sent)
	}
}

func TestDispatch_NoVendors(t *testing.T) {
	db := newTestDB(t)
	r := newDraftRFP(t, db)
	svc := &RFPService{DB: db, Oracle: &fakeOracle{}, Mailer: &fakeMailer{}}

	if _, err := svc.Dispatch(context.Background(), r.ID, nil); !errors.Is(err, ErrNoVendors) {
		t.Fatalf("err = %v, want ErrNoVendors", err)
	}
}

func TestSaveDraftAndDelete(t *testing.T) {
	db := newTestDB(t)
	v := registerVendor(t, db, "Acme", "a@acme.test", "IT")
	r := newDraftRFP(t, db)
	svc := &RFPService{DB: db, Oracle: &fakeOracle{}, Mailer: &fakeMailer{}}
	ctx := context.Background()

	if _, err := svc.SaveDraft(ctx, r.ID, []string{v.ID}); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	selected, _ := repo.VendorIDsByRole(db, r.ID, domain.RoleSelected)
	if len(selected) != 1 || selected[0] != v.ID {
		t.Fatalf("selected = %v", selected)
	}

	// Saving again replaces, never accumulates.
	if _, err := svc.SaveDraft(ctx, r.ID, nil); err != nil {
		t.Fatalf("SaveDraft empty: %v", err)
	}
	selected, _ = repo.VendorIDsByRole(db, r.ID, domain.RoleSelected)
	if len(selected) != 0 {
		t.Fatalf("selected after clear = %v", selected)
	}

	if err := svc.DeleteDraft(ctx, r.ID); err != nil {
		t.Fatalf("DeleteDraft: %v", err)
	}
	if _, err := svc.Get(ctx, r.ID); !errors.Is(err, ErrRFPNotFound) {
		t.Fatalf("draft still present: %v", err)
	}
}

func TestDeleteDraft_RefusesPublished(t *testing.T) {
	db := newTestDB(t)
	r := newDraftRFP(t, db)
	r.Status = domain.StatusPublished
	if err := repo.SaveRFP(db, r); err != nil {
		t.Fatalf("publish rfp: %v", err)
	}

	svc := &RFPService{DB: db, Oracle: &fakeOracle{}, Mailer: &fakeMailer{}}
	if err := svc.DeleteDraft(context.Background(), r.ID); !errors.Is(err, ErrNotDraft) {
		t.Fatalf("err = %v, want ErrNotDraft", err)
	}
}

func TestListActive_IncludesStats(t *testing.T) {
	db := newTestDB(t)
	v1 := registerVendor(t, db, "Acme", "a@acme.test", "IT")
	v2 := registerVendor(t, db, "Bolt", "b@bolt.test", "IT")
	r := newDraftRFP(t, db)

	svc := &RFPService{DB: db, Oracle: &fakeOracle{}, Mailer: &fakeMailer{}}
	if _, err := svc.Dispatch(context.Background(), r.ID, []string{v1.ID, v2.ID}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if err := repo.AddVendorRole(db, r.ID, v1.ID, domain.RoleResponded); err != nil {
		t.Fatalf("responded: %v", err)
	}

	active, err := svc.ListActive(context.Background())
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("active = %d, want 1", len(active))
	}
	stats := active[0].ResponseStats
	if stats.TotalResponses != 1 || stats.TotalVendorsContacted != 2 || stats.ResponseRate != 50 || stats.PendingResponses != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestUpdateStatus(t *testing.T) {
	db := newTestDB(t)
	r := newDraftRFP(t, db)
	svc := &RFPService{DB: db, Oracle: &fakeOracle{}, Mailer: &fakeMailer{}}
	ctx := context.Background()

	// Legacy alias.
	got, err := svc.UpdateStatus(ctx, r.ID, "completed")
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if got.Status != domain.StatusClosed {
		t.Errorf("status = %q, want closed", got.Status)
	}

	if _, err := svc.UpdateStatus(ctx, r.ID, "archived"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("err = %v, want ErrInvalidStatus", err)
	}
	if _, err := svc.UpdateStatus(ctx, "missing", "closed"); !errors.Is(err, ErrRFPNotFound) {
		t.Fatalf("err = %v, want ErrRFPNotFound", err)
	}
}

func TestUpdateStatus_RunsCompliancePass(t *testing.T) {
	db := newTestDB(t)
	v := registerVendor(t, db, "Acme", "a@acme.test", "IT")
	r := newDraftRFP(t, db)

	oracle := &fakeOracle{verdict: ai.Compliance{Fulfilled: true, Summary: "meets all requirements"}}
	proposals := &ProposalService{DB: db, Oracle: oracle}
	svc := &RFPService{DB: db, Oracle: oracle, Mailer: &fakeMailer{}, Proposals: proposals}
	ctx := context.Background()

	if _, err := svc.Dispatch(ctx, r.ID, []string{v.ID}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	price := 5000.0
	if _, err := repo.UpsertProposal(db, r.ID, v.ID, domain.AutomatedReply("offer"), domain.ProposalFields{TotalPrice: &price}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if _, err := svc.UpdateStatus(ctx, r.ID, "closed"); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	p, err := repo.GetProposalForPair(db, r.ID, v.ID)
	if err != nil {
		t.Fatalf("get proposal: %v", err)
	}
	if p.Fulfilled == nil || !*p.Fulfilled {
		t.Fatalf("verdict not cached on close: %+v", p.Fulfilled)
	}
	if oracle.CompareCalls() != 1 {
		t.Fatalf("compare calls = %d, want 1", oracle.CompareCalls())
	}
}
