package ingest

import (
	"context"
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/procurehub/go-procurement-backend/internal/domain"
	"github.com/procurehub/go-procurement-backend/internal/mailbox"
	"github.com/procurehub/go-procurement-backend/internal/repo"
)

// fakeProvider is an in-memory mailbox.
type fakeProvider struct {
	messages      map[string]*mailbox.Message
	historyIDs    []string
	unreadIDs     []string
	historyCalls  []string
	unreadCalled  bool
	watchExpires  time.Time
}

func (f *fakeProvider) Watch(context.Context) (time.Time, error) {
	return f.watchExpires, nil
}

func (f *fakeProvider) HistorySince(_ context.Context, start string) ([]string, error) {
	f.historyCalls = append(f.historyCalls, start)
	return f.historyIDs, nil
}

func (f *fakeProvider) ListRecentUnread(context.Context, int) ([]string, error) {
	f.unreadCalled = true
	return f.unreadIDs, nil
}

func (f *fakeProvider) GetMessage(_ context.Context, id string) (*mailbox.Message, error) {
	m, ok := f.messages[id]
	if !ok {
		return nil, fmt.Errorf("no such message %s", id)
	}
	return m, nil
}

func newTestListener(t *testing.T, provider *fakeProvider) (*Listener, *domain.Vendor, *domain.RFP) {
	t.Helper()
	db := newTestDB(t)
	vendor, rfp := seedDispatchedRFP(t, db, "sales@acme.test")
	price := 5000.0
	return &Listener{
		DB:       db,
		Provider: provider,
		Pipeline: NewPipeline(db, &fakeOracle{fields: domain.ProposalFields{TotalPrice: &price}}, nil),
		Mailbox:  "buyer@procurement.test",
	}, vendor, rfp
}

func replyMessage(id string) *mailbox.Message {
	return &mailbox.Message{
		ID:      id,
		From:    "Acme Sales <sales@acme.test>",
		Subject: "RE: Request for Proposal - Your Expertise Needed",
		Body:    "We quote $5000 total.",
	}
}

func TestHandleNotification_BootstrapWithoutCursor(t *testing.T) {
	provider := &fakeProvider{
		unreadIDs: []string{"m1"},
		messages:  map[string]*mailbox.Message{"m1": replyMessage("m1")},
	}
	l, vendor, rfp := newTestListener(t, provider)

	err := l.HandleNotification(context.Background(), &Notification{HistoryID: 2000})
	if err != nil {
		t.Fatalf("HandleNotification: %v", err)
	}

	if !provider.unreadCalled {
		t.Error("bootstrap did not list recent unread")
	}
	if len(provider.historyCalls) != 0 {
		t.Errorf("history read without a cursor: %v", provider.historyCalls)
	}

	cursor, err := repo.GetPushCursor(l.DB, l.Mailbox)
	if err != nil || cursor != "2000" {
		t.Fatalf("cursor = %q err=%v, want 2000", cursor, err)
	}

	p, err := repo.GetProposalForPair(l.DB, rfp.ID, vendor.ID)
	if err != nil {
		t.Fatalf("get proposal: %v", err)
	}
	if p.TotalPrice == nil || *p.TotalPrice != 5000 {
		t.Fatalf("bootstrap message not ingested: %+v", p)
	}
}

func TestHandleNotification_ReadsHistoryFromCursor(t *testing.T) {
	provider := &fakeProvider{
		historyIDs: []string{"m1"},
		messages:   map[string]*mailbox.Message{"m1": replyMessage("m1")},
	}
	l, _, _ := newTestListener(t, provider)
	if err := repo.SetPushCursor(l.DB, l.Mailbox, "1500"); err != nil {
		t.Fatalf("seed cursor: %v", err)
	}

	if err := l.HandleNotification(context.Background(), &Notification{HistoryID: 2000}); err != nil {
		t.Fatalf("HandleNotification: %v", err)
	}

	if len(provider.historyCalls) != 1 || provider.historyCalls[0] != "1500" {
		t.Fatalf("history calls = %v, want one from 1500", provider.historyCalls)
	}
	cursor, _ := repo.GetPushCursor(l.DB, l.Mailbox)
	if cursor != "2000" {
		t.Fatalf("cursor = %q, want 2000", cursor)
	}
}

func TestHandleNotification_AdvancesCursorPastBadMessages(t *testing.T) {
	provider := &fakeProvider{
		historyIDs: []string{"missing", "m2"},
		messages:   map[string]*mailbox.Message{"m2": replyMessage("m2")},
	}
	l, vendor, rfp := newTestListener(t, provider)
	if err := repo.SetPushCursor(l.DB, l.Mailbox, "1500"); err != nil {
		t.Fatalf("seed cursor: %v", err)
	}

	if err := l.HandleNotification(context.Background(), &Notification{HistoryID: 3000}); err != nil {
		t.Fatalf("HandleNotification: %v", err)
	}

	// The good message after the poison one was still processed.
	p, err := repo.GetProposalForPair(l.DB, rfp.ID, vendor.ID)
	if err != nil || p.TotalPrice == nil {
		t.Fatalf("good message not ingested: %+v err=%v", p, err)
	}
	cursor, _ := repo.GetPushCursor(l.DB, l.Mailbox)
	if cursor != "3000" {
		t.Fatalf("cursor = %q, want 3000 despite failed message", cursor)
	}
}

func TestHandleNotification_SubjectGateSkipsUnrelatedMail(t *testing.T) {
	provider := &fakeProvider{
		historyIDs: []string{"m1"},
		messages: map[string]*mailbox.Message{
			"m1": {ID: "m1", From: "sales@acme.test", Subject: "Lunch on Friday?", Body: "pizza?"},
		},
	}
	l, vendor, rfp := newTestListener(t, provider)
	if err := repo.SetPushCursor(l.DB, l.Mailbox, "1"); err != nil {
		t.Fatalf("seed cursor: %v", err)
	}

	if err := l.HandleNotification(context.Background(), &Notification{HistoryID: 2}); err != nil {
		t.Fatalf("HandleNotification: %v", err)
	}

	p, err := repo.GetProposalForPair(l.DB, rfp.ID, vendor.ID)
	if err != nil {
		t.Fatalf("get proposal: %v", err)
	}
	if p.RawEmailBody != "Email sent via automated system" {
		t.Fatalf("unrelated mail mutated proposal: %q", p.RawEmailBody)
	}
}

func TestDecodeNotification(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte(`{"emailAddress":"buyer@procurement.test","historyId":4242}`))
	raw := []byte(fmt.Sprintf(`{"message":{"data":%q},"subscription":"projects/p/subscriptions/s"}`, payload))

	n, err := DecodeNotification(raw)
	if err != nil {
		t.Fatalf("DecodeNotification: %v", err)
	}
	if n.EmailAddress != "buyer@procurement.test" || n.HistoryID != 4242 {
		t.Fatalf("notification = %+v", n)
	}
}

func TestDecodeNotification_Malformed(t *testing.T) {
	for _, raw := range []string{
		`not json`,
		`{"message":{"data":"!!!"}}`,
		`{"message":{"data":""}}`,
	} {
		if _, err := DecodeNotification([]byte(raw)); err == nil {
			t.Errorf("DecodeNotification(%q) succeeded, want error", raw)
		}
	}
}
