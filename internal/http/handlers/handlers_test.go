package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/procurehub/go-procurement-backend/internal/domain"
	"github.com/procurehub/go-procurement-backend/internal/fanout"
	"github.com/procurehub/go-procurement-backend/internal/ingest"
	"github.com/procurehub/go-procurement-backend/internal/services"
)

// ---------- flexible service stubs ----------

type stubVendorSvc struct {
	register func(context.Context, string, string, string, *string) (*domain.Vendor, error)
	list     func(context.Context) ([]domain.Vendor, error)
}

func (s stubVendorSvc) Register(ctx context.Context, name, email, category string, contact *string) (*domain.Vendor, error) {
	if s.register != nil {
		return s.register(ctx, name, email, category, contact)
	}
	return &domain.Vendor{ID: "v1", Name: name, Email: email, Category: category}, nil
}

func (s stubVendorSvc) List(ctx context.Context) ([]domain.Vendor, error) {
	if s.list != nil {
		return s.list(ctx)
	}
	return nil, nil
}

type stubRFPSvc struct {
	parseAndCreate func(context.Context, string) (*services.RFPWithVendors, error)
	get            func(context.Context, string) (*domain.RFP, error)
	dispatch       func(context.Context, string, []string) (*services.DispatchResult, error)
	saveDraft      func(context.Context, string, []string) (*domain.RFP, error)
	listDrafts     func(context.Context) ([]services.RFPWithVendors, error)
	deleteDraft    func(context.Context, string) error
	listActive     func(context.Context) ([]services.RFPWithStats, error)
	stats          func(context.Context, string) (domain.ResponseStats, error)
	updateStatus   func(context.Context, string, string) (*domain.RFP, error)
}

func (s stubRFPSvc) ParseAndCreate(ctx context.Context, d string) (*services.RFPWithVendors, error) {
	if s.parseAndCreate != nil {
		return s.parseAndCreate(ctx, d)
	}
	return &services.RFPWithVendors{RFP: &domain.RFP{ID: "r1", OriginalDescription: d}}, nil
}

func (s stubRFPSvc) Get(ctx context.Context, id string) (*domain.RFP, error) {
	if s.get != nil {
		return s.get(ctx, id)
	}
	return &domain.RFP{ID: id}, nil
}

func (s stubRFPSvc) Dispatch(ctx context.Context, id string, vendorIDs []string) (*services.DispatchResult, error) {
	if s.dispatch != nil {
		return s.dispatch(ctx, id, vendorIDs)
	}
	return &services.DispatchResult{RFP: &domain.RFP{ID: id}}, nil
}

func (s stubRFPSvc) SaveDraft(ctx context.Context, id string, vendorIDs []string) (*domain.RFP, error) {
	if s.saveDraft != nil {
		return s.saveDraft(ctx, id, vendorIDs)
	}
	return &domain.RFP{ID: id}, nil
}

func (s stubRFPSvc) ListDrafts(ctx context.Context) ([]services.RFPWithVendors, error) {
	if s.listDrafts != nil {
		return s.listDrafts(ctx)
	}
	return nil, nil
}

func (s stubRFPSvc) DeleteDraft(ctx context.Context, id string) error {
	if s.deleteDraft != nil {
		return s.deleteDraft(ctx, id)
	}
	return nil
}

func (s stubRFPSvc) ListActive(ctx context.Context) ([]services.RFPWithStats, error) {
	if s.listActive != nil {
		return s.listActive(ctx)
	}
	return nil, nil
}

func (s stubRFPSvc) Stats(ctx context.Context, id string) (domain.ResponseStats, error) {
	if s.stats != nil {
		return s.stats(ctx, id)
	}
	return domain.ResponseStats{}, nil
}

func (s stubRFPSvc) UpdateStatus(ctx context.Context, id, status string) (*domain.RFP, error) {
	if s.updateStatus != nil {
		return s.updateStatus(ctx, id, status)
	}
	return &domain.RFP{ID: id, Status: domain.RFPStatus(status)}, nil
}

type stubProposalSvc struct {
	submitManual func(context.Context, string, string, string) (*domain.Proposal, error)
	listForRFP   func(context.Context, string) ([]domain.Proposal, error)
	listAll      func(context.Context) ([]domain.Proposal, error)
	invalidate   func(context.Context, string) error
}

func (s stubProposalSvc) SubmitManual(ctx context.Context, rfpID, vendorID, body string) (*domain.Proposal, error) {
	if s.submitManual != nil {
		return s.submitManual(ctx, rfpID, vendorID, body)
	}
	return &domain.Proposal{ID: "p1", RFPID: rfpID, VendorID: vendorID}, nil
}

func (s stubProposalSvc) ListForRFP(ctx context.Context, rfpID string) ([]domain.Proposal, error) {
	if s.listForRFP != nil {
		return s.listForRFP(ctx, rfpID)
	}
	return nil, nil
}

func (s stubProposalSvc) ListAll(ctx context.Context) ([]domain.Proposal, error) {
	if s.listAll != nil {
		return s.listAll(ctx)
	}
	return nil, nil
}

func (s stubProposalSvc) InvalidateCompliance(ctx context.Context, id string) error {
	if s.invalidate != nil {
		return s.invalidate(ctx, id)
	}
	return nil
}

type stubIngestor struct {
	process func(context.Context, string, string) (*domain.Proposal, error)
}

func (s stubIngestor) ProcessReply(ctx context.Context, from, body string) (*domain.Proposal, error) {
	if s.process != nil {
		return s.process(ctx, from, body)
	}
	return &domain.Proposal{ID: "p1"}, nil
}

// stubPush records each notification and the cancellation state of the
// context it arrived on. The push webhook hands off to a goroutine, so
// access is guarded and done signals per call.
type stubPush struct {
	mu      sync.Mutex
	handled []*ingest.Notification
	ctxErrs []error
	err     error
	done    chan struct{}
}

func (s *stubPush) HandleNotification(ctx context.Context, n *ingest.Notification) error {
	s.mu.Lock()
	s.handled = append(s.handled, n)
	s.ctxErrs = append(s.ctxErrs, ctx.Err())
	s.mu.Unlock()
	if s.done != nil {
		s.done <- struct{}{}
	}
	return s.err
}

func newStubPush() *stubPush {
	return &stubPush{done: make(chan struct{}, 4)}
}

// waitPush blocks until the stub has handled one notification.
func waitPush(t *testing.T, s *stubPush) {
	t.Helper()
	select {
	case <-s.done:
	case <-time.After(2 * time.Second):
		t.Fatal("push notification was never processed")
	}
}

type stubStream struct {
	replay     []fanout.Event
	live       []fanout.Event
	replayFrom int64
	channel    string
}

func (s *stubStream) Subscribe(channel string) (<-chan fanout.Event, func()) {
	s.channel = channel
	ch := make(chan fanout.Event, len(s.live)+1)
	for _, ev := range s.live {
		ch <- ev
	}
	close(ch)
	return ch, func() {}
}

func (s *stubStream) ReplayFrom(ctx context.Context, channel string, fromID int64) ([]fanout.Event, error) {
	s.replayFrom = fromID
	return s.replay, nil
}

// ---------- request plumbing ----------

func newTestRouter(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	r.POST("/vendors", h.CreateVendor)
	r.GET("/vendors", h.ListVendors)

	r.POST("/rfps", h.CreateRFP)
	r.GET("/rfps/drafts", h.ListRFPDrafts)
	r.GET("/rfps/active", h.ListActiveRFPs)
	r.GET("/rfps/:id", h.GetRFP)
	r.PUT("/rfps/:id/draft", h.SaveRFPDraft)
	r.DELETE("/rfps/:id", h.DeleteRFP)
	r.POST("/rfps/:id/dispatch", h.DispatchRFP)
	r.GET("/rfps/:id/stats", h.GetRFPStats)
	r.PATCH("/rfps/:id/status", h.UpdateRFPStatus)
	r.GET("/rfps/:id/stream", h.StreamRFPEvents)

	r.GET("/proposals", h.ListProposals)
	r.POST("/proposals/manual", h.SubmitManualProposal)
	r.POST("/proposals/:id/reevaluate", h.ReevaluateProposal)
	r.GET("/rfps/:id/proposals", h.ListRFPProposals)
	r.GET("/proposals/stream", h.StreamProposalEvents)

	r.POST("/webhooks/email", h.InboundEmail)
	r.POST("/webhooks/gmail-push", h.GmailPush)

	return r
}

func perform(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeErr(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return e
}

func wantStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, want, w.Body.String())
	}
}
