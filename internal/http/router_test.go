package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/procurehub/go-procurement-backend/internal/ai"
	"github.com/procurehub/go-procurement-backend/internal/config"
	"github.com/procurehub/go-procurement-backend/internal/domain"
	"github.com/procurehub/go-procurement-backend/internal/fanout"
	"github.com/procurehub/go-procurement-backend/internal/repo"
)

// --- tiny fakes for the domain integrations ---

type fakeOracle struct{}

func (fakeOracle) ParseRFPDescription(context.Context, string, []string) (*ai.RFPRequirements, error) {
	return &ai.RFPRequirements{Items: []domain.RFPItem{{Name: "laptops", Quantity: 10}}}, nil
}

func (fakeOracle) ParseProposalEmail(context.Context, string) (domain.ProposalFields, error) {
	return domain.ProposalFields{}, nil
}

func (fakeOracle) CompareProposalToRFP(context.Context, *domain.RFP, *domain.Proposal) (*ai.Compliance, error) {
	return &ai.Compliance{Fulfilled: true}, nil
}

type fakeMailer struct{}

func (fakeMailer) Send(_ context.Context, to, _, _ string) (string, error) {
	return "msg-" + to, nil
}

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newTestConfig() config.Config {
	return config.Config{
		APIBasePath: "/api/v1",
		RateRPS:     100,
		RateBurst:   10,
		CORS:        config.CORSConfig{AllowedOrigins: nil}, // triggers AllowAllOrigins branch
		Security:    config.SecurityConfig{EnableHSTS: false, HSTSMaxAge: 0},
		OTEL:        config.OTELConfig{ServiceName: "test-svc"},
	}
}

func newTestEngine(t *testing.T, cfg config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, newTestDB(t), fanout.NewHub(nil), fakeOracle{}, fakeMailer{}, nil, cfg)
	return r
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	r := newTestEngine(t, newTestConfig())

	// /health works
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	// CORS (AllowAllOrigins) → header "*"
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}

	// /metrics is wired
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	// NoRoute → 404
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/nope", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}

	// NoMethod → 405 (POST /health)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	cfg := newTestConfig()
	cfg.CORS.AllowedOrigins = []string{"http://example.com"}
	r := newTestEngine(t, cfg)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://example.com")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("ACAO = %q", got)
	}
}

// End-to-end through the real stack: register a vendor, list it back.
func TestRegisterRoutes_VendorRoundTrip(t *testing.T) {
	r := newTestEngine(t, newTestConfig())

	body, _ := json.Marshal(map[string]string{
		"name": "Acme Supplies", "email": "sales@acme.example", "category": "IT Hardware",
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/vendors", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /api/v1/vendors = %d (%s)", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/vendors", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/v1/vendors = %d", w.Code)
	}
	var vendors []domain.Vendor
	if err := json.Unmarshal(w.Body.Bytes(), &vendors); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(vendors) != 1 || vendors[0].Email != "sales@acme.example" {
		t.Fatalf("vendors = %+v", vendors)
	}
}

// Webhook routes are exempt from the limiter: hammering them never 429s.
func TestRegisterRoutes_WebhookRateBypass(t *testing.T) {
	cfg := newTestConfig()
	cfg.RateRPS = 0.001
	cfg.RateBurst = 1
	r := newTestEngine(t, cfg)

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/email", bytes.NewReader([]byte(`{}`)))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("webhook call %d = %d", i, w.Code)
		}
	}
}
