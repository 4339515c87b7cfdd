package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/procurehub/go-procurement-backend/internal/ai"
	"github.com/procurehub/go-procurement-backend/internal/domain"
	"github.com/procurehub/go-procurement-backend/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// Unique DB per test to avoid schema leaking across tests.
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

// fakeOracle is a scriptable ai.Oracle that counts evaluation calls.
type fakeOracle struct {
	mu sync.Mutex

	rfpReq     *ai.RFPRequirements
	rfpErr     error
	fields     domain.ProposalFields
	extractErr error
	verdict    ai.Compliance
	compareErr error

	compareCalls int
}

func (f *fakeOracle) ParseRFPDescription(_ context.Context, _ string, _ []string) (*ai.RFPRequirements, error) {
	if f.rfpErr != nil {
		return nil, f.rfpErr
	}
	if f.rfpReq != nil {
		return f.rfpReq, nil
	}
	return &ai.RFPRequirements{}, nil
}

func (f *fakeOracle) ParseProposalEmail(_ context.Context, _ string) (domain.ProposalFields, error) {
	if f.extractErr != nil {
		return domain.ProposalFields{}, f.extractErr
	}
	return f.fields, nil
}

func (f *fakeOracle) CompareProposalToRFP(_ context.Context, _ *domain.RFP, _ *domain.Proposal) (*ai.Compliance, error) {
	f.mu.Lock()
	f.compareCalls++
	f.mu.Unlock()
	if f.compareErr != nil {
		return nil, f.compareErr
	}
	return &f.verdict, nil
}

func (f *fakeOracle) CompareCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.compareCalls
}

// fakeMailer records deliveries and fails for addresses in failFor.
type fakeMailer struct {
	mu      sync.Mutex
	sent    []string
	failFor map[string]bool
}

func (m *fakeMailer) Send(_ context.Context, to, _ string, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor[to] {
		return "", fmt.Errorf("delivery refused for %s", to)
	}
	m.sent = append(m.sent, to)
	return "msg-" + to, nil
}
