package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/procurehub/go-procurement-backend/internal/domain"
)

// Oracle is the structured-extraction surface the services depend on. A
// single implementation backs it in production; tests swap in fakes.
type Oracle interface {
	// ParseRFPDescription turns a free-text procurement ask into structured
	// requirements, constrained to the known vendor categories.
	ParseRFPDescription(ctx context.Context, description string, categories []string) (*RFPRequirements, error)

	// ParseProposalEmail extracts commercial terms from a vendor reply body.
	// Failures wrap ErrExtraction; callers must not mutate state on error.
	ParseProposalEmail(ctx context.Context, body string) (domain.ProposalFields, error)

	// CompareProposalToRFP evaluates a proposal's extracted terms against an
	// RFP's structured requirements. Failures wrap ErrEvaluation.
	CompareProposalToRFP(ctx context.Context, rfp *domain.RFP, p *domain.Proposal) (*Compliance, error)
}

var _ Oracle = (*Client)(nil)

// RFPRequirements is the structured form of a procurement description.
// Every field except Items may be absent when the description does not
// mention it.
type RFPRequirements struct {
	Items               []domain.RFPItem
	Budget              *float64
	Deadline            *time.Time
	PaymentTerms        *string
	Warranty            *string
	Category            *string
	SuggestedCategories []string
}

// Compliance is an evaluation verdict: a strict boolean plus the reasons
// behind it and a one-paragraph summary.
type Compliance struct {
	Fulfilled bool     `json:"fulfilled"`
	Reasons   []string `json:"reasons"`
	Summary   string   `json:"summary"`
}

// Temperatures tuned per operation: parsing wants determinism, proposal
// extraction tolerates slightly looser matching of free-form prose.
const (
	tempParse    = 0.2
	tempProposal = 0.3
	tempCompare  = 0.2
)

const parseRFPSystem = `You are a procurement assistant. Extract structured RFP data from the user's description.
Return a JSON object with exactly these fields:
- items: array of {name, specs, quantity} for each requested item
- budget: total budget as a number, or null if not mentioned
- deadline: delivery deadline as an ISO 8601 date string, or null
- paymentTerms: payment terms as a string, or null
- warranty: warranty requirements as a string, or null
- category: the single best-matching category from the provided list, or null if none fits
- suggestedCategories: up to three categories from the provided list that could plausibly match

Category guidelines: choose from the provided categories only. Prefer the most
specific match. If the description spans multiple categories, pick the dominant
one for "category" and list the rest under "suggestedCategories".`

const parseProposalSystem = `You are a procurement assistant. Extract structured data from a vendor's proposal email.
Return a JSON object with exactly these fields:
- totalPrice: the total quoted price as a number, or null if not stated
- deliveryDate: the promised delivery date as an ISO 8601 date string, or null
- warrantyProvided: the warranty offered as a string, or null
- notes: any other relevant terms or caveats as a string, or null
Use null for anything the email does not state. Do not guess values.`

const compareSystem = `You are a procurement compliance evaluator. Compare a vendor proposal against the RFP requirements.
Return a JSON object with exactly these fields:
- fulfilled: boolean, whether the proposal meets ALL requirements
- reasons: array of strings, one per requirement checked, stating whether it is met and why
- summary: one short paragraph summarizing the evaluation
Be strict: if ANY requirement is not met, set fulfilled to false.`

// rfpWire mirrors the oracle's RFP-parsing output schema. Dates come back as
// strings in varying precision, so they decode into a tolerant wrapper.
type rfpWire struct {
	Items []struct {
		Name     string `json:"name"`
		Specs    string `json:"specs"`
		Quantity int    `json:"quantity"`
	} `json:"items"`
	Budget              *float64  `json:"budget"`
	Deadline            *string   `json:"deadline"`
	PaymentTerms        *string   `json:"paymentTerms"`
	Warranty            *string   `json:"warranty"`
	Category            *string   `json:"category"`
	SuggestedCategories []string  `json:"suggestedCategories"`
}

type proposalWire struct {
	TotalPrice       *float64 `json:"totalPrice"`
	DeliveryDate     *string  `json:"deliveryDate"`
	WarrantyProvided *string  `json:"warrantyProvided"`
	Notes            *string  `json:"notes"`
}

// parseOracleDate accepts the date shapes the oracle emits: full RFC 3339 or
// a bare calendar date. Unparseable values are dropped rather than failing
// the whole extraction.
func parseOracleDate(s *string) *time.Time {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" || strings.EqualFold(v, "null") {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// ParseRFPDescription implements Oracle.
func (c *Client) ParseRFPDescription(ctx context.Context, description string, categories []string) (*RFPRequirements, error) {
	user := fmt.Sprintf("Available vendor categories: %s\n\nProcurement description:\n%s",
		strings.Join(categories, ", "), description)

	var wire rfpWire
	if err := c.completeJSON(ctx, parseRFPSystem, user, tempParse, &wire); err != nil {
		return nil, fmt.Errorf("parse rfp description: %w", err)
	}

	out := &RFPRequirements{
		Budget:              wire.Budget,
		Deadline:            parseOracleDate(wire.Deadline),
		PaymentTerms:        emptyToNil(wire.PaymentTerms),
		Warranty:            emptyToNil(wire.Warranty),
		Category:            emptyToNil(wire.Category),
		SuggestedCategories: wire.SuggestedCategories,
	}
	for _, it := range wire.Items {
		out.Items = append(out.Items, domain.RFPItem{
			Name:     it.Name,
			Specs:    it.Specs,
			Quantity: it.Quantity,
		})
	}
	return out, nil
}

// ParseProposalEmail implements Oracle.
func (c *Client) ParseProposalEmail(ctx context.Context, body string) (domain.ProposalFields, error) {
	var wire proposalWire
	if err := c.completeJSON(ctx, parseProposalSystem, body, tempProposal, &wire); err != nil {
		return domain.ProposalFields{}, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	return domain.ProposalFields{
		TotalPrice:       wire.TotalPrice,
		DeliveryDate:     parseOracleDate(wire.DeliveryDate),
		WarrantyProvided: emptyToNil(wire.WarrantyProvided),
		Notes:            emptyToNil(wire.Notes),
	}, nil
}

// CompareProposalToRFP implements Oracle.
func (c *Client) CompareProposalToRFP(ctx context.Context, rfp *domain.RFP, p *domain.Proposal) (*Compliance, error) {
	reqJSON, _ := json.Marshal(map[string]interface{}{
		"items":        rfp.Items,
		"budget":       rfp.Budget,
		"deadline":     rfp.Deadline,
		"paymentTerms": rfp.PaymentTerms,
		"warranty":     rfp.Warranty,
	})
	propJSON, _ := json.Marshal(map[string]interface{}{
		"totalPrice":       p.TotalPrice,
		"deliveryDate":     p.DeliveryDate,
		"warrantyProvided": p.WarrantyProvided,
		"notes":            p.Notes,
	})
	user := fmt.Sprintf("RFP requirements:\n%s\n\nVendor proposal:\n%s", reqJSON, propJSON)

	var verdict Compliance
	if err := c.completeJSON(ctx, compareSystem, user, tempCompare, &verdict); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEvaluation, err)
	}
	return &verdict, nil
}

func emptyToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}
