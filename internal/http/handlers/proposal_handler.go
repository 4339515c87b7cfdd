// Proposal HTTP handlers.
//
// This file exposes REST endpoints for vendor proposals:
//   - GET    /proposals                      (list all)
//   - POST   /proposals/manual               (paste a vendor email by hand)
//   - POST   /proposals/{id}/reevaluate      (drop the cached verdict)
//   - GET    /rfps/{id}/proposals            (list for one RFP, evaluated)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/procurehub/go-procurement-backend/internal/domain"
	"github.com/procurehub/go-procurement-backend/internal/http/middleware"
	"github.com/procurehub/go-procurement-backend/internal/services"
	"github.com/procurehub/go-procurement-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// ProposalService defines proposal operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ProposalService interface {
	// SubmitManual records a hand-pasted vendor email as a proposal.
	SubmitManual(ctx context.Context, rfpID, vendorID, emailBody string) (*domain.Proposal, error)
	// ListForRFP returns an RFP's proposals, running any pending
	// compliance evaluations first.
	ListForRFP(ctx context.Context, rfpID string) ([]domain.Proposal, error)
	// ListAll returns every stored proposal.
	ListAll(ctx context.Context) ([]domain.Proposal, error)
	// InvalidateCompliance clears a cached verdict so the next read
	// re-evaluates the proposal.
	InvalidateCompliance(ctx context.Context, proposalID string) error
}

//
// DTOs
//

// SubmitManualProposalRequest is the JSON payload for recording a vendor
// reply that arrived outside the monitored inbox.
type SubmitManualProposalRequest struct {
	RFPID     string `json:"rfp_id" binding:"required"`
	VendorID  string `json:"vendor_id" binding:"required"`
	EmailBody string `json:"email_body" binding:"required"`
}

//
// Handlers
//

// ListProposals godoc
// @ID          listProposals
// @Summary     List all proposals
// @Tags        Proposals
// @Produce     json
//
// @Param       limit  query  int  false  "Cap the number of returned proposals (0 = all)"
//
// @Success     200  {array}   domain.Proposal
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /proposals [get]
func (h *Handlers) ListProposals(c *gin.Context) {
	proposals, err := h.proposalSvc.ListAll(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if limit := utils.AtoiDefault(c.Query("limit"), 0); limit > 0 && limit < len(proposals) {
		proposals = proposals[:limit]
	}
	ok(c, http.StatusOK, proposals)
}

// ListRFPProposals godoc
// @ID          listRFPProposals
// @Summary     List proposals for an RFP
// @Description Returns the RFP's proposals. Proposals without a cached compliance verdict are evaluated before the response is written; evaluation failures leave the verdict unset rather than failing the read.
// @Tags        Proposals
// @Produce     json
//
// @Param       id  path  string  true  "RFP ID"
//
// @Success     200  {array}   domain.Proposal
// @Failure     404  {object}  handlers.ErrorResponse  "RFP not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /rfps/{id}/proposals [get]
func (h *Handlers) ListRFPProposals(c *gin.Context) {
	proposals, err := h.proposalSvc.ListForRFP(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrRFPNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "rfp not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, proposals)
}

// SubmitManualProposal godoc
// @ID          submitManualProposal
// @Summary     Record a vendor reply by hand
// @Description Extracts structured fields from a pasted email body and stores it as the vendor's proposal for the RFP. Replaces any earlier proposal from the same vendor.
// @Tags        Proposals
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.SubmitManualProposalRequest  true  "Manual proposal payload"
//
// @Success     201  {object}  domain.Proposal
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "RFP or vendor not found"
// @Failure     503  {object}  handlers.ErrorResponse  "Extraction service unavailable"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /proposals/manual [post]
func (h *Handlers) SubmitManualProposal(c *gin.Context) {
	var req SubmitManualProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	p, err := h.proposalSvc.SubmitManual(c.Request.Context(), req.RFPID, req.VendorID, req.EmailBody)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyProposal):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		case errors.Is(err, services.ErrRFPNotFound), errors.Is(err, services.ErrVendorNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
		case errors.Is(err, services.ErrOracleUnavailable):
			fail(c, http.StatusServiceUnavailable, ErrCodeAIUnavailable, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	middleware.CountProposalIngested("manual")
	ok(c, http.StatusCreated, p)
}

// ReevaluateProposal godoc
// @ID          reevaluateProposal
// @Summary     Drop a proposal's cached compliance verdict
// @Description Clears the stored verdict; the next proposal listing for the RFP evaluates it again.
// @Tags        Proposals
// @Produce     json
//
// @Param       id  path  string  true  "Proposal ID"
//
// @Success     204  "Verdict cleared"
// @Failure     404  {object}  handlers.ErrorResponse  "Proposal not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /proposals/{id}/reevaluate [post]
func (h *Handlers) ReevaluateProposal(c *gin.Context) {
	err := h.proposalSvc.InvalidateCompliance(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrProposalNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "proposal not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	noContent(c)
}
