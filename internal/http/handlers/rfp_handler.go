// RFP HTTP handlers.
//
// This file exposes REST endpoints for the RFP lifecycle:
//   - POST   /rfps                 (create from natural-language description)
//   - GET    /rfps/drafts          (list drafts with selected vendors)
//   - GET    /rfps/active          (list published RFPs with response stats)
//   - GET    /rfps/{id}            (fetch one)
//   - PUT    /rfps/{id}/draft      (update vendor selection on a draft)
//   - DELETE /rfps/{id}            (delete a draft)
//   - POST   /rfps/{id}/dispatch   (email the RFP to vendors)
//   - GET    /rfps/{id}/stats      (response snapshot)
//   - PATCH  /rfps/{id}/status     (status transition)
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
)

//
// Service contracts (context-aware)
//

// RFPService defines RFP lifecycle operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type RFPService interface {
	// ParseAndCreate extracts requirements from a description and stores
	// a draft RFP together with the vendors that match its categories.
	ParseAndCreate(ctx context.Context, description string) (*services.RFPWithVendors, error)
	// Get fetches a single RFP by id.
	Get(ctx context.Context, id string) (*domain.RFP, error)
	// Dispatch emails the RFP to the given vendors (or the saved selection)
	// and publishes the RFP on first success.
	Dispatch(ctx context.Context, rfpID string, vendorIDs []string) (*services.DispatchResult, error)
	// SaveDraft replaces the vendor selection on a draft.
	SaveDraft(ctx context.Context, rfpID string, vendorIDs []string) (*domain.RFP, error)
	// ListDrafts returns draft RFPs with their selected vendors.
	ListDrafts(ctx context.Context) ([]services.RFPWithVendors, error)
	// DeleteDraft removes a draft RFP.
	DeleteDraft(ctx context.Context, rfpID string) error
	// ListActive returns published RFPs with response stats.
	ListActive(ctx context.Context) ([]services.RFPWithStats, error)
	// Stats returns the response snapshot for one RFP.
	Stats(ctx context.Context, rfpID string) (domain.ResponseStats, error)
	// UpdateStatus transitions an RFP to a new status.
	UpdateStatus(ctx context.Context, rfpID, status string) (*domain.RFP, error)
}

//
// DTOs
//

// CreateRFPRequest is the JSON payload for creating an RFP from free text.
type CreateRFPRequest struct {
	Description string `json:"description" binding:"required" example:"We need 25 laptops with 16GB RAM, budget $30k, delivery by end of Q3"`
}

// DispatchRFPRequest optionally narrows the dispatch to specific vendors.
// When VendorIDs is empty the draft's saved selection is used.
type DispatchRFPRequest struct {
	VendorIDs []string `json:"vendor_ids"`
}

// SaveDraftRequest is the JSON payload for updating a draft's vendor selection.
type SaveDraftRequest struct {
	VendorIDs []string `json:"vendor_ids"`
}

// UpdateRFPStatusRequest is the JSON payload for a status transition.
type UpdateRFPStatusRequest struct {
	Status string `json:"status" binding:"required" example:"closed"`
}

//
// Handlers
//

// CreateRFP godoc
// @ID          createRFP
// @Summary     Create an RFP from a description
// @Description Extracts structured requirements from a natural-language description and stores a draft RFP with matched vendors.
// @Tags        RFPs
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.CreateRFPRequest  true  "Procurement description"
//
// @Success     201  {object}  services.RFPWithVendors
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     503  {object}  handlers.ErrorResponse  "Extraction service unavailable"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /rfps [post]
func (h *Handlers) CreateRFP(c *gin.Context) {
	var req CreateRFPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	out, err := h.rfpSvc.ParseAndCreate(c.Request.Context(), req.Description)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyDescription):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		case errors.Is(err, services.ErrOracleUnavailable):
			fail(c, http.StatusServiceUnavailable, ErrCodeAIUnavailable, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusCreated, out)
}

// GetRFP godoc
// @ID          getRFP
// @Summary     Fetch one RFP
// @Tags        RFPs
// @Produce     json
//
// @Param       id  path  string  true  "RFP ID"
//
// @Success     200  {object}  domain.RFP
// @Failure     404  {object}  handlers.ErrorResponse  "RFP not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /rfps/{id} [get]
func (h *Handlers) GetRFP(c *gin.Context) {
	r, err := h.rfpSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrRFPNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "rfp not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, r)
}

// DispatchRFP godoc
// @ID          dispatchRFP
// @Summary     Send an RFP to vendors
// @Description Renders the RFP email and sends it to each vendor. Partial failure is a 200 with per-vendor outcomes; the RFP is published once at least one delivery succeeds.
// @Tags        RFPs
// @Accept      json
// @Produce     json
//
// @Param       id    path  string                       true   "RFP ID"
// @Param       body  body  handlers.DispatchRFPRequest  false  "Vendor selection (optional)"
//
// @Success     200  {object}  services.DispatchResult
// @Failure     400  {object}  handlers.ErrorResponse  "No vendors to dispatch to"
// @Failure     404  {object}  handlers.ErrorResponse  "RFP not found"
// @Failure     502  {object}  handlers.ErrorResponse  "Every delivery failed"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /rfps/{id}/dispatch [post]
func (h *Handlers) DispatchRFP(c *gin.Context) {
	var req DispatchRFPRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}

	result, err := h.rfpSvc.Dispatch(c.Request.Context(), c.Param("id"), req.VendorIDs)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrRFPNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "rfp not found")
		case errors.Is(err, services.ErrNoVendors):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		case errors.Is(err, services.ErrDispatchFailed):
			if result != nil {
				middleware.CountRFPDeliveries(0, len(result.Failed))
			}
			fail(c, http.StatusBadGateway, ErrCodeDispatchFailed, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	middleware.CountRFPDeliveries(len(result.Sent), len(result.Failed))
	ok(c, http.StatusOK, result)
}

// SaveRFPDraft godoc
// @ID          saveRFPDraft
// @Summary     Update a draft's vendor selection
// @Tags        RFPs
// @Accept      json
// @Produce     json
//
// @Param       id    path  string                     true  "RFP ID"
// @Param       body  body  handlers.SaveDraftRequest  true  "Vendor selection"
//
// @Success     200  {object}  domain.RFP
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "RFP not found"
// @Failure     409  {object}  handlers.ErrorResponse  "RFP is not a draft"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /rfps/{id}/draft [put]
func (h *Handlers) SaveRFPDraft(c *gin.Context) {
	var req SaveDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	r, err := h.rfpSvc.SaveDraft(c.Request.Context(), c.Param("id"), req.VendorIDs)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrRFPNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "rfp not found")
		case errors.Is(err, services.ErrNotDraft):
			fail(c, http.StatusConflict, ErrCodeNotDraft, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, r)
}

// ListRFPDrafts godoc
// @ID          listRFPDrafts
// @Summary     List draft RFPs
// @Tags        RFPs
// @Produce     json
//
// @Success     200  {array}   services.RFPWithVendors
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /rfps/drafts [get]
func (h *Handlers) ListRFPDrafts(c *gin.Context) {
	drafts, err := h.rfpSvc.ListDrafts(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, drafts)
}

// DeleteRFP godoc
// @ID          deleteRFP
// @Summary     Delete a draft RFP
// @Tags        RFPs
// @Produce     json
//
// @Param       id  path  string  true  "RFP ID"
//
// @Success     204  "Deleted"
// @Failure     404  {object}  handlers.ErrorResponse  "RFP not found"
// @Failure     409  {object}  handlers.ErrorResponse  "RFP is not a draft"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /rfps/{id} [delete]
func (h *Handlers) DeleteRFP(c *gin.Context) {
	err := h.rfpSvc.DeleteDraft(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrRFPNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "rfp not found")
		case errors.Is(err, services.ErrNotDraft):
			fail(c, http.StatusConflict, ErrCodeNotDraft, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	noContent(c)
}

// ListActiveRFPs godoc
// @ID          listActiveRFPs
// @Summary     List published RFPs with response stats
// @Tags        RFPs
// @Produce     json
//
// @Success     200  {array}   services.RFPWithStats
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /rfps/active [get]
func (h *Handlers) ListActiveRFPs(c *gin.Context) {
	rfps, err := h.rfpSvc.ListActive(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, rfps)
}

// GetRFPStats godoc
// @ID          getRFPStats
// @Summary     Response snapshot for one RFP
// @Tags        RFPs
// @Produce     json
//
// @Param       id  path  string  true  "RFP ID"
//
// @Success     200  {object}  domain.ResponseStats
// @Failure     404  {object}  handlers.ErrorResponse  "RFP not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /rfps/{id}/stats [get]
func (h *Handlers) GetRFPStats(c *gin.Context) {
	stats, err := h.rfpSvc.Stats(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrRFPNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "rfp not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, stats)
}

// UpdateRFPStatus godoc
// @ID          updateRFPStatus
// @Summary     Transition an RFP's status
// @Description Moves an RFP to a new status. "completed" is accepted as an alias for "closed". Closing an RFP triggers a compliance pass over its proposals.
// @Tags        RFPs
// @Accept      json
// @Produce     json
//
// @Param       id    path  string                           true  "RFP ID"
// @Param       body  body  handlers.UpdateRFPStatusRequest  true  "New status"
//
// @Success     200  {object}  domain.RFP
// @Failure     400  {object}  handlers.ErrorResponse  "Unknown status"
// @Failure     404  {object}  handlers.ErrorResponse  "RFP not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /rfps/{id}/status [patch]
func (h *Handlers) UpdateRFPStatus(c *gin.Context) {
	var req UpdateRFPStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	r, err := h.rfpSvc.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrRFPNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "rfp not found")
		case errors.Is(err, services.ErrInvalidStatus):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, r)
}
