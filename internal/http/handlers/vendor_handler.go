// Vendor HTTP handlers.
//
// This file exposes REST endpoints for the vendor directory:
//   - POST   /vendors   (register)
//   - GET    /vendors   (list)
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
	"github.com/procurehub/go-procurement-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// VendorService defines vendor directory operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type VendorService interface {
	// Register creates a vendor; email is the unique natural key.
	Register(ctx context.Context, name, email, category string, contactPerson *string) (*domain.Vendor, error)
	// List returns all registered vendors.
	List(ctx context.Context) ([]domain.Vendor, error)
}

//
// DTOs
//

// CreateVendorRequest is the JSON payload for registering a vendor.
type CreateVendorRequest struct {
	Name          string  `json:"name" binding:"required" example:"Acme Supplies"`
	Email         string  `json:"email" binding:"required,email" example:"sales@acme.example"`
	Category      string  `json:"category" binding:"required" example:"IT Hardware"`
	ContactPerson *string `json:"contact_person,omitempty" example:"Jordan Reyes"`
}

//
// Handlers
//

// CreateVendor godoc
// @ID          createVendor
// @Summary     Register a vendor
// @Description Registers a vendor in the directory. Email is unique (case-insensitive).
// @Tags        Vendors
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.CreateVendorRequest  true  "Vendor payload"
//
// @Success     201  {object}  domain.Vendor
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     409  {object}  handlers.ErrorResponse  "Email already registered"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /vendors [post]
func (h *Handlers) CreateVendor(c *gin.Context) {
	var req CreateVendorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	v, err := h.vendorSvc.Register(c.Request.Context(), req.Name, req.Email, req.Category, req.ContactPerson)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrDuplicateVendor):
			fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
		case errors.Is(err, services.ErrInvalidVendor):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusCreated, v)
}

// ListVendors godoc
// @ID          listVendors
// @Summary     List vendors
// @Description Returns all registered vendors, newest first.
// @Tags        Vendors
// @Produce     json
//
// @Success     200  {array}   domain.Vendor
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /vendors [get]
func (h *Handlers) ListVendors(c *gin.Context) {
	vendors, err := h.vendorSvc.List(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, vendors)
}
