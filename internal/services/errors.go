// Package services defines the business logic for vendors, RFPs, and
// proposals. This file centralizes common service-level error values so that
// they can be consistently returned by service methods and checked by
// callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler layer.
package services

import "errors"

// Vendor-related errors.
var (
	// ErrVendorNotFound indicates that the requested vendor does not exist.
	ErrVendorNotFound = errors.New("vendor not found")

	// ErrDuplicateVendor is returned when a vendor with the same email
	// address already exists.
	ErrDuplicateVendor = errors.New("vendor email already registered")

	// ErrInvalidVendor is returned when a vendor registration is missing a
	// required field.
	ErrInvalidVendor = errors.New("vendor name, email and category are required")
)

// RFP-related errors.
var (
	// ErrRFPNotFound indicates that the requested RFP does not exist.
	ErrRFPNotFound = errors.New("rfp not found")

	// ErrEmptyDescription is returned when an RFP is created from an empty
	// description.
	ErrEmptyDescription = errors.New("description is empty")

	// ErrNotDraft is returned when a draft-only operation targets an RFP
	// that has already been published or closed.
	ErrNotDraft = errors.New("rfp is not a draft")

	// ErrInvalidStatus is returned when a status transition names an
	// unknown lifecycle state.
	ErrInvalidStatus = errors.New("invalid rfp status")

	// ErrNoVendors is returned when a dispatch is requested without any
	// vendors to send to.
	ErrNoVendors = errors.New("no vendors to dispatch to")

	// ErrDispatchFailed is returned when delivery failed for every vendor
	// of a dispatch.
	ErrDispatchFailed = errors.New("dispatch failed for all vendors")

	// ErrOracleUnavailable is returned when the extraction oracle cannot be
	// reached or produced unusable output.
	ErrOracleUnavailable = errors.New("ai service unavailable")
)

// Proposal-related errors.
var (
	// ErrProposalNotFound indicates that the requested proposal does not
	// exist.
	ErrProposalNotFound = errors.New("proposal not found")

	// ErrEmptyProposal is returned when a manual submission carries no
	// email body.
	ErrEmptyProposal = errors.New("proposal email body is empty")
)
