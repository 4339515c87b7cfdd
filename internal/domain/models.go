// Package domain defines the persistence models for vendors, RFPs, and
// proposals. These types are mapped with GORM and form the core data layer
// of the procurement application.
package domain

import (
	"time"
)

// RFPStatus is the lifecycle state of an RFP.
type RFPStatus string

// RFP lifecycle states. A draft becomes published on first successful
// dispatch and is eventually closed by the buyer.
const (
	StatusDraft     RFPStatus = "draft"
	StatusPublished RFPStatus = "published"
	StatusClosed    RFPStatus = "closed"
)

// VendorRole describes how a vendor relates to an RFP. The original document
// model kept three vendor-ID arrays on the RFP; relationally each membership
// is one row in rfp_vendors with a role, and set semantics come from the
// unique (rfp_id, vendor_id, role) index.
type VendorRole string

const (
	// RoleSent marks vendors the RFP was dispatched to.
	RoleSent VendorRole = "sent"
	// RoleResponded marks vendors whose reply has been ingested. Grows
	// monotonically; never contains duplicates.
	RoleResponded VendorRole = "responded"
	// RoleSelected marks vendors chosen while the RFP is still a draft.
	RoleSelected VendorRole = "selected"
)

// Vendor is a supplier identity, unique by (lowercased) email address.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Name: display name of the vendor.
//   - Email: natural key; persisted lowercased, unique index enforced.
//   - Category: free-form category tag used for RFP matching.
//   - ContactPerson: optional named contact.
type Vendor struct {
	ID            string    `json:"id"             gorm:"type:char(36);primaryKey"`
	Name          string    `json:"name"           gorm:"type:varchar(255);not null"`
	Email         string    `json:"email"          gorm:"type:varchar(320);not null;uniqueIndex:ux_vendor_email"`
	Category      string    `json:"category"       gorm:"type:varchar(128);not null;index:idx_vendor_category"`
	ContactPerson *string   `json:"contact_person,omitempty" gorm:"type:varchar(255)"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName returns the database table name for Vendor.
func (Vendor) TableName() string { return "vendors" }

// RFPItem is one requested line item inside an RFP's structured requirements.
type RFPItem struct {
	Name     string `json:"name"`
	Specs    string `json:"specs,omitempty"`
	Quantity int    `json:"quantity"`
}

// RFP is a Request for Proposal: the immutable original free-text ask plus
// the structured requirements extracted from it.
//
// The extracted fields are independently nullable because extraction may fail
// to find any one of them. Items and SuggestedCategories are stored as JSON
// via GORM's serializer.
type RFP struct {
	ID                  string     `json:"id"                   gorm:"type:char(36);primaryKey"`
	OriginalDescription string     `json:"original_description" gorm:"type:text;not null"`
	Items               []RFPItem  `json:"items"                gorm:"serializer:json"`
	Budget              *float64   `json:"budget,omitempty"`
	Deadline            *time.Time `json:"deadline,omitempty"`
	PaymentTerms        *string    `json:"payment_terms,omitempty"    gorm:"type:text"`
	Warranty            *string    `json:"warranty,omitempty"         gorm:"type:text"`
	Category            *string    `json:"category,omitempty"         gorm:"type:varchar(128)"`
	SuggestedCategories []string   `json:"suggested_categories,omitempty" gorm:"serializer:json"`
	Status              RFPStatus  `json:"status"               gorm:"type:varchar(16);not null;default:'draft';index:idx_rfp_status"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// TableName returns the database table name for RFP.
func (RFP) TableName() string { return "rfps" }

// RFPVendor is one (RFP, vendor, role) membership row. Inserts use
// ON CONFLICT DO NOTHING so repeated additions are a no-op, giving the
// responded/sent/selected sets their no-duplicates guarantee.
type RFPVendor struct {
	ID        string     `json:"id"        gorm:"type:char(36);primaryKey"`
	RFPID     string     `json:"rfp_id"    gorm:"type:char(36);not null;uniqueIndex:ux_rfp_vendor_role,priority:1;index:idx_rfp_vendor_rfp"`
	VendorID  string     `json:"vendor_id" gorm:"type:char(36);not null;uniqueIndex:ux_rfp_vendor_role,priority:2"`
	Role      VendorRole `json:"role"      gorm:"type:varchar(16);not null;uniqueIndex:ux_rfp_vendor_role,priority:3;check:role IN ('sent','responded','selected')"`
	CreatedAt time.Time  `json:"created_at"`
}

// TableName returns the database table name for RFPVendor.
func (RFPVendor) TableName() string { return "rfp_vendors" }

// Proposal is a vendor's response to one RFP. The (RFPID, VendorID) pair is a
// uniqueness key: at most one current proposal exists per pair, and new
// replies replace the previous content in place.
//
// Two raw-body fields reflect the two ingestion origins: RawEmailBody is
// written by the automated pipeline, VendorResponseEmail by manual
// submission. Both may coexist over the record's lifetime; an upsert only
// refreshes the field matching its ReplySource.
//
// Compliance is a tri-state: Fulfilled is nil until first evaluated, then a
// cached boolean accompanied by Reasons and ComplianceSummary.
type Proposal struct {
	ID                  string     `json:"id"        gorm:"type:char(36);primaryKey"`
	RFPID               string     `json:"rfp_id"    gorm:"type:char(36);not null;uniqueIndex:ux_proposal_pair,priority:1;index:idx_proposal_rfp"`
	VendorID            string     `json:"vendor_id" gorm:"type:char(36);not null;uniqueIndex:ux_proposal_pair,priority:2;index:idx_proposal_vendor"`
	RawEmailBody        string     `json:"raw_email_body,omitempty"        gorm:"type:text"`
	VendorResponseEmail string     `json:"vendor_response_email,omitempty" gorm:"type:text"`
	TotalPrice          *float64   `json:"total_price,omitempty"`
	DeliveryDate        *time.Time `json:"delivery_date,omitempty"`
	WarrantyProvided    *string    `json:"warranty_provided,omitempty" gorm:"type:text"`
	Notes               *string    `json:"notes,omitempty"             gorm:"type:text"`
	AIScore             *float64   `json:"ai_score,omitempty"`
	Fulfilled           *bool      `json:"fulfilled"`
	Reasons             []string   `json:"reasons,omitempty" gorm:"serializer:json"`
	ComplianceSummary   string     `json:"compliance_summary,omitempty" gorm:"type:text"`
	ReceivedAt          time.Time  `json:"received_at"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`

	// Vendor is preloaded for fanout events and proposal listings.
	Vendor *Vendor `json:"vendor,omitempty" gorm:"foreignKey:VendorID;references:ID"`
}

// TableName returns the database table name for Proposal.
func (Proposal) TableName() string { return "proposals" }

// ProposalFields are the structured values extracted from a vendor reply.
// Each field is independently nullable: extraction may find any subset.
type ProposalFields struct {
	TotalPrice       *float64   `json:"total_price"`
	DeliveryDate     *time.Time `json:"delivery_date"`
	WarrantyProvided *string    `json:"warranty_provided"`
	Notes            *string    `json:"notes"`
}

// PushCursor persists the mailbox change-log position (lastHistoryId) so the
// push listener survives restarts instead of relying on process memory.
type PushCursor struct {
	Mailbox   string    `json:"mailbox"    gorm:"type:varchar(320);primaryKey"`
	HistoryID string    `json:"history_id" gorm:"type:varchar(64);not null"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for PushCursor.
func (PushCursor) TableName() string { return "push_cursors" }

// ResponseStats is the response snapshot for one RFP, computed from the
// sent/responded membership sets (never from proposal counts, so repeated
// replies from one vendor cannot inflate it).
type ResponseStats struct {
	TotalResponses        int `json:"total_responses"`
	TotalVendorsContacted int `json:"total_vendors_contacted"`
	PendingResponses      int `json:"pending_responses"`
	// ResponseRate is round(100 * responded / contacted); 0 when nothing
	// was contacted.
	ResponseRate int `json:"response_rate"`
}

// NewResponseStats computes a zero-safe stats snapshot.
func NewResponseStats(responded, contacted int) ResponseStats {
	rate := 0
	if contacted > 0 {
		rate = int(float64(responded)/float64(contacted)*100 + 0.5)
	}
	return ResponseStats{
		TotalResponses:        responded,
		TotalVendorsContacted: contacted,
		PendingResponses:      contacted - responded,
		ResponseRate:          rate,
	}
}
