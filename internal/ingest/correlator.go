// Package ingest turns inbound vendor emails into stored proposals. The
// pipeline is the same for push-notified mail and webhook-delivered mail:
// identify the vendor from the sender address, correlate the reply to an
// RFP, extract structured terms, then upsert and fan out.
package ingest

import (
	"errors"
	"regexp"
	"strings"

	"gorm.io/gorm"

	"github.com/procurehub/go-procurement-backend/internal/repo"
)

// Typed pipeline failures. Each maps to "drop the message" at the caller;
// the distinction only matters for logging and tests.
var (
	// ErrUnknownVendor means the sender address matches no registered vendor.
	ErrUnknownVendor = errors.New("ingest: sender is not a registered vendor")
	// ErrNoOpenRFP means the vendor has never been sent an RFP, so the
	// reply cannot be correlated.
	ErrNoOpenRFP = errors.New("ingest: no rfp found for vendor")
	// ErrEmptyBody means no text part could be extracted from the message.
	ErrEmptyBody = errors.New("ingest: empty message body")
)

var (
	addrPattern    = regexp.MustCompile(`<(.+?)>`)
	subjectPattern = regexp.MustCompile(`(?i)RE:|RFP|proposal`)
)

// SenderAddress extracts the bare email address from a From header. A
// `Name <addr>` form yields the bracketed part; anything else is returned
// trimmed as-is, leaving validation to the vendor lookup.
func SenderAddress(from string) string {
	if m := addrPattern.FindStringSubmatch(from); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(from)
}

// SubjectRelated reports whether a subject line looks like an RFP reply.
// The gate is deliberately loose: "RE:" alone passes, since dispatched
// invitations carry a fixed subject vendors reply to.
func SubjectRelated(subject string) bool {
	return subjectPattern.MatchString(subject)
}

// RFPResolver decides which RFP an uncorrelated vendor reply belongs to.
type RFPResolver interface {
	ResolveRFP(db *gorm.DB, vendorID string) (string, error)
}

// LatestProposalResolver correlates by recency: the reply is attributed to
// the RFP of the vendor's most recently created proposal row. Dispatch seeds
// a placeholder row per invited vendor, so any invited vendor resolves; a
// vendor with no row at all yields ErrNoOpenRFP.
type LatestProposalResolver struct{}

// ResolveRFP implements RFPResolver.
func (LatestProposalResolver) ResolveRFP(db *gorm.DB, vendorID string) (string, error) {
	p, err := repo.LatestProposalForVendor(db, vendorID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", ErrNoOpenRFP
		}
		return "", err
	}
	return p.RFPID, nil
}
