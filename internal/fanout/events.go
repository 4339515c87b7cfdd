// Package fanout delivers proposal notifications to live subscribers. Each
// channel has in-process subscribers holding buffered Go channels; when a
// Redis client is configured, published events are also appended to a
// per-channel Redis list so reconnecting clients can replay what they missed.
package fanout

import (
	"github.com/procurehub/go-procurement-backend/internal/domain"
)

// Event types carried on the hub.
const (
	// EventNewProposal is published on an RFP's own channel when a reply
	// for it is ingested.
	EventNewProposal = "new-proposal"
	// EventProposalUpdate is the same payload published on the global
	// channel every subscriber sees.
	EventProposalUpdate = "proposal-update"
)

// GlobalChannel carries every proposal event regardless of RFP.
const GlobalChannel = "proposals"

// RFPChannel names the per-RFP channel.
func RFPChannel(rfpID string) string {
	return "rfp-" + rfpID
}

// Event is one hub notification. ID is the position in the channel's replay
// log, assigned at publish time.
type Event struct {
	ID   int64       `json:"id"`
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// ProposalEvent is the payload for proposal notifications: the stored
// proposal (vendor preloaded) plus the RFP's current response snapshot.
type ProposalEvent struct {
	Proposal      *domain.Proposal     `json:"proposal"`
	RFPID         string               `json:"rfp_id"`
	ResponseStats domain.ResponseStats `json:"response_stats"`
}
