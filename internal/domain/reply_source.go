package domain

// replyKind tags the origin of an ingested vendor reply.
type replyKind int

const (
	replyAutomated replyKind = iota
	replyManual
)

// ReplySource is a tagged variant identifying which ingestion path produced a
// raw reply body. The automated pipeline and manual submission write to
// different raw-body fields on the Proposal; only the field matching the
// source of the most recent ingestion is refreshed per upsert.
type ReplySource struct {
	kind replyKind
	body string
}

// AutomatedReply wraps a body ingested by the email pipeline (webhook or
// push-notification path).
func AutomatedReply(body string) ReplySource {
	return ReplySource{kind: replyAutomated, body: body}
}

// ManualReply wraps a body submitted directly by an operator.
func ManualReply(body string) ReplySource {
	return ReplySource{kind: replyManual, body: body}
}

// Body returns the raw reply text.
func (r ReplySource) Body() string { return r.body }

// IsManual reports whether the reply came through the manual submission path.
func (r ReplySource) IsManual() bool { return r.kind == replyManual }

// Apply writes the body onto the proposal field matching the ingestion path,
// leaving the other raw-body field untouched.
func (r ReplySource) Apply(p *Proposal) {
	if r.kind == replyManual {
		p.VendorResponseEmail = r.body
		return
	}
	p.RawEmailBody = r.body
}
