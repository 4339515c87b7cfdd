// Inbound webhook handlers.
//
// This file exposes the two entry points through which vendor replies reach
// the system without operator involvement:
//   - POST /webhooks/email       (generic inbound-email webhook)
//   - POST /webhooks/gmail-push  (Pub/Sub push notification for the mailbox)
//
// Both endpoints acknowledge with 200 even when processing fails. Email
// providers and Pub/Sub retry non-2xx deliveries; a reply that cannot be
// ingested (unknown sender, malformed body) will never succeed on retry, so
// failures are logged and swallowed instead of bounced.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/procurehub/go-procurement-backend/internal/http/middleware"
	"github.com/procurehub/go-procurement-backend/internal/ingest"
)

//
// DTOs
//

// InboundEmailRequest is the JSON payload delivered by the email provider's
// inbound webhook. Field names follow the common provider convention.
//
// Subject is informational only. Webhook deliveries are already scoped to
// the procurement address, so every message is handed to correlation as-is;
// subject filtering only applies to the push-notification path, which scans
// a whole mailbox.
type InboundEmailRequest struct {
	From    string `json:"from"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// WebhookAck is the acknowledgement body returned to webhook callers.
type WebhookAck struct {
	Status string `json:"status" example:"processed"`
	Detail string `json:"detail,omitempty"`
}

//
// Handlers
//

// InboundEmail godoc
// @ID          inboundEmail
// @Summary     Ingest a vendor reply delivered by an email webhook
// @Description Correlates the sender with a vendor, extracts structured fields from the body, and records the proposal. Always acknowledges with 200 so the provider does not retry undeliverable messages.
// @Tags        Webhooks
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.InboundEmailRequest  true  "Inbound email payload"
//
// @Success     200  {object}  handlers.WebhookAck
// @Router      /webhooks/email [post]
func (h *Handlers) InboundEmail(c *gin.Context) {
	var req InboundEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ok(c, http.StatusOK, WebhookAck{Status: "ignored", Detail: "invalid JSON body"})
		return
	}

	_, err := h.ingestor.ProcessReply(c.Request.Context(), req.From, req.Body)
	if err != nil {
		middleware.CountProposalDropped(ingest.DropReason(err))
		middleware.LoggerFrom(c).Warn().
			Err(err).
			Str("from", req.From).
			Str("subject", req.Subject).
			Msg("inbound email not ingested")
		ok(c, http.StatusOK, WebhookAck{Status: "ignored", Detail: err.Error()})
		return
	}

	middleware.CountProposalIngested("webhook")
	ok(c, http.StatusOK, WebhookAck{Status: "processed"})
}

// GmailPush godoc
// @ID          gmailPush
// @Summary     Ingest a mailbox push notification
// @Description Decodes the Pub/Sub envelope, acknowledges immediately, and processes new messages since the stored history cursor in the background. Always 200; Pub/Sub redelivers non-2xx responses indefinitely.
// @Tags        Webhooks
// @Accept      json
// @Produce     json
//
// @Success     200  {object}  handlers.WebhookAck
// @Router      /webhooks/gmail-push [post]
func (h *Handlers) GmailPush(c *gin.Context) {
	if h.push == nil {
		ok(c, http.StatusOK, WebhookAck{Status: "ignored", Detail: "mailbox monitoring disabled"})
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		ok(c, http.StatusOK, WebhookAck{Status: "ignored", Detail: "unreadable body"})
		return
	}

	n, err := ingest.DecodeNotification(body)
	if err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("malformed push notification")
		ok(c, http.StatusOK, WebhookAck{Status: "ignored", Detail: "malformed notification"})
		return
	}

	// Process after acking, on a context detached from the request. A
	// Pub/Sub subscriber disconnect must not cancel oracle or mailbox calls
	// mid-batch: the cursor advances either way, so interrupted messages
	// would never be retried.
	ctx := context.WithoutCancel(c.Request.Context())
	go func() {
		if err := h.push.HandleNotification(ctx, n); err != nil {
			log.Error().
				Err(err).
				Uint64("history_id", n.HistoryID).
				Msg("push notification processing failed")
		}
	}()

	ok(c, http.StatusOK, WebhookAck{Status: "accepted"})
}
