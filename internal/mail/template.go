// Package mail renders and delivers outbound RFP invitations. Delivery is
// provider-swappable behind the Mailer interface: SMTP for local setups,
// a Resend-compatible HTTPS API for production.
package mail

import (
	"bytes"
	"fmt"
	"html/template"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/procurehub/go-procurement-backend/internal/domain"
)

// RFPSubject is the fixed subject line for dispatched invitations. Vendor
// replies quoting it pass the inbound subject gate.
const RFPSubject = "Request for Proposal - Your Expertise Needed"

var rfpTmpl = template.Must(template.New("rfp").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
    .header { background-color: #4CAF50; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
    .content { background-color: #f9f9f9; padding: 30px; border: 1px solid #ddd; border-radius: 0 0 5px 5px; }
    .section { margin-bottom: 20px; }
    .section-title { font-weight: bold; color: #4CAF50; margin-bottom: 10px; font-size: 16px; }
    ul { padding-left: 20px; }
    li { margin-bottom: 8px; }
    .info-box { background-color: white; padding: 15px; border-left: 4px solid #4CAF50; margin: 15px 0; }
    .footer { margin-top: 30px; padding-top: 20px; border-top: 2px solid #ddd; color: #666; font-size: 14px; }
  </style>
</head>
<body>
  <div class="header">
    <h1>Request for Proposal (RFP)</h1>
  </div>
  <div class="content">
    <p>Dear {{.VendorName}},</p>
    <p>We are pleased to invite you to submit a proposal for the following procurement requirement:</p>
    <div class="section">
      <div class="section-title">Required Items:</div>
      <ul>
        {{- if .Items}}
        {{- range .Items}}
        <li><strong>{{.Name}}</strong>{{if .Specs}} - {{.Specs}}{{end}} (Quantity: {{.Quantity}})</li>
        {{- end}}
        {{- else}}
        <li>No specific items listed</li>
        {{- end}}
      </ul>
    </div>
    <div class="info-box">
      <div class="section">
        <div class="section-title">Budget:</div>
        <p>{{.Budget}}</p>
      </div>
      <div class="section">
        <div class="section-title">Deadline for Submission:</div>
        <p>{{.Deadline}}</p>
      </div>
      {{- if .PaymentTerms}}
      <div class="section">
        <div class="section-title">Payment Terms:</div>
        <p>{{.PaymentTerms}}</p>
      </div>
      {{- end}}
      {{- if .Warranty}}
      <div class="section">
        <div class="section-title">Warranty Requirements:</div>
        <p>{{.Warranty}}</p>
      </div>
      {{- end}}
    </div>
    <div class="footer">
      <p><strong>How to Respond:</strong></p>
      <p>Please reply to this email with your proposal including pricing, delivery timeline, and any relevant product/service details.</p>
      <p>We look forward to your competitive proposal.</p>
      <p>Best regards,<br>Procurement Team</p>
    </div>
  </div>
</body>
</html>
`))

type rfpTmplData struct {
	VendorName   string
	Items        []domain.RFPItem
	Budget       string
	Deadline     string
	PaymentTerms string
	Warranty     string
}

var moneyPrinter = message.NewPrinter(language.English)

// RenderRFPHTML renders the invitation body for one vendor from the RFP's
// structured requirements. Absent fields render as "Not specified".
func RenderRFPHTML(vendorName string, rfp *domain.RFP) (string, error) {
	data := rfpTmplData{
		VendorName: vendorName,
		Items:      rfp.Items,
		Budget:     "Not specified",
		Deadline:   "Not specified",
	}
	if rfp.Budget != nil {
		data.Budget = moneyPrinter.Sprintf("$%.2f", *rfp.Budget)
	}
	if rfp.Deadline != nil {
		data.Deadline = rfp.Deadline.UTC().Format("January 2, 2006")
	}
	if rfp.PaymentTerms != nil {
		data.PaymentTerms = *rfp.PaymentTerms
	}
	if rfp.Warranty != nil {
		data.Warranty = *rfp.Warranty
	}

	var buf bytes.Buffer
	if err := rfpTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render rfp email: %w", err)
	}
	return buf.String(), nil
}
