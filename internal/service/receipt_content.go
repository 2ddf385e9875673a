package service

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/sportfabrik/bonuscard/internal/constants"
	"github.com/sportfabrik/bonuscard/internal/models"
)

const (
	berlinDateLayout = "02.01.2006"
	berlinTimeLayout = "15:04"
)

// ReceiptRenderer builds the German member-facing receipt emails from
// an outbox snapshot. All timestamps are formatted in the configured
// timezone (Europe/Berlin in production).
type ReceiptRenderer struct {
	location   *time.Location
	bonusTotal int
}

// NewReceiptRenderer creates a renderer.
func NewReceiptRenderer(location *time.Location, bonusTotal int) *ReceiptRenderer {
	if location == nil {
		location = time.UTC
	}
	if bonusTotal <= 0 {
		bonusTotal = 11
	}
	return &ReceiptRenderer{location: location, bonusTotal: bonusTotal}
}

// RenderedReceipt is a ready-to-send email.
type RenderedReceipt struct {
	Subject  string
	BodyText string
	BodyHTML string
}

var rollbackReasonLabels = map[string]string{
	constants.RollbackReasonMistake:        "Versehentliche Abbuchung",
	constants.RollbackReasonFraudSuspected: "Verdacht auf Betrug",
	constants.RollbackReasonCardLost:       "Karte verloren/gestohlen",
	constants.RollbackReasonOther:          "Sonstiger Grund",
}

// Render produces subject and bodies for a receipt. Receipts exist
// only for deductions and rollbacks; anything else is a data defect
// and fails closed.
func (r *ReceiptRenderer) Render(receipt *models.EmailReceipt) (*RenderedReceipt, error) {
	if err := r.Validate(receipt); err != nil {
		return nil, err
	}
	switch receipt.EventType {
	case constants.EventTypeDeduct:
		return r.renderDeduction(receipt), nil
	case constants.EventTypeRollback:
		return r.renderRollback(receipt), nil
	default:
		return nil, fmt.Errorf("%w: unexpected event type %q", ErrReceiptDataIncomplete, receipt.EventType)
	}
}

// Validate checks the frozen render snapshot. A receipt that cannot
// be rendered truthfully is never sent.
func (r *ReceiptRenderer) Validate(receipt *models.EmailReceipt) error {
	if receipt == nil {
		return ErrReceiptDataIncomplete
	}
	if strings.TrimSpace(receipt.ToEmail) == "" {
		return fmt.Errorf("%w: missing recipient", ErrReceiptDataIncomplete)
	}
	if strings.TrimSpace(receipt.MemberName) == "" {
		return fmt.Errorf("%w: missing member name", ErrReceiptDataIncomplete)
	}
	if strings.TrimSpace(receipt.CardSerial) == "" {
		return fmt.Errorf("%w: missing card serial", ErrReceiptDataIncomplete)
	}
	if receipt.EventTime.IsZero() {
		return fmt.Errorf("%w: missing event time", ErrReceiptDataIncomplete)
	}
	return nil
}

func (r *ReceiptRenderer) renderDeduction(receipt *models.EmailReceipt) *RenderedReceipt {
	localTime := receipt.EventTime.In(r.location).Format(berlinTimeLayout)
	expires := r.formatExpiry(receipt.CardExpiresAt)

	subject := fmt.Sprintf("Sportfabrik – Besuch erfasst (%s)", receipt.ProductLabel)

	var text strings.Builder
	fmt.Fprintf(&text, "Hallo %s,\n\n", receipt.MemberName)
	fmt.Fprintf(&text, "heute um %s wurde 1 Besuch erfasst.\n\n", localTime)
	fmt.Fprintf(&text, "Kartennummer: %s\n", receipt.CardSerial)
	fmt.Fprintf(&text, "Produkt: %s\n", receipt.ProductLabel)
	if receipt.RemainingUses != nil {
		fmt.Fprintf(&text, "Restguthaben: %d von %d\n", *receipt.RemainingUses, r.bonusTotal)
	}
	fmt.Fprintf(&text, "Ablaufdatum: %s\n\n", expires)
	text.WriteString("---\n\n")
	text.WriteString("Diese E-Mail wurde automatisch generiert. Die Erfassung erfolgt im Rahmen unserer Leistungserbringung.\n\n")
	text.WriteString("Hinweis zum Datenschutz: Wir verarbeiten Ihre Daten ausschließlich zur Erbringung unserer Dienstleistung gemäß Art. 6 Abs. 1 lit. b DSGVO.\n\n")
	text.WriteString("Sportfabrik FTG")

	var usageRow string
	if receipt.RemainingUses != nil {
		usageRow = fmt.Sprintf("<p><strong>Restguthaben:</strong> %d von %d</p>", *receipt.RemainingUses, r.bonusTotal)
	}
	bodyHTML := fmt.Sprintf(`<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
  <h2 style="color: #2c5530;">Besuch erfasst</h2>
  <p>Hallo <strong>%s</strong>,</p>
  <p>heute um <strong>%s</strong> wurde 1 Besuch erfasst.</p>
  <div style="background-color: #f8f9fa; padding: 15px; border-radius: 5px; margin: 20px 0;">
    <p><strong>Kartennummer:</strong> %s</p>
    <p><strong>Produkt:</strong> %s</p>
    %s
    <p><strong>Ablaufdatum:</strong> %s</p>
  </div>
  <p style="font-size: 12px; color: #666;"><em>Diese E-Mail wurde automatisch generiert. Die Erfassung erfolgt im Rahmen unserer Leistungserbringung.</em></p>
  <p style="font-size: 12px; color: #666;"><strong>Hinweis zum Datenschutz:</strong> Wir verarbeiten Ihre Daten ausschließlich zur Erbringung unserer Dienstleistung gemäß Art. 6 Abs. 1 lit. b DSGVO.</p>
  <p style="margin-top: 20px; font-weight: bold; color: #2c5530;">Sportfabrik FTG</p>
</body>
</html>`,
		html.EscapeString(receipt.MemberName),
		localTime,
		html.EscapeString(receipt.CardSerial),
		html.EscapeString(receipt.ProductLabel),
		usageRow,
		expires,
	)

	return &RenderedReceipt{Subject: subject, BodyText: text.String(), BodyHTML: bodyHTML}
}

func (r *ReceiptRenderer) renderRollback(receipt *models.EmailReceipt) *RenderedReceipt {
	local := receipt.EventTime.In(r.location)
	reason := "Korrektur erforderlich"
	if receipt.RollbackReason != nil {
		if label, ok := rollbackReasonLabels[*receipt.RollbackReason]; ok {
			reason = label
		}
	}
	remainingText := "Unlimited-Karte (unbegrenzte Nutzungen)"
	if receipt.RemainingUses != nil {
		remainingText = fmt.Sprintf("Verbleibende Nutzungen: %d", *receipt.RemainingUses)
	}

	subject := fmt.Sprintf("Korrektur Bonuskarte - %s", receipt.CardSerial)

	var text strings.Builder
	fmt.Fprintf(&text, "Hallo %s,\n\n", receipt.MemberName)
	fmt.Fprintf(&text, "Eine Abbuchung von Ihrer %s wurde korrigiert.\n\n", receipt.ProductLabel)
	fmt.Fprintf(&text, "Karte: %s\n", receipt.CardSerial)
	fmt.Fprintf(&text, "Korrigiert am: %s um %s\n", local.Format(berlinDateLayout), local.Format(berlinTimeLayout))
	fmt.Fprintf(&text, "Grund: %s\n", reason)
	fmt.Fprintf(&text, "%s\n\n", remainingText)
	text.WriteString("Bei Fragen wenden Sie sich bitte an unser Personal.\n\n")
	text.WriteString("Mit freundlichen Grüßen\nIhr FTG Sportfabrik Team")

	bodyHTML := fmt.Sprintf(`<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
  <h2 style="color: #2c5530;">Korrektur Bonuskarte</h2>
  <p>Hallo <strong>%s</strong>,</p>
  <p>Eine Abbuchung von Ihrer <strong>%s</strong> wurde korrigiert.</p>
  <div style="background-color: #fff3cd; padding: 15px; border-radius: 5px; margin: 20px 0; border-left: 4px solid #ffc107;">
    <p><strong>Karte:</strong> %s</p>
    <p><strong>Korrigiert am:</strong> %s um %s</p>
    <p><strong>Grund:</strong> %s</p>
    <p><strong>%s</strong></p>
  </div>
  <p>Bei Fragen wenden Sie sich bitte an unser Personal.</p>
  <p style="margin-top: 30px;">Mit freundlichen Grüßen<br><strong>Ihr FTG Sportfabrik Team</strong></p>
</body>
</html>`,
		html.EscapeString(receipt.MemberName),
		html.EscapeString(receipt.ProductLabel),
		html.EscapeString(receipt.CardSerial),
		local.Format(berlinDateLayout),
		local.Format(berlinTimeLayout),
		html.EscapeString(reason),
		html.EscapeString(remainingText),
	)

	return &RenderedReceipt{Subject: subject, BodyText: text.String(), BodyHTML: bodyHTML}
}

func (r *ReceiptRenderer) formatExpiry(expiresAt *time.Time) string {
	if expiresAt == nil {
		return "-"
	}
	return expiresAt.In(r.location).Format(berlinDateLayout)
}
