package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending Status = "Pending"
	StatusPaid    Status = "Paid"
)

// ParseStatus normalizes provider and legacy spellings.
func ParseStatus(raw string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending", "pendiente":
		return StatusPending, true
	case "paid", "pagado":
		return StatusPaid, true
	}
	return "", false
}

// CanTransition reports whether moving from s to target is a forward step.
func (s Status) CanTransition(target Status) bool {
	return s == StatusPending && target == StatusPaid
}

// Receipt records the payment outcome of one fee record. fee_record_id is
// unique; Paid is terminal.
//
// PaymentID is the correlation key the receipt was opened with (a BCM client
// code or the first Mercado Pago payment) and never changes. The payment that
// settled the receipt is kept in ConfirmedPaymentID.
type Receipt struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	ReceiptNumber string       `gorm:"column:receipt_number;type:varchar(50);not null;uniqueIndex:ux_receipts_number"`
	FeeRecordID   snowflake.ID `gorm:"column:fee_record_id;not null;uniqueIndex:ux_receipts_fee_record"`
	PaymentID     string       `gorm:"column:payment_id;type:varchar(100);not null;index:ix_receipts_payment_id"`
	Status        Status       `gorm:"column:status;type:varchar(16);not null"`
	PaymentMethod string       `gorm:"column:payment_method;type:varchar(50);not null"`

	ConfirmedPaymentID string `gorm:"column:confirmed_payment_id;type:varchar(100);not null;default:'';index:ix_receipts_confirmed_payment_id"`
	ConfirmedBy        string `gorm:"column:confirmed_by;type:varchar(32);not null;default:''"`

	// Snapshot of the fee record at creation time.
	CaseNumber string          `gorm:"column:case_number;type:varchar(80)"`
	Caption    string          `gorm:"column:caption;type:varchar(255)"`
	Court      string          `gorm:"column:court;type:varchar(255)"`
	FilingDate time.Time       `gorm:"column:filing_date;type:date"`
	DueDate    time.Time       `gorm:"column:due_date;type:date"`
	DueAmount  decimal.Decimal `gorm:"column:due_amount;type:numeric(14,2);not null"`
	JusticeFee decimal.Decimal `gorm:"column:justice_fee;type:numeric(14,2);not null"`

	PaidAt    *time.Time `gorm:"column:paid_at"`
	CreatedAt time.Time  `gorm:"not null"`
	UpdatedAt time.Time  `gorm:"not null"`
}

func (Receipt) TableName() string { return "receipts" }

func (r *Receipt) Paid() bool {
	return r.Status == StatusPaid
}

// ConfirmationID is the payment that settled the receipt. Rows paid before
// confirmations were tracked fall back to the correlation key.
func (r *Receipt) ConfirmationID() string {
	if r.ConfirmedPaymentID != "" {
		return r.ConfirmedPaymentID
	}
	return r.PaymentID
}

// Confirmation is the payment settling a Pending receipt.
type Confirmation struct {
	PaymentID string
	Provider  string
	PaidAt    time.Time
}

// Outcome is what Apply did to the receipt of a fee record.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeIgnored Outcome = "ignored"
)

type ApplyInput struct {
	FeeRecordID   snowflake.ID
	PaymentID     string
	Target        Status
	PaymentMethod string
	Provider      string
}

type Result struct {
	Outcome       Outcome
	Receipt       *Receipt
	// BecamePaid is set when this call moved the receipt into Paid.
	BecamePaid    bool
	// SecondPayment is set when a different payment reported Paid for a
	// receipt that was already settled.
	SecondPayment bool
}

// PaidEvent is the outbox payload of a receipt reaching Paid.
type PaidEvent struct {
	ReceiptID   string `json:"receipt_id"`
	FeeRecordID string `json:"fee_record_id"`
	PaymentID   string `json:"payment_id"`
	Provider    string `json:"provider,omitempty"`
}

// EventReceiptPaid is the outbox kind emitted on the first Paid transition.
const EventReceiptPaid = "receipt.paid"
