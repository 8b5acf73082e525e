package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/colegio/internal/config"
	feerecorddomain "github.com/smallbiznis/colegio/internal/feerecord/domain"
	outboxdomain "github.com/smallbiznis/colegio/internal/outbox/domain"
	"github.com/smallbiznis/colegio/internal/providers/email"
	receiptdomain "github.com/smallbiznis/colegio/internal/receipt/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const receiptPaidTemplate = "receipt_paid"

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	Config        config.Config
	Email         email.Provider
	ReceiptRepo   receiptdomain.Repository
	FeeRecordRepo feerecorddomain.Repository
}

// ReceiptPaidHandler mails the payment confirmation to the payer of the fee
// record once its receipt is Paid.
type ReceiptPaidHandler struct {
	db            *gorm.DB
	log           *zap.Logger
	backendURL    string
	email         email.Provider
	receiptRepo   receiptdomain.Repository
	feeRecordRepo feerecorddomain.Repository
}

func NewReceiptPaidHandler(p Params) *ReceiptPaidHandler {
	return &ReceiptPaidHandler{
		db:            p.DB,
		log:           p.Log.Named("notification.receipt_paid"),
		backendURL:    p.Config.BackendURL,
		email:         p.Email,
		receiptRepo:   p.ReceiptRepo,
		feeRecordRepo: p.FeeRecordRepo,
	}
}

func (h *ReceiptPaidHandler) Kind() string {
	return receiptdomain.EventReceiptPaid
}

type receiptPaidView struct {
	CaseNumber    string
	Caption       string
	Court         string
	DueAmount     string
	PaymentMethod string
	PaymentID     string
	ReceiptNumber string
	DownloadURL   string
}

func (h *ReceiptPaidHandler) Handle(ctx context.Context, msg outboxdomain.Message) error {
	var event receiptdomain.PaidEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return fmt.Errorf("%w: decode payload: %v", outboxdomain.ErrPermanent, err)
	}
	feeRecordID, err := snowflake.ParseString(event.FeeRecordID)
	if err != nil {
		return fmt.Errorf("%w: fee_record_id %q", outboxdomain.ErrPermanent, event.FeeRecordID)
	}

	receipt, err := h.receiptRepo.FindByFeeRecordID(ctx, h.db, feeRecordID)
	if err != nil {
		return err
	}
	if receipt == nil || !receipt.Paid() {
		return fmt.Errorf("%w: no paid receipt for fee record %s", outboxdomain.ErrPermanent, event.FeeRecordID)
	}
	feeRecord, err := h.feeRecordRepo.FindByID(ctx, h.db, feeRecordID)
	if err != nil {
		return err
	}
	if feeRecord == nil {
		return fmt.Errorf("%w: fee record %s not found", outboxdomain.ErrPermanent, event.FeeRecordID)
	}

	view := receiptPaidView{
		CaseNumber:    feeRecord.CaseNumber,
		Caption:       feeRecord.Caption,
		Court:         feeRecord.Court,
		DueAmount:     receipt.DueAmount.StringFixed(2),
		PaymentMethod: receipt.PaymentMethod,
		PaymentID:     receipt.ConfirmationID(),
		ReceiptNumber: receipt.ReceiptNumber,
		DownloadURL:   DownloadURL(h.backendURL, feeRecord.UUID),
	}
	subject := "Pago registrado para el Derecho Fijo del expediente " + feeRecord.CaseNumber

	if err := h.email.SendTemplate(ctx, []string{feeRecord.PayerEmail}, subject, receiptPaidTemplate, view); err != nil {
		return fmt.Errorf("send receipt email: %w", err)
	}

	h.log.Info("receipt confirmation sent",
		zap.String("fee_record_id", event.FeeRecordID),
		zap.String("payment_id", receipt.ConfirmationID()),
		zap.String("receipt_number", receipt.ReceiptNumber),
	)
	return nil
}

// DownloadURL is the public link to the PDF receipt of a fee record.
func DownloadURL(backendURL, feeRecordUUID string) string {
	return backendURL + "/api/forms/download_receipt?derecho_fijo_uuid=" + url.QueryEscape(feeRecordUUID)
}
