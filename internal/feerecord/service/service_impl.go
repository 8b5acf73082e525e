package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/colegio/internal/clock"
	feerecorddomain "github.com/smallbiznis/colegio/internal/feerecord/domain"
	receiptdomain "github.com/smallbiznis/colegio/internal/receipt/domain"
	"github.com/smallbiznis/colegio/pkg/civildate"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	paymentMethodBolsaQR   = "QR BCM"
	paymentMethodBolsaSlip = "Boleta BCM"

	clientCodeLength   = 10
	clientCodeAttempts = 5
)

// ClientCodeSource yields candidate BCM client codes.
type ClientCodeSource func() string

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        feerecorddomain.Repository
	ReceiptSvc  receiptdomain.Service
	ClientCodes ClientCodeSource `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        feerecorddomain.Repository
	receiptSvc  receiptdomain.Service
	clientCodes ClientCodeSource
}

func New(p Params) feerecorddomain.Service {
	s := &Service{
		db:          p.DB,
		log:         p.Log.Named("feerecord.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		receiptSvc:  p.ReceiptSvc,
		clientCodes: p.ClientCodes,
	}
	if s.clientCodes == nil {
		s.clientCodes = newClientCode
	}
	return s
}

func (s *Service) Create(ctx context.Context, req feerecorddomain.CreateRequest) (*feerecorddomain.Response, error) {
	record, err := s.buildRecord(req)
	if err != nil {
		return nil, err
	}

	var method string
	switch req.PaymentMethod {
	case feerecorddomain.CheckoutNone:
	case feerecorddomain.CheckoutBolsaQR:
		method = paymentMethodBolsaQR
	case feerecorddomain.CheckoutBolsaSlip:
		method = paymentMethodBolsaSlip
	default:
		return nil, feerecorddomain.ErrInvalidPaymentMethod
	}

	if err := s.repo.Insert(ctx, s.db, record); err != nil {
		return nil, err
	}
	resp := toResponse(record)

	if method == "" {
		return resp, nil
	}

	result, err := s.openCheckout(ctx, record, method)
	if err != nil {
		// A record without its checkout is unusable; withdraw it so a retry
		// does not leave a duplicate behind.
		if delErr := s.repo.SoftDelete(ctx, s.db, record.ID, s.clock.Now()); delErr != nil {
			s.log.Error("failed to withdraw fee record after checkout failure",
				zap.String("fee_record_id", record.ID.String()),
				zap.Error(delErr),
			)
		}
		return nil, err
	}
	resp.PaymentMethod = result.Receipt.PaymentMethod
	resp.PaymentID = result.Receipt.PaymentID
	return resp, nil
}

// openCheckout issues the client code the payer carries to the Bolsa
// marketplace. The receipt waits as Pending until the webhook confirms it.
func (s *Service) openCheckout(ctx context.Context, record *feerecorddomain.FeeRecord, method string) (*receiptdomain.Result, error) {
	code, err := s.unusedClientCode(ctx)
	if err != nil {
		return nil, err
	}
	result, err := s.receiptSvc.Apply(ctx, receiptdomain.ApplyInput{
		FeeRecordID:   record.ID,
		PaymentID:     code,
		Target:        receiptdomain.StatusPending,
		PaymentMethod: method,
		Provider:      "bolsa",
	})
	if err != nil {
		s.log.Error("failed to open pending receipt",
			zap.String("fee_record_id", record.ID.String()),
			zap.String("payment_id", code),
			zap.Error(err),
		)
		return nil, err
	}
	return result, nil
}

// unusedClientCode draws codes until one matches no receipt, since a Bolsa
// notification is routed by the code alone.
func (s *Service) unusedClientCode(ctx context.Context) (string, error) {
	for attempt := 1; attempt <= clientCodeAttempts; attempt++ {
		code := s.clientCodes()
		_, err := s.receiptSvc.FindByPaymentID(ctx, code)
		switch {
		case errors.Is(err, receiptdomain.ErrNotFound):
			return code, nil
		case err != nil:
			return "", err
		}
		s.log.Warn("client code already issued", zap.String("payment_id", code), zap.Int("attempt", attempt))
	}
	return "", feerecorddomain.ErrClientCodeExhausted
}

func (s *Service) Get(ctx context.Context, rawID string) (*feerecorddomain.Response, error) {
	record, err := s.lookup(ctx, rawID)
	if err != nil {
		return nil, err
	}
	return toResponse(record), nil
}

func (s *Service) Delete(ctx context.Context, rawID string) error {
	record, err := s.lookup(ctx, rawID)
	if err != nil {
		return err
	}
	return s.repo.SoftDelete(ctx, s.db, record.ID, s.clock.Now())
}

func (s *Service) CurrentPrice(ctx context.Context) (*feerecorddomain.PriceResponse, error) {
	now := s.clock.Now()
	period := feerecorddomain.PeriodOf(now)

	price, err := s.repo.FindPrice(ctx, s.db, period)
	if err != nil {
		return nil, err
	}
	if price != nil {
		return toPriceResponse(price, false), nil
	}

	previous, err := s.repo.FindLatestPriceBefore(ctx, s.db, period)
	if err != nil {
		return nil, err
	}
	if previous == nil {
		return nil, feerecorddomain.ErrPriceNotFound
	}

	first := civil.Date{Year: now.Year(), Month: now.Month(), Day: 1}
	copied := &feerecorddomain.FeePrice{
		ID:        s.genID.Generate(),
		Period:    period,
		Date:      civildate.ToTime(first),
		Value:     previous.Value,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.UpsertPrice(ctx, s.db, copied); err != nil {
		return nil, err
	}
	s.log.Info("fee price copied forward",
		zap.String("period", period),
		zap.String("from_period", previous.Period),
		zap.String("value", previous.Value.StringFixed(2)),
	)
	return toPriceResponse(copied, true), nil
}

func (s *Service) SetPrice(ctx context.Context, req feerecorddomain.SetPriceRequest) (*feerecorddomain.PriceResponse, error) {
	date, err := civildate.Parse(req.Date)
	if err != nil {
		return nil, feerecorddomain.ErrInvalidDate
	}
	value, err := parseAmount(req.Value)
	if err != nil || !value.IsPositive() {
		return nil, feerecorddomain.ErrInvalidPrice
	}

	now := s.clock.Now()
	at := civildate.ToTime(date)
	price := &feerecorddomain.FeePrice{
		ID:        s.genID.Generate(),
		Period:    feerecorddomain.PeriodOf(at),
		Date:      at,
		Value:     value,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.UpsertPrice(ctx, s.db, price); err != nil {
		return nil, err
	}
	return toPriceResponse(price, false), nil
}

func (s *Service) lookup(ctx context.Context, rawID string) (*feerecorddomain.FeeRecord, error) {
	rawID = strings.TrimSpace(rawID)
	if rawID == "" {
		return nil, feerecorddomain.ErrInvalidID
	}

	var (
		record *feerecorddomain.FeeRecord
		err    error
	)
	if _, parseErr := uuid.Parse(rawID); parseErr == nil {
		record, err = s.repo.FindByUUID(ctx, s.db, rawID)
	} else {
		id, parseErr := snowflake.ParseString(rawID)
		if parseErr != nil || id == 0 {
			return nil, feerecorddomain.ErrInvalidID
		}
		record, err = s.repo.FindByID(ctx, s.db, id)
	}
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, feerecorddomain.ErrNotFound
	}
	return record, nil
}

func (s *Service) buildRecord(req feerecorddomain.CreateRequest) (*feerecorddomain.FeeRecord, error) {
	caseNumber := strings.TrimSpace(req.CaseNumber)
	if caseNumber == "" {
		return nil, feerecorddomain.ErrInvalidCaseNumber
	}

	filing, err := civildate.Parse(req.FilingDate)
	if err != nil {
		return nil, fmt.Errorf("%w: fecha_inicio", feerecorddomain.ErrInvalidDate)
	}
	due, err := civildate.Parse(req.DueDate)
	if err != nil {
		return nil, fmt.Errorf("%w: fecha", feerecorddomain.ErrInvalidDate)
	}

	dueAmount, err := parseAmount(req.DueAmount)
	if err != nil || !dueAmount.IsPositive() {
		return nil, fmt.Errorf("%w: total_depositado", feerecorddomain.ErrInvalidAmount)
	}
	justiceFee, err := parseOptionalAmount(req.JusticeFee)
	if err != nil {
		return nil, fmt.Errorf("%w: tasa_justicia", feerecorddomain.ErrInvalidAmount)
	}
	fixedFee, err := parseOptionalAmount(req.FixedFee)
	if err != nil {
		return nil, fmt.Errorf("%w: derecho_fijo_5pc", feerecorddomain.ErrInvalidAmount)
	}

	email := strings.TrimSpace(req.PayerEmail)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, feerecorddomain.ErrInvalidEmail
	}

	return &feerecorddomain.FeeRecord{
		ID:         s.genID.Generate(),
		UUID:       uuid.NewString(),
		CaseNumber: caseNumber,
		Caption:    strings.TrimSpace(req.Caption),
		Party:      strings.TrimSpace(req.Party),
		Court:      strings.TrimSpace(req.Court),
		Place:      strings.TrimSpace(req.Place),
		FilingDate: civildate.ToTime(filing),
		DueDate:    civildate.ToTime(due),
		JusticeFee: justiceFee,
		FixedFee:   fixedFee,
		DueAmount:  dueAmount,
		PayerEmail: email,
		CreatedAt:  s.clock.Now(),
	}, nil
}

// newClientCode returns the first ten digits found in fresh UUIDs.
func newClientCode() string {
	var b strings.Builder
	for b.Len() < clientCodeLength {
		for _, r := range uuid.NewString() {
			if r >= '0' && r <= '9' {
				b.WriteRune(r)
				if b.Len() == clientCodeLength {
					break
				}
			}
		}
	}
	return b.String()
}

func parseAmount(raw string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(strings.ReplaceAll(raw, ",", ".")))
}

func parseOptionalAmount(raw string) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, nil
	}
	value, err := parseAmount(raw)
	if err != nil || value.IsNegative() {
		return decimal.Zero, feerecorddomain.ErrInvalidAmount
	}
	return value, nil
}

func toResponse(record *feerecorddomain.FeeRecord) *feerecorddomain.Response {
	return &feerecorddomain.Response{
		ID:         record.ID.String(),
		UUID:       record.UUID,
		CaseNumber: record.CaseNumber,
		Caption:    record.Caption,
		Party:      record.Party,
		Court:      record.Court,
		Place:      record.Place,
		FilingDate: civildate.FromTime(record.FilingDate),
		DueDate:    civildate.FromTime(record.DueDate),
		JusticeFee: record.JusticeFee.StringFixed(2),
		FixedFee:   record.FixedFee.StringFixed(2),
		DueAmount:  record.DueAmount.StringFixed(2),
		PayerEmail: record.PayerEmail,
		CreatedAt:  record.CreatedAt,
	}
}

func toPriceResponse(price *feerecorddomain.FeePrice, copied bool) *feerecorddomain.PriceResponse {
	return &feerecorddomain.PriceResponse{
		Period: price.Period,
		Date:   civildate.FromTime(price.Date),
		Value:  price.Value.StringFixed(2),
		Copied: copied,
	}
}
