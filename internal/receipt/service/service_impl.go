package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/smallbiznis/colegio/internal/clock"
	feerecorddomain "github.com/smallbiznis/colegio/internal/feerecord/domain"
	obslogger "github.com/smallbiznis/colegio/internal/observability/logger"
	"github.com/smallbiznis/colegio/internal/observability/metrics"
	outboxdomain "github.com/smallbiznis/colegio/internal/outbox/domain"
	"github.com/smallbiznis/colegio/internal/providers/alert"
	receiptdomain "github.com/smallbiznis/colegio/internal/receipt/domain"
	"github.com/smallbiznis/colegio/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// maxApplyAttempts bounds the transactional attempts of one Apply call.
const maxApplyAttempts = 2

// errReceiptVanished means the insert lost to a concurrent writer whose row
// is not visible yet. Another attempt resolves it.
var errReceiptVanished = errors.New("receipt_vanished")

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Repo          receiptdomain.Repository
	FeeRecordRepo feerecorddomain.Repository
	OutboxRepo    outboxdomain.Repository
	Waker         outboxdomain.Waker `optional:"true"`
	Alert         alert.Provider     `optional:"true"`
	Metrics       *metrics.Metrics   `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	repo          receiptdomain.Repository
	feeRecordRepo feerecorddomain.Repository
	outboxRepo    outboxdomain.Repository
	waker         outboxdomain.Waker
	alert         alert.Provider
	metrics       *metrics.Metrics
}

func New(p Params) receiptdomain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("receipt.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		repo:          p.Repo,
		feeRecordRepo: p.FeeRecordRepo,
		outboxRepo:    p.OutboxRepo,
		waker:         p.Waker,
		alert:         p.Alert,
		metrics:       p.Metrics,
	}
}

func (s *Service) Apply(ctx context.Context, input receiptdomain.ApplyInput) (*receiptdomain.Result, error) {
	input.PaymentID = strings.TrimSpace(input.PaymentID)
	if input.FeeRecordID == 0 {
		return nil, receiptdomain.ErrInvalidFeeRecord
	}
	if input.PaymentID == "" {
		return nil, receiptdomain.ErrInvalidPaymentID
	}
	if input.Target != receiptdomain.StatusPending && input.Target != receiptdomain.StatusPaid {
		return nil, receiptdomain.ErrInvalidStatus
	}

	log := obslogger.WithPayment(obslogger.WithContext(ctx, s.log), input.Provider, input.FeeRecordID.String(), input.PaymentID)

	var (
		result *receiptdomain.Result
		err    error
	)
	for attempt := 1; attempt <= maxApplyAttempts; attempt++ {
		result, err = s.applyOnce(ctx, log, input)
		if err == nil || !retryable(err) {
			break
		}
		log.Warn("reconciliation attempt failed", zap.Int("attempt", attempt), zap.Error(err))
	}

	if err != nil {
		if retryable(err) {
			s.metrics.RecordReceiptTransition(ctx, "conflict")
			log.Error("reconciliation conflict", zap.String("target", string(input.Target)), zap.Error(err))
			alert.Raise(s.alert, s.log, fmt.Sprintf(
				"Reconciliation conflict\nfee_record_id: %s\npayment_id: %s\nprovider: %s",
				input.FeeRecordID, input.PaymentID, input.Provider,
			))
			return nil, fmt.Errorf("%w: %v", receiptdomain.ErrReconciliationConflict, err)
		}
		log.Warn("reconciliation rejected", zap.Error(err))
		return nil, err
	}

	s.metrics.RecordReceiptTransition(ctx, string(result.Outcome))
	log.Info("reconciliation applied",
		zap.String("outcome", string(result.Outcome)),
		zap.String("status", string(result.Receipt.Status)),
		zap.String("receipt_number", result.Receipt.ReceiptNumber),
	)

	if result.SecondPayment {
		s.reportSecondPayment(log, result.Receipt, input)
	}
	if result.BecamePaid && s.waker != nil {
		s.waker.Wake()
	}
	return result, nil
}

// reportSecondPayment flags money collected twice for one fee record. The
// receipt keeps its first confirmation; a refund is a manual decision.
func (s *Service) reportSecondPayment(log *zap.Logger, receipt *receiptdomain.Receipt, input receiptdomain.ApplyInput) {
	log.Warn("second payment reported for paid receipt",
		zap.String("receipt_number", receipt.ReceiptNumber),
		zap.String("confirmed_payment_id", receipt.ConfirmationID()),
		zap.String("confirmed_by", receipt.ConfirmedBy),
	)
	alert.Raise(s.alert, s.log, fmt.Sprintf(
		"Second payment for a paid receipt\nreceipt: %s\nfee_record_id: %s\npayment_id: %s\nprovider: %s\nconfirmed_payment_id: %s\nconfirmed_by: %s",
		receipt.ReceiptNumber, input.FeeRecordID, input.PaymentID, input.Provider,
		receipt.ConfirmationID(), receipt.ConfirmedBy,
	))
}

func (s *Service) applyOnce(ctx context.Context, log *zap.Logger, input receiptdomain.ApplyInput) (*receiptdomain.Result, error) {
	var result *receiptdomain.Result

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()

		existing, err := s.repo.FindByFeeRecordID(ctx, tx, input.FeeRecordID)
		if err != nil {
			return err
		}

		if existing == nil {
			feeRecord, err := s.feeRecordRepo.FindByID(ctx, tx, input.FeeRecordID)
			if err != nil {
				return err
			}
			if feeRecord == nil {
				return receiptdomain.ErrFeeRecordNotFound
			}

			receipt := s.newReceipt(feeRecord, input, now)
			inserted, err := s.repo.InsertIfAbsent(ctx, tx, receipt)
			if err != nil {
				return err
			}
			if inserted {
				result = &receiptdomain.Result{
					Outcome:    receiptdomain.OutcomeCreated,
					Receipt:    receipt,
					BecamePaid: receipt.Paid(),
				}
				if receipt.Paid() {
					return s.enqueuePaid(ctx, tx, receipt, input.Provider, now)
				}
				return nil
			}

			// Lost the insert race: continue on the winner's row.
			existing, err = s.repo.FindByFeeRecordID(ctx, tx, input.FeeRecordID)
			if err != nil {
				return err
			}
			if existing == nil {
				return errReceiptVanished
			}
		}

		result, err = s.advance(ctx, tx, log, existing, input, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// advance applies the forward transition on an existing receipt. Anything
// that is not Pending -> Paid leaves the row untouched.
func (s *Service) advance(ctx context.Context, tx *gorm.DB, log *zap.Logger, receipt *receiptdomain.Receipt, input receiptdomain.ApplyInput, now time.Time) (*receiptdomain.Result, error) {
	ignored := &receiptdomain.Result{Outcome: receiptdomain.OutcomeIgnored, Receipt: receipt}

	if receipt.Status == input.Target {
		if receipt.Paid() && input.PaymentID != receipt.ConfirmationID() {
			ignored.SecondPayment = true
		}
		return ignored, nil
	}
	if !receipt.Status.CanTransition(input.Target) {
		log.Info("backward transition ignored",
			zap.String("status", string(receipt.Status)),
			zap.String("target", string(input.Target)),
		)
		return ignored, nil
	}

	updated, err := s.repo.MarkPaid(ctx, tx, receipt.ID, receiptdomain.Confirmation{
		PaymentID: input.PaymentID,
		Provider:  input.Provider,
		PaidAt:    now,
	})
	if err != nil {
		return nil, err
	}
	if !updated {
		current, err := s.repo.FindByFeeRecordID(ctx, tx, input.FeeRecordID)
		if err != nil {
			return nil, err
		}
		if current != nil {
			ignored.Receipt = current
			ignored.SecondPayment = current.Paid() && input.PaymentID != current.ConfirmationID()
		}
		return ignored, nil
	}

	if receipt.PaymentID != input.PaymentID {
		log.Info("receipt confirmed by another payment", zap.String("opened_with", receipt.PaymentID))
	}
	receipt.Status = receiptdomain.StatusPaid
	receipt.ConfirmedPaymentID = input.PaymentID
	receipt.ConfirmedBy = input.Provider
	receipt.PaidAt = &now
	receipt.UpdatedAt = now

	if err := s.enqueuePaid(ctx, tx, receipt, input.Provider, now); err != nil {
		return nil, err
	}
	return &receiptdomain.Result{
		Outcome:    receiptdomain.OutcomeUpdated,
		Receipt:    receipt,
		BecamePaid: true,
	}, nil
}

func (s *Service) enqueuePaid(ctx context.Context, tx *gorm.DB, receipt *receiptdomain.Receipt, provider string, now time.Time) error {
	payload, err := json.Marshal(receiptdomain.PaidEvent{
		ReceiptID:   receipt.ID.String(),
		FeeRecordID: receipt.FeeRecordID.String(),
		PaymentID:   receipt.ConfirmationID(),
		Provider:    provider,
	})
	if err != nil {
		return fmt.Errorf("marshal paid event: %w", err)
	}

	_, err = s.outboxRepo.Enqueue(ctx, tx, &outboxdomain.Message{
		ID:            s.genID.Generate(),
		Kind:          receiptdomain.EventReceiptPaid,
		DedupKey:      receiptdomain.EventReceiptPaid + ":" + receipt.ID.String(),
		Payload:       datatypes.JSON(payload),
		Status:        outboxdomain.StatusPending,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return fmt.Errorf("enqueue paid event: %w", err)
	}
	return nil
}

func (s *Service) newReceipt(feeRecord *feerecorddomain.FeeRecord, input receiptdomain.ApplyInput, now time.Time) *receiptdomain.Receipt {
	receipt := &receiptdomain.Receipt{
		ID:            s.genID.Generate(),
		ReceiptNumber: newReceiptNumber(),
		FeeRecordID:   feeRecord.ID,
		PaymentID:     input.PaymentID,
		Status:        input.Target,
		PaymentMethod: strings.TrimSpace(input.PaymentMethod),
		CaseNumber:    feeRecord.CaseNumber,
		Caption:       feeRecord.Caption,
		Court:         feeRecord.Court,
		FilingDate:    feeRecord.FilingDate,
		DueDate:       feeRecord.DueDate,
		DueAmount:     feeRecord.DueAmount,
		JusticeFee:    feeRecord.JusticeFee,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if receipt.Paid() {
		receipt.PaidAt = &now
		receipt.ConfirmedPaymentID = input.PaymentID
		receipt.ConfirmedBy = input.Provider
	}
	return receipt
}

func (s *Service) FindByPaymentID(ctx context.Context, paymentID string) (*receiptdomain.Receipt, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, receiptdomain.ErrInvalidPaymentID
	}
	receipt, err := s.repo.FindByPaymentID(ctx, s.db, paymentID)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, receiptdomain.ErrNotFound
	}
	return receipt, nil
}

func (s *Service) FindByFeeRecordID(ctx context.Context, feeRecordID snowflake.ID) (*receiptdomain.Receipt, error) {
	if feeRecordID == 0 {
		return nil, receiptdomain.ErrInvalidFeeRecord
	}
	receipt, err := s.repo.FindByFeeRecordID(ctx, s.db, feeRecordID)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, receiptdomain.ErrNotFound
	}
	return receipt, nil
}

func (s *Service) ListPending(ctx context.Context, filter receiptdomain.PendingFilter) ([]receiptdomain.Receipt, error) {
	return s.repo.ListPending(ctx, s.db, filter)
}

func newReceiptNumber() string {
	return "REC-" + uuid.NewString()[:8]
}

func retryable(err error) bool {
	return errors.Is(err, errReceiptVanished) || db.IsRetryableErr(err) || db.IsDuplicateKeyErr(err)
}
