package webhook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/colegio/internal/config"
	feerecorddomain "github.com/smallbiznis/colegio/internal/feerecord/domain"
	"github.com/smallbiznis/colegio/internal/observability/metrics"
	"github.com/smallbiznis/colegio/internal/payment/adapters"
	"github.com/smallbiznis/colegio/internal/payment/adapters/mercadopago"
	paymentdomain "github.com/smallbiznis/colegio/internal/payment/domain"
	"github.com/smallbiznis/colegio/internal/providers/alert"
	"github.com/smallbiznis/colegio/internal/ratelimit"
	receiptdomain "github.com/smallbiznis/colegio/internal/receipt/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const pollLockKey = "colegio:payment:poll:%s"

// Webhook results reported to metrics.
const (
	resultReconciled = "reconciled"
	resultIgnored    = "ignored"
	resultRejected   = "rejected"
	resultFailed     = "failed"
	resultRechecked  = "rechecked"
)

// PollLocker serializes preference polls across instances.
type PollLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	Config        config.Config
	Adapters      *adapters.Registry
	Verifier      paymentdomain.Verifier
	StatusClient  paymentdomain.StatusClient
	MercadoPago   *mercadopago.Adapter
	ReceiptSvc    receiptdomain.Service
	FeeRecordRepo feerecorddomain.Repository
	Locker        *ratelimit.Locker `optional:"true"`
	Alert         alert.Provider    `optional:"true"`
	Metrics       *metrics.Metrics  `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	adapters      *adapters.Registry
	verifier      paymentdomain.Verifier
	statusClient  paymentdomain.StatusClient
	mercadoPago   *mercadopago.Adapter
	receiptSvc    receiptdomain.Service
	feeRecordRepo feerecorddomain.Repository
	locker        PollLocker
	lockTTL       time.Duration
	alert         alert.Provider
	metrics       *metrics.Metrics
}

func NewService(p Params) paymentdomain.Service {
	s := &Service{
		db:            p.DB,
		log:           p.Log.Named("payment.webhook"),
		adapters:      p.Adapters,
		verifier:      p.Verifier,
		statusClient:  p.StatusClient,
		mercadoPago:   p.MercadoPago,
		receiptSvc:    p.ReceiptSvc,
		feeRecordRepo: p.FeeRecordRepo,
		lockTTL:       p.Config.RateLimit.PollLockTTL,
		alert:         p.Alert,
		metrics:       p.Metrics,
	}
	if p.Locker != nil {
		s.locker = p.Locker
	}
	return s
}

// SetLocker replaces the preference poll lock.
func (s *Service) SetLocker(l PollLocker) {
	s.locker = l
}

func (s *Service) HandleWebhook(ctx context.Context, provider string, in paymentdomain.Inbound) (*paymentdomain.WebhookResult, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	adapter, err := s.adapters.Adapter(provider)
	if err != nil {
		return nil, err
	}

	result, err := s.handle(ctx, provider, adapter, in)
	switch {
	case err == nil && result.Ignored:
		s.metrics.RecordWebhook(ctx, provider, resultIgnored)
	case err == nil:
		s.metrics.RecordWebhook(ctx, provider, resultReconciled)
	case isRejection(err):
		s.metrics.RecordWebhook(ctx, provider, resultRejected)
	default:
		s.metrics.RecordWebhook(ctx, provider, resultFailed)
	}
	return result, err
}

func (s *Service) handle(ctx context.Context, provider string, adapter paymentdomain.Adapter, in paymentdomain.Inbound) (*paymentdomain.WebhookResult, error) {
	if provider == paymentdomain.ProviderBolsa {
		if s.verifier == nil {
			return nil, paymentdomain.ErrUnauthorized
		}
		if err := s.verifier.Verify(ctx, in); err != nil {
			return nil, err
		}
	}

	note, err := adapter.Normalize(ctx, in)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrEventIgnored) {
			return &paymentdomain.WebhookResult{Provider: provider, Ignored: true}, nil
		}
		if errors.Is(err, paymentdomain.ErrProviderUnavailable) {
			s.log.Error("payment status lookup failed", zap.String("provider", provider), zap.Error(err))
			alert.Raise(s.alert, s.log, fmt.Sprintf(
				"Payment confirmation unavailable\nprovider: %s\nerror: %s", provider, err,
			))
		}
		return nil, err
	}

	switch provider {
	case paymentdomain.ProviderBolsa:
		return s.reconcileBolsa(ctx, note)
	default:
		return s.reconcileByReference(ctx, note)
	}
}

// reconcileBolsa confirms a receipt opened at checkout. The client code was
// issued by us, so an unknown one is never a new payment.
func (s *Service) reconcileBolsa(ctx context.Context, note *paymentdomain.PaymentNotification) (*paymentdomain.WebhookResult, error) {
	log := s.log.With(zap.String("provider", note.Provider), zap.String("cod_cliente", note.PaymentID))

	receipt, err := s.receiptSvc.FindByPaymentID(ctx, note.PaymentID)
	if err != nil {
		if errors.Is(err, receiptdomain.ErrNotFound) {
			log.Warn("bolsa notification for unknown client code")
			return nil, paymentdomain.ErrUnknownClientCode
		}
		return nil, err
	}
	if receipt.Paid() && note.Target != receiptdomain.StatusPaid {
		log.Info("bolsa notification for settled receipt", zap.String("estado", note.RawStatus))
		return resultOf(note.Provider, &receiptdomain.Result{Outcome: receiptdomain.OutcomeIgnored, Receipt: receipt}), nil
	}
	if note.Target != receiptdomain.StatusPaid {
		log.Info("bolsa notification not paid", zap.String("estado", note.RawStatus))
		return nil, paymentdomain.ErrStatusNotPaid
	}

	applied, err := s.receiptSvc.Apply(ctx, receiptdomain.ApplyInput{
		FeeRecordID:   receipt.FeeRecordID,
		PaymentID:     note.PaymentID,
		Target:        receiptdomain.StatusPaid,
		PaymentMethod: receipt.PaymentMethod,
		Provider:      note.Provider,
	})
	if err != nil {
		return nil, err
	}
	log.Info("bolsa notification reconciled", zap.String("outcome", string(applied.Outcome)))
	return resultOf(note.Provider, applied), nil
}

// reconcileByReference resolves the fee record from the external reference
// the checkout was created with.
func (s *Service) reconcileByReference(ctx context.Context, note *paymentdomain.PaymentNotification) (*paymentdomain.WebhookResult, error) {
	log := s.log.With(
		zap.String("provider", note.Provider),
		zap.String("payment_id", note.PaymentID),
		zap.String("external_reference", note.Reference),
		zap.String("status", note.RawStatus),
	)

	if note.Target == "" {
		log.Info("payment status carries no receipt change")
		return &paymentdomain.WebhookResult{Provider: note.Provider, Ignored: true}, nil
	}
	if note.Reference == "" {
		return nil, paymentdomain.ErrUnknownReference
	}

	record, err := s.feeRecordRepo.FindByUUID(ctx, s.db, note.Reference)
	if err != nil {
		return nil, err
	}
	if record == nil {
		log.Warn("payment for unknown external reference")
		return nil, paymentdomain.ErrUnknownReference
	}

	applied, err := s.receiptSvc.Apply(ctx, receiptdomain.ApplyInput{
		FeeRecordID:   record.ID,
		PaymentID:     note.PaymentID,
		Target:        note.Target,
		PaymentMethod: note.PaymentMethod,
		Provider:      note.Provider,
	})
	if err != nil {
		return nil, err
	}
	log.Info("payment reconciled", zap.String("outcome", string(applied.Outcome)))
	return resultOf(note.Provider, applied), nil
}

func resultOf(provider string, applied *receiptdomain.Result) *paymentdomain.WebhookResult {
	return &paymentdomain.WebhookResult{
		Provider: provider,
		Ignored:  applied.Outcome == receiptdomain.OutcomeIgnored,
		Outcome:  applied.Outcome,
		Receipt:  applied.Receipt,
	}
}

func (s *Service) PollPreference(ctx context.Context, preferenceID string) (*paymentdomain.PollResult, error) {
	preferenceID = strings.TrimSpace(preferenceID)
	if preferenceID == "" {
		return nil, paymentdomain.ErrMissingPaymentID
	}

	if s.locker != nil {
		key := fmt.Sprintf(pollLockKey, preferenceID)
		token, ok, err := s.locker.TryLock(ctx, key, s.lockTTL)
		switch {
		case err != nil:
			s.log.Warn("preference poll lock unavailable", zap.String("preference_id", preferenceID), zap.Error(err))
		case !ok:
			return nil, paymentdomain.ErrPollInProgress
		default:
			defer func() {
				if err := s.locker.Release(context.Background(), key, token); err != nil {
					s.log.Warn("release preference poll lock", zap.String("preference_id", preferenceID), zap.Error(err))
				}
			}()
		}
	}

	preference, err := s.statusClient.GetPreference(ctx, preferenceID)
	if err != nil {
		return nil, err
	}
	result := &paymentdomain.PollResult{Status: "pending", ExternalReference: preference.ExternalReference}
	if strings.TrimSpace(preference.ExternalReference) == "" {
		return result, nil
	}

	payments, err := s.statusClient.SearchPayments(ctx, preference.ExternalReference)
	if err != nil {
		return nil, err
	}
	if len(payments) == 0 {
		return result, nil
	}

	note := s.mercadoPago.FromPayment(&payments[0])
	result.Status = note.RawStatus
	result.PaymentID = note.PaymentID

	reconciled, err := s.reconcileByReference(ctx, note)
	switch {
	case errors.Is(err, paymentdomain.ErrUnknownReference):
		return result, nil
	case err != nil:
		return nil, err
	}
	if reconciled.Receipt != nil {
		result.ReceiptStatus = string(reconciled.Receipt.Status)
		result.ReceiptNumber = reconciled.Receipt.ReceiptNumber
	}
	return result, nil
}

func (s *Service) RecheckPayment(ctx context.Context, paymentID string) (*paymentdomain.WebhookResult, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, paymentdomain.ErrMissingPaymentID
	}

	payment, err := s.statusClient.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	result, err := s.reconcileByReference(ctx, s.mercadoPago.FromPayment(payment))
	if err != nil {
		return nil, err
	}
	if !result.Ignored {
		s.metrics.RecordWebhook(ctx, paymentdomain.ProviderMercadoPago, resultRechecked)
	}
	return result, nil
}

func isRejection(err error) bool {
	return errors.Is(err, paymentdomain.ErrUnauthorized) ||
		errors.Is(err, paymentdomain.ErrForbidden) ||
		errors.Is(err, paymentdomain.ErrPayloadTooLarge) ||
		errors.Is(err, paymentdomain.ErrUnsupportedMediaType)
}
