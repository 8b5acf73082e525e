package scheduler

import (
	"context"
	"errors"

	paymentdomain "github.com/smallbiznis/colegio/internal/payment/domain"
	receiptdomain "github.com/smallbiznis/colegio/internal/receipt/domain"
	"go.uber.org/zap"
)

// mercadoPagoMethodPrefix matches every payment method label Mercado Pago
// receipts carry.
const mercadoPagoMethodPrefix = "Mercado Pago"

// RecheckPendingJob asks Mercado Pago for the current state of receipts left
// Pending longer than PendingAge. Receipts idle past PendingWindow are treated
// as abandoned checkouts and left alone. It covers webhooks lost in transit; Bolsa
// receipts are skipped since the marketplace exposes no status lookup.
func (s *Scheduler) RecheckPendingJob(ctx context.Context) error {
	run := jobRunFromContext(ctx)
	now := s.clock.Now()

	receipts, err := s.receiptSvc.ListPending(ctx, receiptdomain.PendingFilter{
		MethodPrefix:  mercadoPagoMethodPrefix,
		UpdatedAfter:  now.Add(-s.cfg.PendingWindow),
		UpdatedBefore: now.Add(-s.cfg.PendingAge),
		Limit:         s.cfg.BatchSize,
	})
	if err != nil {
		return err
	}

	for _, receipt := range receipts {
		if err := ctx.Err(); err != nil {
			return err
		}

		result, err := s.paymentSvc.RecheckPayment(ctx, receipt.PaymentID)
		run.AddProcessed(1)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return err
			}
			s.logJobError(ctx, "pending receipt recheck failed", err,
				zap.String("receipt_id", receipt.ID.String()),
				zap.String("payment_id", receipt.PaymentID),
			)
			continue
		}
		if result.Receipt != nil && result.Outcome == receiptdomain.OutcomeUpdated {
			s.logger(ctx).Info("pending receipt confirmed by recheck",
				zap.String("provider", paymentdomain.ProviderMercadoPago),
				zap.String("receipt_number", result.Receipt.ReceiptNumber),
				zap.String("payment_id", receipt.PaymentID),
			)
		}
	}
	return nil
}
