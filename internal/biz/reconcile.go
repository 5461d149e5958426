package biz

import (
	"context"

	"github.com/meikanc/mpesa-backend/internal/constants"
	"github.com/meikanc/mpesa-backend/internal/errors"
)

// CallbackResult is the flattened content of a Daraja STK callback.
type CallbackResult struct {
	CheckoutRequestID string
	ResultCode        int
	ResultDesc        string
	Amount            string // raw decimal from callback metadata
	MpesaReceipt      string
	TransactionDate   string
	PhoneNumber       string
}

// Reconcile applies one provider callback against its pending transaction
// exactly once. The row is read under an exclusive lock for the duration of
// the unit of work, so concurrent callbacks for the same token serialize: the
// second one re-reads terminal state and becomes a no-op. On success the
// transaction, order and payment move to completed/paid together; on a
// provider-reported failure all three move to failed together. An amount
// mismatch aborts before any mutation.
func (uc *CheckoutUsecase) Reconcile(ctx context.Context, cb *CallbackResult) error {
	if cb.CheckoutRequestID == "" {
		return errors.Validation("callback is missing CheckoutRequestID")
	}

	var orderID uint64
	err := uc.tm.Exec(ctx, func(ctx context.Context) error {
		stk, err := uc.stkRepo.GetByCheckoutRequestIDForUpdate(ctx, cb.CheckoutRequestID)
		if err != nil {
			return err
		}
		if stk == nil {
			return errors.CallbackNotFound(cb.CheckoutRequestID)
		}
		orderID = stk.OrderID

		if stk.Status != constants.StkStatusInitiated {
			// Terminal already: a duplicate or delayed callback. Keep the
			// recorded outcome and let the caller acknowledge as usual.
			uc.log.Infof("Callback for %s ignored, transaction already %s", cb.CheckoutRequestID, stk.Status)
			return nil
		}

		if cb.ResultCode == constants.MpesaResultSuccess {
			amount, err := ParseAmount(cb.Amount)
			if err != nil {
				return errors.Validation("callback for %s has a missing or malformed amount", cb.CheckoutRequestID)
			}
			if amount != stk.Amount {
				return errors.AmountMismatch(int64(stk.Amount), int64(amount))
			}

			if err := uc.stkRepo.UpdateResult(ctx, stk.ID, constants.StkStatusCompleted, cb.MpesaReceipt, cb.TransactionDate, cb.ResultDesc); err != nil {
				return err
			}
			if err := uc.orders.UpdateOrderStatus(ctx, stk.OrderID, constants.OrderStatusCompleted, constants.OrderPaymentPaid); err != nil {
				return err
			}
			return uc.payments.UpdatePaymentResult(ctx, stk.OrderID, constants.PaymentStatusCompleted, cb.MpesaReceipt, "")
		}

		reason := cb.ResultDesc
		if reason == "" {
			reason = "payment failed"
		}
		if err := uc.stkRepo.UpdateResult(ctx, stk.ID, constants.StkStatusFailed, "", "", reason); err != nil {
			return err
		}
		if err := uc.orders.UpdateOrderStatus(ctx, stk.OrderID, constants.OrderStatusFailed, constants.OrderPaymentFailed); err != nil {
			return err
		}
		return uc.payments.UpdatePaymentResult(ctx, stk.OrderID, constants.PaymentStatusFailed, "", reason)
	})
	if err != nil {
		if errors.IsCallbackNotFound(err) || errors.IsAmountMismatch(err) || errors.IsValidation(err) {
			return err
		}
		uc.log.Errorf("Failed to reconcile callback %s: %v", cb.CheckoutRequestID, err)
		return errors.Persistence(err)
	}

	// The committed outcome supersedes whatever the cache held.
	if err := uc.cache.Invalidate(ctx, orderID); err != nil {
		uc.log.Warnf("Failed to invalidate status cache for order %d: %v", orderID, err)
	}

	uc.log.Infof("Reconciled callback %s: order=%d, code=%d", cb.CheckoutRequestID, orderID, cb.ResultCode)
	return nil
}
