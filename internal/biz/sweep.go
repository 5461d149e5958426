package biz

import (
	"context"
	"time"

	"github.com/meikanc/mpesa-backend/internal/conf"
	"github.com/meikanc/mpesa-backend/internal/constants"

	"github.com/go-redsync/redsync/v4"
)

// SweepStuckTransactions asks the provider about STK transactions that have
// stayed initiated past the staleness threshold and feeds conclusive answers
// through Reconcile. The serving path never retries on its own; this sweep is
// the scheduled follow-up for orders whose push or callback got lost. A
// distributed lock keeps concurrent cron instances from double-sweeping.
func (uc *CheckoutUsecase) SweepStuckTransactions(ctx context.Context) (int, error) {
	mutex := uc.rs.NewMutex(
		constants.SweepLockKey,
		redsync.WithExpiry(constants.SweepLockExpiration),
		redsync.WithTries(constants.SweepLockRetries),
	)
	if err := mutex.LockContext(ctx); err != nil {
		uc.log.Infof("Sweep skipped: lock busy or unavailable: %v", err)
		return 0, nil
	}
	defer func() {
		if _, err := mutex.UnlockContext(ctx); err != nil {
			uc.log.Warnf("Failed to release sweep lock: %v", err)
		}
	}()

	staleAfter := constants.DefaultSweepStaleAfter
	if uc.config != nil && uc.config.Cron != nil {
		staleAfter = conf.Duration(uc.config.Cron.SweepStaleAfter, staleAfter)
	}
	cutoff := time.Now().UTC().Add(-staleAfter)

	stuck, err := uc.stkRepo.ListStuckInitiated(ctx, cutoff, constants.SweepBatchSize)
	if err != nil {
		uc.log.Errorf("Failed to list stuck transactions: %v", err)
		return 0, err
	}
	if len(stuck) == 0 {
		return 0, nil
	}
	uc.log.Infof("Sweeping %d stuck STK transactions older than %s", len(stuck), staleAfter)

	token, err := uc.gateway.Authenticate(ctx)
	if err != nil {
		uc.log.Errorf("Sweep auth failed: %v", err)
		return 0, err
	}

	reconciled := 0
	for _, stk := range stuck {
		result, err := uc.gateway.QueryStatus(ctx, token, stk.CheckoutRequestID)
		if err != nil {
			uc.log.Warnf("Status query failed for %s: %v", stk.CheckoutRequestID, err)
			continue
		}
		if result.Pending {
			continue
		}

		// The query response carries no amount, so reconcile against the
		// recorded one; the mismatch check stays meaningful for callbacks.
		cb := &CallbackResult{
			CheckoutRequestID: stk.CheckoutRequestID,
			ResultCode:        result.ResultCode,
			ResultDesc:        result.ResultDesc,
			Amount:            stk.Amount.String(),
		}
		if err := uc.Reconcile(ctx, cb); err != nil {
			uc.log.Warnf("Sweep reconcile failed for %s: %v", stk.CheckoutRequestID, err)
			continue
		}
		reconciled++
	}

	uc.log.Infof("Sweep finished: %d of %d transactions reconciled", reconciled, len(stuck))
	return reconciled, nil
}
