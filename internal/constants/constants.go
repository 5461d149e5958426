package constants

import "time"

// Order status
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusCompleted  = "completed"
	OrderStatusFailed     = "failed"
)

// Order payment status
const (
	OrderPaymentUnpaid = "unpaid"
	OrderPaymentPaid   = "paid"
	OrderPaymentFailed = "failed"
)

// Payment record status
const (
	PaymentStatusPending   = "pending"
	PaymentStatusInitiated = "initiated"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

// STK transaction status
const (
	StkStatusInitiated = "initiated"
	StkStatusCompleted = "completed"
	StkStatusFailed    = "failed"
)

// Payment methods
const (
	MethodCash  = "cash"
	MethodMpesa = "mpesa"
)

// M-Pesa result codes
const (
	// MpesaResultSuccess is the Daraja result code for a successful payment.
	MpesaResultSuccess = 0
)

// KenyaCountryCode replaces the national leading zero in payer phone numbers.
const KenyaCountryCode = "254"

// Cache-related constants
const (
	// OrderCacheExpiration is the TTL for cached order status entries.
	OrderCacheExpiration = 10 * time.Minute
	// NullCacheExpiration is the TTL for cached misses (prevents cache penetration).
	NullCacheExpiration = 5 * time.Minute
	// CacheRandomMaxSeconds is the max random TTL jitter in seconds (prevents cache avalanche).
	CacheRandomMaxSeconds = 60
)

// Reconciliation sweep constants
const (
	// SweepLockKey is the distributed lock guarding the STK reconciliation sweep.
	SweepLockKey = "mpesa:stk_sweep_lock"
	// SweepLockExpiration is how long one sweep run may hold the lock.
	SweepLockExpiration = 10 * time.Minute
	// SweepLockRetries limits lock acquisition to a single attempt; a busy
	// lock means another instance is already sweeping.
	SweepLockRetries = 1
	// DefaultSweepStaleAfter is how long an STK transaction may stay
	// initiated before the sweep asks the provider about it.
	DefaultSweepStaleAfter = 15 * time.Minute
	// SweepBatchSize caps the number of stuck transactions per sweep run.
	SweepBatchSize = 100
)
