package errors

import (
	"fmt"

	kerrors "github.com/go-kratos/kratos/v2/errors"
)

// Error reasons used across the service. The HTTP error encoder maps the
// embedded code to the response status; the callback endpoint never surfaces
// these to the provider.
const (
	ReasonValidationFailed  = "VALIDATION_FAILED"
	ReasonOrderNotFound     = "ORDER_NOT_FOUND"
	ReasonPersistenceFailed = "PERSISTENCE_FAILED"
	ReasonAuthFailed        = "GATEWAY_AUTH_FAILED"
	ReasonGatewayFailed     = "GATEWAY_PUSH_FAILED"
	ReasonCallbackNotFound  = "CALLBACK_NOT_FOUND"
	ReasonAmountMismatch    = "AMOUNT_MISMATCH"
)

// Validation reports malformed or missing input. No state is mutated.
func Validation(format string, args ...interface{}) *kerrors.Error {
	return kerrors.New(400, ReasonValidationFailed, fmt.Sprintf(format, args...))
}

// OrderNotFound reports a lookup for an order that does not exist.
func OrderNotFound(orderID uint64) *kerrors.Error {
	return kerrors.New(404, ReasonOrderNotFound, fmt.Sprintf("order %d not found", orderID))
}

// Persistence reports a failed atomic write; the transaction has been rolled
// back in full before this error is returned.
func Persistence(err error) *kerrors.Error {
	return kerrors.New(500, ReasonPersistenceFailed, "failed to persist order data").WithCause(err)
}

// GatewayAuth reports a failed token exchange with the payment provider.
func GatewayAuth(err error) *kerrors.Error {
	return kerrors.New(500, ReasonAuthFailed, "failed to authenticate with payment gateway").WithCause(err)
}

// Gateway reports a failed provider call, keeping the provider's raw response
// in the message for operators.
func Gateway(body string, err error) *kerrors.Error {
	return kerrors.New(502, ReasonGatewayFailed, fmt.Sprintf("payment gateway request failed: %s", body)).WithCause(err)
}

// CallbackNotFound reports a callback whose correlation token matches no
// pending transaction (stale or forged callback).
func CallbackNotFound(checkoutRequestID string) *kerrors.Error {
	return kerrors.New(404, ReasonCallbackNotFound, fmt.Sprintf("no pending transaction for checkout request %s", checkoutRequestID))
}

// AmountMismatch reports a callback whose amount differs from the recorded
// pending amount. The order is left untouched for investigation.
func AmountMismatch(wantCents, gotCents int64) *kerrors.Error {
	return kerrors.New(409, ReasonAmountMismatch, fmt.Sprintf("callback amount %d does not match recorded amount %d", gotCents, wantCents))
}

// IsValidation reports whether err carries ReasonValidationFailed.
func IsValidation(err error) bool {
	return kerrors.Reason(err) == ReasonValidationFailed
}

// IsOrderNotFound reports whether err carries ReasonOrderNotFound.
func IsOrderNotFound(err error) bool {
	return kerrors.Reason(err) == ReasonOrderNotFound
}

// IsCallbackNotFound reports whether err carries ReasonCallbackNotFound.
func IsCallbackNotFound(err error) bool {
	return kerrors.Reason(err) == ReasonCallbackNotFound
}

// IsAmountMismatch reports whether err carries ReasonAmountMismatch.
func IsAmountMismatch(err error) bool {
	return kerrors.Reason(err) == ReasonAmountMismatch
}
