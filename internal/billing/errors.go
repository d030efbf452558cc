package billing

import (
	"context"
	"errors"
	"net/http"

	"github.com/Dhoini/subscription-service/internal/domain"
	"github.com/Dhoini/subscription-service/pkg/logger"

	"github.com/stripe/stripe-go/v78"
)

// ErrInvalidWebhook подпись или тело вебхука некорректны
var ErrInvalidWebhook = errors.New("invalid webhook payload")

// classifyError превращает ошибку stripe-go в *domain.BillingError
func classifyError(operation string, err error) error {
	if err == nil {
		return nil
	}

	be := &domain.BillingError{
		Operation:   operation,
		Kind:        domain.BillingErrorUnavailable,
		Code:        "unknown",
		Message:     err.Error(),
		OriginalErr: err,
	}

	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		// Сетевые ошибки: повторяем, если запрос не отменен вызывающим
		be.Retryable = !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		return be
	}

	be.Code = string(stripeErr.Code)
	if be.Code == "" {
		be.Code = string(stripeErr.Type)
	}
	be.Message = stripeErr.Msg
	be.StatusCode = stripeErr.HTTPStatusCode

	switch {
	case stripeErr.Type == stripe.ErrorTypeCard:
		be.Kind = domain.BillingErrorCard
	case stripeErr.HTTPStatusCode == http.StatusTooManyRequests:
		be.Retryable = true
	case stripeErr.Type == stripe.ErrorTypeInvalidRequest,
		stripeErr.Type == stripe.ErrorTypeIdempotency:
		be.Kind = domain.BillingErrorRejected
	case stripeErr.HTTPStatusCode >= 500 && stripeErr.HTTPStatusCode != http.StatusNotImplemented:
		be.Retryable = true
	}
	return be
}

// logBillingError логирует детали ошибки провайдера
func logBillingError(log *logger.Logger, err error) {
	var be *domain.BillingError
	if !errors.As(err, &be) {
		log.Errorw("Billing operation failed", "error", err)
		return
	}
	logFn := log.Warnw
	if be.Kind == domain.BillingErrorUnavailable {
		logFn = log.Errorw
	}
	args := []any{
		"operation", be.Operation,
		"code", be.Code,
		"message", be.Message,
		"status_code", be.StatusCode,
		"retryable", be.Retryable,
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		args = append(args, "type", string(stripeErr.Type), "param", stripeErr.Param, "request_id", stripeErr.RequestID)
	}
	logFn("Stripe API error", args...)
}
