package domain

import (
	"errors"
	"fmt"
)

// Application errors
var (
	// ErrNotFound запись не найдена
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate дубликат записи
	ErrDuplicate = errors.New("duplicate record")

	// ErrUnauthenticated пользователь не аутентифицирован
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrNoSubscription у клиента нет действующей подписки
	ErrNoSubscription = errors.New("customer has no valid subscription")

	// ErrMultipleSubscriptions у клиента больше одной действующей подписки
	ErrMultipleSubscriptions = errors.New("customer has multiple valid subscriptions")

	// ErrNotReactivatable подписку нельзя реактивировать
	ErrNotReactivatable = errors.New("subscription cannot be reactivated")

	// ErrPaymentFailed платеж отклонен (карта)
	ErrPaymentFailed = errors.New("payment failed")

	// ErrBillingRejected провайдер отклонил запрос (неверный план, токен и т.п.)
	ErrBillingRejected = errors.New("billing provider rejected request")

	// ErrBillingUnavailable провайдер недоступен или вернул внутреннюю ошибку
	ErrBillingUnavailable = errors.New("billing provider unavailable")
)

// BillingErrorKind класс ошибки биллинг-провайдера
type BillingErrorKind int

const (
	BillingErrorUnavailable BillingErrorKind = iota
	BillingErrorRejected
	BillingErrorCard
)

// BillingError представляет ошибку внешнего биллинг-провайдера
type BillingError struct {
	Operation   string
	Kind        BillingErrorKind
	Code        string
	Message     string
	StatusCode  int
	Retryable   bool
	OriginalErr error
}

// Error реализует интерфейс error
func (e *BillingError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("billing %s [%s]: %s: %v", e.Operation, e.Code, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("billing %s [%s]: %s", e.Operation, e.Code, e.Message)
}

// Unwrap возвращает оригинальную ошибку
func (e *BillingError) Unwrap() error {
	return e.OriginalErr
}

// Is сопоставляет ошибку с сентинелами по классу
func (e *BillingError) Is(target error) bool {
	switch target {
	case ErrPaymentFailed:
		return e.Kind == BillingErrorCard
	case ErrBillingRejected:
		return e.Kind == BillingErrorRejected
	case ErrBillingUnavailable:
		return e.Kind == BillingErrorUnavailable
	}
	return false
}

// IsRetryable сообщает, имеет ли смысл повторить операцию
func IsRetryable(err error) bool {
	var be *BillingError
	return errors.As(err, &be) && be.Retryable
}
