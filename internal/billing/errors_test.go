package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/Dhoini/subscription-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		sentinel  error
		retryable bool
		code      string
	}{
		{
			name:     "card declined",
			err:      &stripe.Error{Type: stripe.ErrorTypeCard, Code: stripe.ErrorCodeCardDeclined, HTTPStatusCode: http.StatusPaymentRequired},
			sentinel: domain.ErrPaymentFailed,
			code:     "card_declined",
		},
		{
			name:     "unknown plan",
			err:      &stripe.Error{Type: stripe.ErrorTypeInvalidRequest, Code: stripe.ErrorCodeResourceMissing, HTTPStatusCode: http.StatusBadRequest},
			sentinel: domain.ErrBillingRejected,
			code:     "resource_missing",
		},
		{
			name:      "rate limited",
			err:       &stripe.Error{Type: stripe.ErrorTypeInvalidRequest, HTTPStatusCode: http.StatusTooManyRequests},
			sentinel:  domain.ErrBillingUnavailable,
			retryable: true,
			code:      "invalid_request_error",
		},
		{
			name:      "provider outage",
			err:       &stripe.Error{Type: stripe.ErrorTypeAPI, HTTPStatusCode: http.StatusServiceUnavailable},
			sentinel:  domain.ErrBillingUnavailable,
			retryable: true,
			code:      "api_error",
		},
		{
			name:      "network failure",
			err:       errors.New("connection reset by peer"),
			sentinel:  domain.ErrBillingUnavailable,
			retryable: true,
			code:      "unknown",
		},
		{
			name:     "caller gave up",
			err:      fmt.Errorf("request: %w", context.Canceled),
			sentinel: domain.ErrBillingUnavailable,
			code:     "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyError("subscribe", tt.err)

			var be *domain.BillingError
			require.ErrorAs(t, err, &be)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.Equal(t, tt.retryable, be.Retryable)
			assert.Equal(t, tt.code, be.Code)
			assert.Equal(t, "subscribe", be.Operation)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	assert.NoError(t, classifyError("noop", nil))
}
