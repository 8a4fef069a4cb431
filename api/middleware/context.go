package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/sudhir1041/nursery-orders/pkg/logger"
)

type contextKey string

const ctxOperator contextKey = "operator"

// OperatorHeader names the staff member behind a dashboard request. It is
// recorded on operator edits and scopes idempotency keys.
const OperatorHeader = "X-Operator"

const maxOperatorLength = 64

func OperatorFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxOperator).(string); ok {
		return v
	}
	return ""
}

// WithOperator injects the operator name into the context.
func WithOperator(ctx context.Context, operator string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxOperator, operator)
}

// Operator copies the operator header into the request context and the log
// fields. Requests without the header act as "dashboard".
func Operator(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			operator := strings.TrimSpace(r.Header.Get(OperatorHeader))
			if len(operator) > maxOperatorLength {
				operator = operator[:maxOperatorLength]
			}
			if operator == "" {
				operator = "dashboard"
			}
			ctx := WithOperator(r.Context(), operator)
			if logg != nil {
				ctx = logg.WithField(ctx, "operator", operator)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
