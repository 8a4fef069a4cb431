package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/sudhir1041/nursery-orders/api/responses"
	pkgerrors "github.com/sudhir1041/nursery-orders/pkg/errors"
	"github.com/sudhir1041/nursery-orders/pkg/logger"
	pkgredis "github.com/sudhir1041/nursery-orders/pkg/redis"
)

const (
	idempotencyHeader      = "Idempotency-Key"
	idempotentReplayHeader = "Idempotent-Replay"
	defaultIdempotencyTTL  = 24 * time.Hour
	// claimTTL bounds how long a crashed request can block its key.
	claimTTL          = 2 * time.Minute
	maxIdempotentBody = 1 << 20
)

// ReplayStore is the redis surface behind Idempotency.
type ReplayStore interface {
	pkgredis.IdempotencyStore
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

type keyRule struct {
	method   string
	path     string
	prefix   bool
	required bool
}

func (k keyRule) matches(method, path string) bool {
	if k.method != method {
		return false
	}
	if k.prefix {
		return strings.HasPrefix(path, k.path)
	}
	return path == k.path
}

// keyRules lists the dashboard writes that honour Idempotency-Key. Manual
// ingest and invoice creation must carry one.
var keyRules = []keyRule{
	{method: http.MethodPost, path: "/api/v1/orders/manual", required: true},
	{method: http.MethodPost, path: "/api/v1/invoices", required: true},
	{method: http.MethodPatch, path: "/api/v1/orders/", prefix: true},
}

func ruleFor(method, path string) (keyRule, bool) {
	for _, rule := range keyRules {
		if rule.matches(method, path) {
			return rule, true
		}
	}
	return keyRule{}, false
}

const (
	statePending = "pending"
	stateDone    = "done"
)

// replayRecord is what lives under an idempotency key: a pending claim while
// the first request runs, then its 2xx response.
type replayRecord struct {
	State       string `json:"state"`
	RequestHash string `json:"request_hash"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

func (r replayRecord) encode() string {
	raw, _ := json.Marshal(r)
	return string(raw)
}

// Idempotency replays the stored response for a repeated Idempotency-Key on
// the dashboard write routes. Keys are scoped by operator, method and path.
// Only 2xx responses are kept so a failed request can be retried under the
// same key; a second request arriving while the first is still running gets
// a conflict.
func Idempotency(store ReplayStore, ttl time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			rule, ok := ruleFor(r.Method, r.URL.Path)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if clientKey == "" {
				if rule.required {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, idempotencyHeader+" header required"))
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxIdempotentBody))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			hash := bodyHash(body)
			key := store.IdempotencyKey(scopeOf(r), clientKey)

			claimed, err := store.SetNX(ctx, key, replayRecord{State: statePending, RequestHash: hash}.encode(), claimTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if !claimed {
				replayExisting(ctx, logg, w, store, key, hash)
				return
			}

			stored := false
			defer func() {
				if !stored {
					if delErr := store.Del(context.WithoutCancel(ctx), key); delErr != nil && logg != nil {
						logg.Error(ctx, "release idempotency claim", delErr)
					}
				}
			}()

			var captured bytes.Buffer
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&captured)
			next.ServeHTTP(ww, r)

			status := statusOf(ww)
			if status < http.StatusOK || status >= http.StatusMultipleChoices {
				return
			}
			done := replayRecord{
				State:       stateDone,
				RequestHash: hash,
				Status:      status,
				ContentType: ww.Header().Get("Content-Type"),
				Body:        captured.Bytes(),
			}
			if err := store.Set(context.WithoutCancel(ctx), key, done.encode(), ttl); err != nil {
				if logg != nil {
					logg.Error(ctx, "persist idempotent response", err)
				}
				return
			}
			stored = true
		})
	}
}

func replayExisting(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, store ReplayStore, key, hash string) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		// The claim expired between SetNX and Get; the client may retry.
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotent request state changed, retry"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotency record"))
		return
	}
	var rec replayRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	switch {
	case rec.RequestHash != hash:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with a different request body"))
	case rec.State != stateDone:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "a request with this idempotency key is still in progress"))
	default:
		if rec.ContentType != "" {
			w.Header().Set("Content-Type", rec.ContentType)
		}
		w.Header().Set(idempotentReplayHeader, "true")
		w.WriteHeader(rec.Status)
		_, _ = w.Write(rec.Body)
	}
}

func scopeOf(r *http.Request) string {
	return strings.Join([]string{OperatorFromContext(r.Context()), r.Method, r.URL.Path}, "|")
}

func bodyHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
