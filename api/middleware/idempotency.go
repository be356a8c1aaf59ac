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

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/packfinderz-orderflow/api/responses"
	pkgerrors "github.com/angelmondragon/packfinderz-orderflow/pkg/errors"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/logger"
	pkgredis "github.com/angelmondragon/packfinderz-orderflow/pkg/redis"
)

const (
	apiPrefix = "/api/v1"

	// Order actions replay for a day; money movements for a week.
	actionReplayWindow = 24 * time.Hour
	moneyReplayWindow  = 7 * 24 * time.Hour

	// A claim outliving this is treated as an abandoned request.
	claimTTL = time.Minute
)

// storedResponse is what a key replays.
type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
	RequestHash string `json:"request_hash"`
}

// Idempotency makes mutating order routes safe to retry. The first request
// carrying an Idempotency-Key claims it; a concurrent duplicate gets 409 and a
// later one gets the stored response, as long as the body hash matches.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			window, ok := replayWindow(r.Method, routePattern(r))
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			id := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
			if id == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}
			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			sum := sha256.Sum256(body)
			hash := hex.EncodeToString(sum[:])
			key := store.IdempotencyKey(requestScope(r), id)

			prior, err := lookupResponse(ctx, store, key)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
				return
			}
			if prior != nil {
				if prior.RequestHash != hash {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
					return
				}
				replay(w, prior)
				return
			}

			claim := claimKey(key)
			won, err := store.SetNX(ctx, claim, hash, claimTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if !won {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "a request with this Idempotency-Key is still in progress"))
				return
			}
			defer func() {
				if err := store.Del(context.WithoutCancel(ctx), claim); err != nil && logg != nil {
					logg.Error(ctx, "release idempotency claim", err)
				}
			}()

			rec := &recordingWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			if !replayable(rec.status) {
				return
			}

			payload, err := json.Marshal(storedResponse{
				Status:      rec.status,
				ContentType: rec.Header().Get("Content-Type"),
				Body:        rec.body.Bytes(),
				RequestHash: hash,
			})
			if err == nil {
				_, err = store.SetNX(ctx, key, string(payload), window)
			}
			if err != nil && logg != nil {
				logg.Error(ctx, "persist idempotency record", err)
			}
		})
	}
}

// replayWindow decides which routes need a key and for how long its response
// is kept. Refunds, disputes and resolutions move money and keep theirs longest.
func replayWindow(method, pattern string) (time.Duration, bool) {
	if method != http.MethodPut && method != http.MethodPost {
		return 0, false
	}
	route, ok := strings.CutPrefix(pattern, apiPrefix)
	if !ok || strings.HasPrefix(route, "/notifications") {
		return 0, false
	}
	switch {
	case strings.HasSuffix(route, "/refund"),
		strings.HasSuffix(route, "/dispute"),
		strings.HasPrefix(route, "/admin/"),
		strings.HasPrefix(route, "/distributor/refunds/"):
		return moneyReplayWindow, true
	}
	return actionReplayWindow, true
}

// requestScope ties a key to the caller and the concrete path it was sent to.
func requestScope(r *http.Request) string {
	return strings.Join([]string{callerKeyPart(r.Context()), r.Method, r.URL.Path}, "|")
}

func claimKey(key string) string {
	return key + ":claim"
}

func lookupResponse(ctx context.Context, store pkgredis.IdempotencyStore, key string) (*storedResponse, error) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) || (err == nil && raw == "") {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

func replay(w http.ResponseWriter, stored *storedResponse) {
	if stored.ContentType != "" {
		w.Header().Set("Content-Type", stored.ContentType)
	}
	w.Header().Set("Idempotent-Replay", "true")
	w.WriteHeader(stored.Status)
	_, _ = w.Write(stored.Body)
}

// routePattern prefers the matched chi pattern so keys ignore path values;
// a subrouter mount only exposes "/api/v1/*", so fall back to the raw path.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" && !strings.Contains(pattern, "*") {
			return pattern
		}
	}
	return r.URL.Path
}

// replayable excludes outcomes the client is expected to retry: conflicts,
// throttling and server errors.
func replayable(status int) bool {
	return status < http.StatusInternalServerError &&
		status != http.StatusConflict &&
		status != http.StatusTooManyRequests
}

type recordingWriter struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (w *recordingWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}
