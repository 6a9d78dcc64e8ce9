package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"dentallab/internal/core/apperror"
	appctx "dentallab/internal/core/context"
	"dentallab/internal/infrastructure/storage/postgres"
	"dentallab/pkg/logger"
)

const (
	HeaderIdempotencyKey    = "X-Idempotency-Key"
	HeaderIdempotentReplay  = "Idempotent-Replayed"
	maxIdempotencyBodyBytes = 1 << 20 // 1 MiB
)

// IdempotencyStore records keyed requests and their responses.
type IdempotencyStore interface {
	AcquireKey(ctx context.Context, orgID, userID uuid.UUID, key, operation, requestHash string) (*postgres.IdempotencyReplay, error)
	Finish(ctx context.Context, orgID uuid.UUID, key string, statusCode int, body []byte) error
}

// capturingWriter keeps a copy of the response body.
type capturingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *capturingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *capturingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency replays the stored response when a request is retried with the
// same X-Idempotency-Key. Requests without the header pass through. It must
// run after Auth.
func Idempotency(store IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		user := appctx.GetUser(ctx)
		if user == nil {
			abortUnauthorized(c, "authentication required")
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxIdempotencyBodyBytes+1))
		if err != nil {
			_ = c.Error(apperror.NewValidation("unreadable request body").WithCause(err))
			c.Abort()
			return
		}
		if len(body) > maxIdempotencyBodyBytes {
			appErr := apperror.NewValidation("request body too large for idempotency")
			appErr.HTTPStatus = http.StatusRequestEntityTooLarge
			_ = c.Error(appErr.WithDetail("max_bytes", maxIdempotencyBodyBytes))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		hash := sha256.Sum256(body)
		operation := c.Request.Method + " " + c.FullPath()

		replay, err := store.AcquireKey(ctx, user.OrgID, user.UserID, key, operation, hex.EncodeToString(hash[:]))
		if err != nil {
			if _, ok := apperror.AsAppError(err); !ok {
				err = apperror.NewInternal(err).WithDetail("component", "idempotency")
			}
			_ = c.Error(err)
			c.Abort()
			return
		}
		if replay != nil {
			c.Header(HeaderIdempotentReplay, "true")
			c.Data(replay.StatusCode, "application/json; charset=utf-8", replay.Body)
			c.Abort()
			return
		}

		w := &capturingWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		status, stored := w.Status(), w.body.Bytes()
		if !w.Written() && len(c.Errors) > 0 {
			var h gin.H
			status, h = errorResponse(c, c.Errors.Last().Err)
			stored, _ = json.Marshal(h)
		}
		if err := store.Finish(context.WithoutCancel(ctx), user.OrgID, key, status, stored); err != nil {
			logger.Warn(ctx, "failed to store idempotent response", "key", key, "error", err)
		}
	}
}
