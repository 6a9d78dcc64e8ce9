package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"dentallab/internal/core/apperror"
)

// IdempotencyStatus represents the state of an idempotent request.
type IdempotencyStatus string

const (
	IdempotencyStatusPending IdempotencyStatus = "pending"
	IdempotencyStatusSuccess IdempotencyStatus = "success"
	IdempotencyStatusFailed  IdempotencyStatus = "failed"
)

// stalePendingAfter is how long a pending key may stay unfinished before
// another request may take it over.
const stalePendingAfter = time.Minute

// IdempotencyRecord stores the outcome of one keyed request.
type IdempotencyRecord struct {
	Key         string            `db:"idempotency_key"`
	OrgID       uuid.UUID         `db:"organization_id"`
	UserID      uuid.UUID         `db:"user_id"`
	Operation   string            `db:"operation"`
	Status      IdempotencyStatus `db:"status"`
	RequestHash string            `db:"request_hash"`
	Response    []byte            `db:"response"`
	StatusCode  int               `db:"response_status"`
	UpdatedAt   time.Time         `db:"updated_at"`
	Inserted    bool              `db:"inserted"`
}

// IdempotencyReplay is a stored HTTP response.
type IdempotencyReplay struct {
	StatusCode int
	Body       []byte
}

// IdempotencyStore keeps X-Idempotency-Key records so a retried order
// creation returns the first response instead of creating a second order.
type IdempotencyStore struct {
	txManager *TxManager
	ttl       time.Duration
	now       func() time.Time
}

// NewIdempotencyStore creates a store whose keys expire after ttl.
func NewIdempotencyStore(txManager *TxManager, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{txManager: txManager, ttl: ttl, now: time.Now}
}

// AcquireKey claims key for a request. It returns:
//   - (nil, nil) when the caller owns the key and must run the request;
//   - (replay, nil) when the request already finished;
//   - an error when the key belongs to a different request or is still running.
func (s *IdempotencyStore) AcquireKey(ctx context.Context, orgID, userID uuid.UUID, key, operation, requestHash string) (*IdempotencyReplay, error) {
	now := s.now().UTC()

	var rec IdempotencyRecord
	err := s.txManager.GetQuerier(ctx).QueryRow(ctx, `
		INSERT INTO idempotency_keys (idempotency_key, organization_id, user_id, operation, status, request_hash, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7, $8)
		ON CONFLICT (organization_id, idempotency_key) DO UPDATE SET
			expires_at = GREATEST(idempotency_keys.expires_at, EXCLUDED.expires_at)
		RETURNING idempotency_key, organization_id, user_id, operation, status, request_hash,
			COALESCE(response, ''::bytea), COALESCE(response_status, 0), updated_at, (xmax = 0)
	`, key, orgID, userID, operation, IdempotencyStatusPending, requestHash, now, now.Add(s.ttl)).Scan(
		&rec.Key, &rec.OrgID, &rec.UserID, &rec.Operation, &rec.Status, &rec.RequestHash,
		&rec.Response, &rec.StatusCode, &rec.UpdatedAt, &rec.Inserted,
	)
	if err != nil {
		return nil, fmt.Errorf("acquire idempotency key: %w", err)
	}
	if rec.Inserted {
		return nil, nil
	}

	if rec.UserID != userID || rec.Operation != operation || rec.RequestHash != requestHash {
		return nil, apperror.NewConflict("Idempotency key was used for a different request").
			WithDetail("key", key).
			WithDetail("stored_operation", rec.Operation).
			WithDetail("request_operation", operation)
	}

	switch rec.Status {
	case IdempotencyStatusSuccess, IdempotencyStatusFailed:
		status := rec.StatusCode
		if status == 0 {
			status = 200
		}
		return &IdempotencyReplay{StatusCode: status, Body: rec.Response}, nil
	default:
		if now.Sub(rec.UpdatedAt) <= stalePendingAfter {
			return nil, apperror.NewLocked(key)
		}
		tag, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
			UPDATE idempotency_keys SET updated_at = $1
			WHERE organization_id = $2 AND idempotency_key = $3 AND status = $4 AND updated_at = $5
		`, now, orgID, key, IdempotencyStatusPending, rec.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("reclaim stale idempotency key: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, apperror.NewLocked(key)
		}
		return nil, nil
	}
}

// Finish stores the response of a keyed request. Responses with status
// >= 500 release the key instead so the client can retry.
func (s *IdempotencyStore) Finish(ctx context.Context, orgID uuid.UUID, key string, statusCode int, body []byte) error {
	if statusCode >= 500 {
		_, err := s.txManager.GetQuerier(ctx).Exec(ctx,
			`DELETE FROM idempotency_keys WHERE organization_id = $1 AND idempotency_key = $2`, orgID, key)
		return err
	}

	status := IdempotencyStatusSuccess
	if statusCode >= 400 {
		status = IdempotencyStatusFailed
	}
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE idempotency_keys
		SET status = $1, response = $2, response_status = $3, updated_at = $4
		WHERE organization_id = $5 AND idempotency_key = $6
	`, status, body, statusCode, s.now().UTC(), orgID, key)
	return err
}

// CleanupExpired removes expired records.
func (s *IdempotencyStore) CleanupExpired(ctx context.Context) (int64, error) {
	tag, err := s.txManager.GetQuerier(ctx).Exec(ctx,
		`DELETE FROM idempotency_keys WHERE expires_at < $1`, s.now().UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
