package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Masterminds/squirrel"

	domain "dentallab/internal/domain/notification"
	"dentallab/internal/infrastructure/storage/postgres"
)

// Store keeps in-app notifications in the notifications table.
type Store struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

func NewStore(txm *postgres.TxManager) *Store {
	return &Store{txm: txm, builder: postgres.Builder()}
}

func (s *Store) insertQuery(env domain.Envelope) (squirrel.InsertBuilder, error) {
	var payload []byte
	if len(env.Payload) > 0 {
		var err error
		if payload, err = json.Marshal(env.Payload); err != nil {
			return squirrel.InsertBuilder{}, fmt.Errorf("marshal payload: %w", err)
		}
	}
	roles := env.Roles
	if roles == nil {
		roles = []string{}
	}
	return s.builder.Insert("notifications").
		Columns("id", "organization_id", "user_id", "roles", "type", "title", "message", "payload", "created_at").
		Values(env.ID, env.OrgID, env.UserID, roles, env.Type, env.Title, env.Message, payload, env.CreatedAt), nil
}

// Deliver stores env outside any caller transaction.
func (s *Store) Deliver(ctx context.Context, env domain.Envelope) error {
	q, err := s.insertQuery(env)
	if err != nil {
		return err
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := s.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("store notification %s: %w", env.Type, err)
	}
	return nil
}
