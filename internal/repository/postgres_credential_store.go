package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// PgxQuerier is the subset of a pgx pool used by the Postgres store.
type PgxQuerier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NotificationListener blocks delivering NOTIFY payloads for channel until ctx is done.
type NotificationListener interface {
	Listen(ctx context.Context, channel string, handle func(ctx context.Context, payload string)) error
}

type postgresCredentialStore struct {
	db        PgxQuerier
	listener  NotificationListener
	namespace string
	id        string
	logger    *zap.Logger
	listeners listenerSet
}

// NewPostgresCredentialStore returns a store over the credential_slots table.
// listener may be nil, in which case external changes are never observed.
func NewPostgresCredentialStore(db PgxQuerier, listener NotificationListener, namespace string, logger *zap.Logger) CredentialStore {
	return &postgresCredentialStore{
		db:        db,
		listener:  listener,
		namespace: namespace,
		id:        uuid.NewString(),
		logger:    logger,
	}
}

func (s *postgresCredentialStore) channel() string {
	return "credential_slots:" + s.namespace
}

func (s *postgresCredentialStore) Get(ctx context.Context, key string) (string, bool, error) {
	const query = `
        SELECT slot_value FROM credential_slots
        WHERE namespace=$1 AND slot_key=$2`

	var val string
	err := s.db.QueryRow(ctx, query, s.namespace, key).Scan(&val)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *postgresCredentialStore) Set(ctx context.Context, key, value string) error {
	const query = `
        INSERT INTO credential_slots (namespace, slot_key, slot_value)
        VALUES ($1, $2, $3)
        ON CONFLICT (namespace, slot_key)
        DO UPDATE SET slot_value=EXCLUDED.slot_value, updated_at=NOW()`

	if _, err := s.db.Exec(ctx, query, s.namespace, key, value); err != nil {
		return err
	}
	return s.publish(ctx, Change{Key: key, Value: value, Present: true})
}

func (s *postgresCredentialStore) Delete(ctx context.Context, key string) error {
	const query = `
        DELETE FROM credential_slots
        WHERE namespace=$1 AND slot_key=$2`

	cmd, err := s.db.Exec(ctx, query, s.namespace, key)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return nil
	}
	return s.publish(ctx, Change{Key: key})
}

func (s *postgresCredentialStore) Take(ctx context.Context, key string) (string, bool, error) {
	const query = `
        DELETE FROM credential_slots
        WHERE namespace=$1 AND slot_key=$2
        RETURNING slot_value`

	var val string
	err := s.db.QueryRow(ctx, query, s.namespace, key).Scan(&val)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if err := s.publish(ctx, Change{Key: key}); err != nil {
		s.logger.Warn("publish take notification", zap.String("key", key), zap.Error(err))
	}
	return val, true, nil
}

func (s *postgresCredentialStore) OnExternalChange(fn ChangeListener) func() {
	return s.listeners.add(fn)
}

func (s *postgresCredentialStore) Watch(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Listen(ctx, s.channel(), s.dispatch)
}

func (s *postgresCredentialStore) Origin() string {
	return s.id
}

func (s *postgresCredentialStore) publish(ctx context.Context, change Change) error {
	change.Origin = s.id
	payload, err := json.Marshal(change)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `SELECT pg_notify($1, $2)`, s.channel(), string(payload))
	return err
}

func (s *postgresCredentialStore) dispatch(ctx context.Context, payload string) {
	var change Change
	if err := json.Unmarshal([]byte(payload), &change); err != nil {
		s.logger.Warn("discarding malformed change notification", zap.Error(err))
		return
	}
	if change.Origin == s.id {
		return
	}
	s.listeners.notify(ctx, change)
}
