// Package postgres provides a PostgreSQL-backed session store for deployments without Redis.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/mattcg/oauth-sessions/internal/domain/oauth"
	errorsx "github.com/mattcg/oauth-sessions/internal/errors"
)

// Expiry is evaluated by the database clock so every replica agrees on liveness.
const (
	remainingExpr = `CEIL(EXTRACT(EPOCH FROM (expires_at - now())))::bigint`

	checkSQL = `SELECT ` + remainingExpr + ` FROM oauth_sessions WHERE id = $1 AND expires_at > now()`

	deleteExpiredSQL = `DELETE FROM oauth_sessions WHERE id = $1 AND expires_at <= now()`

	insertSQL = `
		INSERT INTO oauth_sessions (id, provider, token, expires_at)
		VALUES ($1, $2, NULL, now() + ($3::bigint * interval '1 second'))`

	beginSQL = `
		UPDATE oauth_sessions
		SET token = $2, expires_at = now() + ($3::bigint * interval '1 second')
		WHERE id = $1 AND expires_at > now()`

	endSQL = `DELETE FROM oauth_sessions WHERE id = $1`

	getSQL = `
		SELECT provider, COALESCE(token, '') AS token, ` + remainingExpr + ` AS ttl
		FROM oauth_sessions
		WHERE id = $1 AND expires_at > now()`

	purgeSQL = `DELETE FROM oauth_sessions WHERE expires_at <= now()`
)

type sessionRow struct {
	Provider string `db:"provider"`
	Token    string `db:"token"`
	TTL      int64  `db:"ttl"`
}

// SessionStore persists sessions in the oauth_sessions table.
type SessionStore struct {
	DB *sql.DB
}

// NewSessionStore creates a SessionStore over db. The schema is created by internal/migrate.
func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{DB: db}
}

func (s *SessionStore) CheckSession(ctx context.Context, id string) (int64, error) {
	var ttl int64
	err := s.DB.QueryRowContext(ctx, checkSQL, id).Scan(&ttl)
	if errors.Is(err, sql.ErrNoRows) {
		return oauth.TTLNotFound, nil
	}
	if err != nil {
		return 0, errorsx.MapDBError(fmt.Errorf("check session: %w", err))
	}
	return ttl, nil
}

// InitSession removes an expired row with the same id and inserts the new one in one transaction.
// A live row triggers the primary key violation, which surfaces as a conflict.
func (s *SessionStore) InitSession(ctx context.Context, provider, id string, ttl int64) error {
	if id == "" {
		return errorsx.ValidationField("id", "session id cannot be empty")
	}
	if !oauth.ValidTTL(ttl) {
		return errorsx.ValidationField("ttl", "ttl out of range")
	}

	err := withPgxTx(ctx, s.DB, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, deleteExpiredSQL, id); err != nil {
			return fmt.Errorf("delete expired session: %w", err)
		}
		if _, err := tx.Exec(ctx, insertSQL, id, provider, ttl); err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		return nil
	})
	return errorsx.MapDBError(err)
}

func (s *SessionStore) BeginSession(ctx context.Context, id, token string, ttl int64) error {
	if !oauth.ValidTTL(ttl) {
		return errorsx.ValidationField("ttl", "ttl out of range")
	}

	res, err := s.DB.ExecContext(ctx, beginSQL, id, token, ttl)
	if err != nil {
		return errorsx.MapDBError(fmt.Errorf("begin session: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errorsx.MapDBError(fmt.Errorf("begin session rows affected: %w", err))
	}
	if n == 0 {
		return errorsx.SessionNotFound(id)
	}
	return nil
}

func (s *SessionStore) EndSession(ctx context.Context, id string) error {
	if _, err := s.DB.ExecContext(ctx, endSQL, id); err != nil {
		return errorsx.MapDBError(fmt.Errorf("end session: %w", err))
	}
	return nil
}

func (s *SessionStore) GetSession(ctx context.Context, id string) (oauth.Record, bool, error) {
	var row sessionRow
	err := withPgxConn(ctx, s.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, getSQL, id)
		if err != nil {
			return err
		}
		row, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[sessionRow])
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return oauth.Record{}, false, nil
	}
	if err != nil {
		return oauth.Record{}, false, errorsx.MapDBError(fmt.Errorf("get session: %w", err))
	}
	return oauth.Record{Provider: row.Provider, Token: row.Token, TTL: row.TTL}, true, nil
}

// Purge deletes expired rows and returns how many were removed.
func (s *SessionStore) Purge(ctx context.Context) (int64, error) {
	res, err := s.DB.ExecContext(ctx, purgeSQL)
	if err != nil {
		return 0, errorsx.MapDBError(fmt.Errorf("purge sessions: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errorsx.MapDBError(fmt.Errorf("purge rows affected: %w", err))
	}
	return n, nil
}
