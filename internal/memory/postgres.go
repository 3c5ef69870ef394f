package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists conversational memory in PostgreSQL. Profiles
// and contexts are stored as JSONB documents and merged in Go inside a
// transaction so the semantics match MemStore exactly.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS transcript_turns (
			user_id TEXT NOT NULL,
			seq INT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (user_id, seq)
		);`,
		`CREATE TABLE IF NOT EXISTS user_profiles (
			user_id TEXT PRIMARY KEY,
			profile JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS conversation_contexts (
			user_id TEXT PRIMARY KEY,
			context JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) SaveTranscript(ctx context.Context, userID string, turns []Turn) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save transcript: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM transcript_turns WHERE user_id=$1`, userID); err != nil {
		return fmt.Errorf("clear transcript: %w", err)
	}

	seq := 0
	for _, t := range turns {
		if t.Role == RoleSystem {
			continue
		}
		if t.Timestamp.IsZero() {
			t.Timestamp = time.Now().UTC()
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO transcript_turns (user_id, seq, role, content, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			userID, seq, t.Role, t.Content, t.Timestamp,
		); err != nil {
			return fmt.Errorf("insert turn: %w", err)
		}
		seq++
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save transcript: %w", err)
	}
	return nil
}

func (s *PostgresStore) Transcript(ctx context.Context, userID string) ([]Turn, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT role, content, created_at FROM transcript_turns
		 WHERE user_id=$1 ORDER BY seq`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query transcript: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.Role, &t.Content, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}
	return turns, nil
}

func (s *PostgresStore) UpdateProfile(ctx context.Context, userID string, partial Profile) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin update profile: %w", err)
	}
	defer tx.Rollback(ctx)

	var base Profile
	var raw []byte
	err = tx.QueryRow(ctx,
		`SELECT profile FROM user_profiles WHERE user_id=$1 FOR UPDATE`, userID,
	).Scan(&raw)
	switch {
	case err == nil:
		if err := json.Unmarshal(raw, &base); err != nil {
			return fmt.Errorf("decode stored profile: %w", err)
		}
	case errors.Is(err, pgx.ErrNoRows):
		// First write for this user.
	default:
		return fmt.Errorf("load profile: %w", err)
	}

	merged, err := json.Marshal(MergeProfile(base, partial))
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO user_profiles (user_id, profile, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (user_id) DO UPDATE SET profile=EXCLUDED.profile, updated_at=now()`,
		userID, merged,
	); err != nil {
		return fmt.Errorf("store profile: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit update profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) Profile(ctx context.Context, userID string) (Profile, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT profile FROM user_profiles WHERE user_id=$1`, userID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, nil
	}
	if err != nil {
		return Profile{}, fmt.Errorf("load profile: %w", err)
	}
	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) UpdateContext(ctx context.Context, userID string, partial Context) error {
	return s.mutateContext(ctx, userID, true, func(base Context) Context {
		return MergeContext(base, partial)
	})
}

func (s *PostgresStore) Context(ctx context.Context, userID string) (Context, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT context FROM conversation_contexts WHERE user_id=$1`, userID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return NewContext(), nil
	}
	if err != nil {
		return NewContext(), fmt.Errorf("load context: %w", err)
	}
	c := NewContext()
	if err := json.Unmarshal(raw, &c); err != nil {
		return NewContext(), fmt.Errorf("decode context: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) RemovePendingQuestion(ctx context.Context, userID string, question string) error {
	return s.mutateContext(ctx, userID, false, func(base Context) Context {
		kept := make([]string, 0, len(base.PendingQuestions))
		for _, q := range base.PendingQuestions {
			if q != question {
				kept = append(kept, q)
			}
		}
		base.PendingQuestions = kept
		return base
	})
}

func (s *PostgresStore) mutateContext(ctx context.Context, userID string, stamp bool, mutate func(Context) Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin update context: %w", err)
	}
	defer tx.Rollback(ctx)

	base := NewContext()
	var raw []byte
	err = tx.QueryRow(ctx,
		`SELECT context FROM conversation_contexts WHERE user_id=$1 FOR UPDATE`, userID,
	).Scan(&raw)
	switch {
	case err == nil:
		if err := json.Unmarshal(raw, &base); err != nil {
			return fmt.Errorf("decode stored context: %w", err)
		}
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return fmt.Errorf("load context: %w", err)
	}

	updated := mutate(base)
	if stamp {
		updated.LastUpdateTime = time.Now().UTC()
	}

	encoded, err := json.Marshal(updated)
	if err != nil {
		return fmt.Errorf("encode context: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO conversation_contexts (user_id, context, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (user_id) DO UPDATE SET context=EXCLUDED.context, updated_at=now()`,
		userID, encoded,
	); err != nil {
		return fmt.Errorf("store context: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit update context: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
