package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prohmpiriya/storefront/backend-storefront/internal/domain"
)

// Schema creates the tables PostgresStore uses
const Schema = `
CREATE TABLE IF NOT EXISTS checkout_attempts (
	id                TEXT PRIMARY KEY,
	session_id        TEXT NOT NULL,
	user_id           TEXT,
	entity            TEXT NOT NULL,
	entity_id         TEXT NOT NULL,
	state             TEXT NOT NULL,
	previous_state    TEXT,
	draft             JSONB NOT NULL,
	booking_id        TEXT,
	order_id          TEXT,
	payment_record_id TEXT,
	payment_id        TEXT,
	failure           JSONB,
	created_at        TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL,
	completed_at      TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_checkout_attempts_state_updated ON checkout_attempts (state, updated_at);

CREATE TABLE IF NOT EXISTS checkout_transitions (
	id         TEXT PRIMARY KEY,
	attempt_id TEXT NOT NULL REFERENCES checkout_attempts (id) ON DELETE CASCADE,
	from_state TEXT NOT NULL,
	to_state   TEXT NOT NULL,
	reason     TEXT,
	timestamp  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_checkout_transitions_attempt ON checkout_transitions (attempt_id, timestamp);
`

const attemptColumns = `
	id, session_id, user_id, entity, entity_id, state, previous_state,
	draft, booking_id, order_id, payment_record_id, payment_id,
	failure, created_at, updated_at, completed_at
`

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-based store
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the checkout tables when missing
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create checkout schema: %w", err)
	}
	return nil
}

// SaveAttempt persists a new attempt
func (s *PostgresStore) SaveAttempt(ctx context.Context, a *Attempt) error {
	draftJSON, failureJSON, err := marshalAttempt(a)
	if err != nil {
		return err
	}

	query := `INSERT INTO checkout_attempts (` + attemptColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err = s.pool.Exec(ctx, query,
		a.ID,
		a.SessionID,
		nullable(a.UserID),
		string(a.Entity),
		string(a.EntityID),
		string(a.State),
		nullable(string(a.PreviousState)),
		draftJSON,
		nullable(a.BookingID),
		nullable(a.OrderID),
		nullable(a.PaymentRecordID),
		nullable(a.PaymentID),
		failureJSON,
		a.CreatedAt,
		a.UpdatedAt,
		a.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save attempt: %w", err)
	}
	return nil
}

// GetAttempt retrieves an attempt by ID
func (s *PostgresStore) GetAttempt(ctx context.Context, id string) (*Attempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM checkout_attempts WHERE id = $1`

	a, err := scanAttempt(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}
	return a, nil
}

// UpdateAttempt updates an existing attempt
func (s *PostgresStore) UpdateAttempt(ctx context.Context, a *Attempt) error {
	draftJSON, failureJSON, err := marshalAttempt(a)
	if err != nil {
		return err
	}

	query := `
		UPDATE checkout_attempts
		SET state = $2,
			previous_state = $3,
			draft = $4,
			booking_id = $5,
			order_id = $6,
			payment_record_id = $7,
			payment_id = $8,
			failure = $9,
			updated_at = $10,
			completed_at = $11
		WHERE id = $1
	`

	result, err := s.pool.Exec(ctx, query,
		a.ID,
		string(a.State),
		nullable(string(a.PreviousState)),
		draftJSON,
		nullable(a.BookingID),
		nullable(a.OrderID),
		nullable(a.PaymentRecordID),
		nullable(a.PaymentID),
		failureJSON,
		a.UpdatedAt,
		a.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update attempt: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrAttemptNotFound
	}
	return nil
}

// SaveTransition persists a state transition
func (s *PostgresStore) SaveTransition(ctx context.Context, t *Transition) error {
	query := `
		INSERT INTO checkout_transitions (id, attempt_id, from_state, to_state, reason, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.pool.Exec(ctx, query,
		t.ID,
		t.AttemptID,
		string(t.FromState),
		string(t.ToState),
		nullable(t.Reason),
		t.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to save transition: %w", err)
	}
	return nil
}

// GetTransitions retrieves all transitions for an attempt
func (s *PostgresStore) GetTransitions(ctx context.Context, attemptID string) ([]Transition, error) {
	query := `
		SELECT id, attempt_id, from_state, to_state, reason, timestamp
		FROM checkout_transitions
		WHERE attempt_id = $1
		ORDER BY timestamp ASC
	`

	rows, err := s.pool.Query(ctx, query, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to get transitions: %w", err)
	}
	defer rows.Close()

	var transitions []Transition
	for rows.Next() {
		var t Transition
		var fromState, toState string
		var reason *string

		if err := rows.Scan(&t.ID, &t.AttemptID, &fromState, &toState, &reason, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		t.FromState = State(fromState)
		t.ToState = State(toState)
		if reason != nil {
			t.Reason = *reason
		}
		transitions = append(transitions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transitions: %w", err)
	}
	return transitions, nil
}

// GetStaleAttempts retrieves attempts in state updated before cutoff
func (s *PostgresStore) GetStaleAttempts(ctx context.Context, state State, cutoff time.Time, limit int) ([]*Attempt, error) {
	query := `SELECT ` + attemptColumns + `
		FROM checkout_attempts
		WHERE state = $1 AND updated_at < $2
		ORDER BY updated_at ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.pool.Query(ctx, query, string(state), cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to get stale attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attempts: %w", err)
	}
	return attempts, nil
}

// scanAttempt scans a row into an Attempt
func scanAttempt(row pgx.Row) (*Attempt, error) {
	var a Attempt
	var entity, entityID, state string
	var userID, previousState, bookingID, orderID, paymentRecordID, paymentID *string
	var draftJSON, failureJSON []byte

	err := row.Scan(
		&a.ID,
		&a.SessionID,
		&userID,
		&entity,
		&entityID,
		&state,
		&previousState,
		&draftJSON,
		&bookingID,
		&orderID,
		&paymentRecordID,
		&paymentID,
		&failureJSON,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan attempt: %w", err)
	}

	a.Entity = domain.Entity(entity)
	a.EntityID = domain.ID(entityID)
	a.State = State(state)
	a.UserID = deref(userID)
	a.PreviousState = State(deref(previousState))
	a.BookingID = deref(bookingID)
	a.OrderID = deref(orderID)
	a.PaymentRecordID = deref(paymentRecordID)
	a.PaymentID = deref(paymentID)

	if len(draftJSON) > 0 {
		if err := json.Unmarshal(draftJSON, &a.Draft); err != nil {
			return nil, fmt.Errorf("failed to unmarshal draft: %w", err)
		}
	}
	if len(failureJSON) > 0 {
		var f Failure
		if err := json.Unmarshal(failureJSON, &f); err != nil {
			return nil, fmt.Errorf("failed to unmarshal failure: %w", err)
		}
		a.Failure = &f
	}
	return &a, nil
}

func marshalAttempt(a *Attempt) (draft, failure []byte, err error) {
	draft, err = json.Marshal(a.Draft)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal draft: %w", err)
	}
	if a.Failure != nil {
		failure, err = json.Marshal(a.Failure)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal failure: %w", err)
		}
	}
	return draft, failure, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
