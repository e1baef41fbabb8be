package store

import (
	"context"
	"database/sql"
	"fmt"

	"raffle-checkout/internal/models"
)

// CreateSession journals a new checkout session. The row is a local
// projection of server state, never the authoritative copy.
func (s *Store) CreateSession(ctx context.Context, session *models.CheckoutSession) error {
	query := `
		INSERT INTO checkout_sessions (purchase_id, raffle_id, payment_type, status, total_amount, number_count, manual_override)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (purchase_id) DO NOTHING
		RETURNING created_at, updated_at`

	err := s.db.GetContext(ctx, session, query,
		session.PurchaseID, session.RaffleID, session.PaymentType,
		session.Status, session.TotalAmount, session.NumberCount, session.ManualOverride)
	if err == sql.ErrNoRows {
		// Conflict: the session already exists, which is fine for a
		// re-fetched projection.
		return nil
	}
	return err
}

// GetSession retrieves a session by purchase id.
func (s *Store) GetSession(ctx context.Context, purchaseID string) (*models.CheckoutSession, error) {
	var session models.CheckoutSession
	err := s.db.GetContext(ctx, &session,
		"SELECT * FROM checkout_sessions WHERE purchase_id = $1", purchaseID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session not found: %s", purchaseID)
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// UpdateSessionStatus moves a session to a new status inside a
// transaction, locking the row and enforcing the monotonic lifecycle:
// the update is rejected with ErrInvalidTransition rather than letting
// a late event drag a terminal session back to life.
func (s *Store) UpdateSessionStatus(ctx context.Context, purchaseID, status string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var current string
	err = tx.GetContext(ctx, &current,
		"SELECT status FROM checkout_sessions WHERE purchase_id = $1 FOR UPDATE", purchaseID)
	if err == sql.ErrNoRows {
		return fmt.Errorf("session not found: %s", purchaseID)
	}
	if err != nil {
		return fmt.Errorf("failed to lock session: %w", err)
	}

	if !models.CanTransition(current, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, status)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE checkout_sessions SET status = $1, updated_at = NOW() WHERE purchase_id = $2",
		status, purchaseID)
	if err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}

	return tx.Commit()
}

// MarkManualOverride records that a nominally AUTOMATIC session fell
// back to the manual payment flow.
func (s *Store) MarkManualOverride(ctx context.Context, purchaseID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE checkout_sessions SET manual_override = TRUE, updated_at = NOW() WHERE purchase_id = $1",
		purchaseID)
	return err
}

// GetSessionsByRaffle lists journaled sessions for a raffle, newest first.
func (s *Store) GetSessionsByRaffle(ctx context.Context, raffleID string) ([]models.CheckoutSession, error) {
	var sessions []models.CheckoutSession
	err := s.db.SelectContext(ctx, &sessions,
		"SELECT * FROM checkout_sessions WHERE raffle_id = $1 ORDER BY created_at DESC", raffleID)
	return sessions, err
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
