package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/prperemyshlev/access-service/internal/domain"
	"github.com/prperemyshlev/access-service/pkg/database"
)

// subscriptionRepository implements SubscriptionRepository interface
type subscriptionRepository struct {
	db *database.Postgres
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(db *database.Postgres) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

// HasActivePaid reports whether the user holds any active subscription to a paid plan
func (r *subscriptionRepository) HasActivePaid(ctx context.Context, userID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM subscriptions
			WHERE user_id = $1 AND status = $2 AND plan_id > $3
		)
	`

	var exists bool
	err := r.db.DB.QueryRowContext(ctx, query, userID, domain.SubscriptionActive, domain.NoPlanID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check active subscriptions: %w", err)
	}

	return exists, nil
}

// ListByUser returns the full subscription history, newest first
func (r *subscriptionRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Subscription, error) {
	query := `
		SELECT id, user_id, plan_id, status, start_date, end_date, amount_paid
		FROM subscriptions
		WHERE user_id = $1
		ORDER BY start_date DESC
	`

	rows, err := r.db.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscriptions by user id: %w", err)
	}
	defer rows.Close()

	var subscriptions []*domain.Subscription
	for rows.Next() {
		sub := &domain.Subscription{}
		var endDate sql.NullTime

		err := rows.Scan(
			&sub.ID,
			&sub.UserID,
			&sub.PlanID,
			&sub.Status,
			&sub.StartDate,
			&endDate,
			&sub.AmountPaid,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}

		if endDate.Valid {
			sub.EndDate = &endDate.Time
		}

		subscriptions = append(subscriptions, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate subscriptions: %w", err)
	}

	return subscriptions, nil
}

// ActivatePendingPlan claims the oldest unclaimed purchase made with the user's
// email, turns it into an active subscription and points the profile at the plan.
// Returns ErrNotFound when nothing is pending.
func (r *subscriptionRepository) ActivatePendingPlan(ctx context.Context, userID, email string) (*domain.Subscription, error) {
	var sub *domain.Subscription

	err := r.db.InTx(ctx, func(tx *sql.Tx) error {
		var pending domain.PendingPlan
		var durationDays sql.NullInt64

		err := tx.QueryRowContext(ctx, `
			SELECT id, plan_id, amount_paid, duration_days
			FROM pending_plans
			WHERE lower(email) = lower($1) AND claimed_at IS NULL
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		`, email).Scan(&pending.ID, &pending.PlanID, &pending.AmountPaid, &durationDays)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("no pending plan for %s: %w", email, ErrNotFound)
			}
			return fmt.Errorf("failed to get pending plan: %w", err)
		}

		var paymentType domain.PaymentType
		err = tx.QueryRowContext(ctx, `SELECT payment_type FROM plans WHERE id = $1`, pending.PlanID).Scan(&paymentType)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("plan %d not found: %w", pending.PlanID, ErrNotFound)
			}
			return fmt.Errorf("failed to get plan: %w", err)
		}

		now := time.Now()
		sub = &domain.Subscription{
			ID:         uuid.New().String(),
			UserID:     userID,
			PlanID:     pending.PlanID,
			Status:     domain.SubscriptionActive,
			StartDate:  now,
			AmountPaid: pending.AmountPaid,
		}
		if durationDays.Valid {
			end := now.AddDate(0, 0, int(durationDays.Int64))
			sub.EndDate = &end
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO subscriptions (id, user_id, plan_id, status, start_date, end_date, amount_paid)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, sub.ID, sub.UserID, sub.PlanID, sub.Status, sub.StartDate, sub.EndDate, sub.AmountPaid)
		if err != nil {
			return fmt.Errorf("failed to create subscription: %w", err)
		}

		// One-time purchases without an end date never expire
		lifetime := paymentType == domain.PaymentOneTime && sub.EndDate == nil

		_, err = tx.ExecContext(ctx, `
			UPDATE profiles
			SET active_plan_id = $2, has_lifetime_access = has_lifetime_access OR $3, updated_at = $4
			WHERE id = $1
		`, userID, sub.PlanID, lifetime, now)
		if err != nil {
			return fmt.Errorf("failed to update profile plan: %w", err)
		}

		_, err = tx.ExecContext(ctx, `UPDATE pending_plans SET claimed_at = $2 WHERE id = $1`, pending.ID, now)
		if err != nil {
			return fmt.Errorf("failed to claim pending plan: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return sub, nil
}

// ExpirePlanIfNeeded cancels the user's subscriptions whose end date has passed
func (r *subscriptionRepository) ExpirePlanIfNeeded(ctx context.Context, userID string) (int64, error) {
	return r.expire(ctx, `
		UPDATE subscriptions
		SET status = $1
		WHERE status = $2 AND end_date IS NOT NULL AND end_date < $3 AND user_id = $4
		RETURNING user_id
	`, userID)
}

// ExpireDue cancels every subscription whose end date has passed
func (r *subscriptionRepository) ExpireDue(ctx context.Context) (int64, error) {
	return r.expire(ctx, `
		UPDATE subscriptions
		SET status = $1
		WHERE status = $2 AND end_date IS NOT NULL AND end_date < $3
		RETURNING user_id
	`)
}

// expire flips matching rows to cancelled and drops the profile's active plan
// for users left without any active paid subscription. Rows are never deleted.
func (r *subscriptionRepository) expire(ctx context.Context, query string, extra ...any) (int64, error) {
	var expired int64

	err := r.db.InTx(ctx, func(tx *sql.Tx) error {
		args := append([]any{domain.SubscriptionCancelled, domain.SubscriptionActive, time.Now()}, extra...)

		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to expire subscriptions: %w", err)
		}

		var userIDs []string
		for rows.Next() {
			var userID string
			if err := rows.Scan(&userID); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan expired subscription: %w", err)
			}
			userIDs = append(userIDs, userID)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("failed to iterate expired subscriptions: %w", err)
		}

		expired = int64(len(userIDs))
		if expired == 0 {
			return nil
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE profiles p
			SET active_plan_id = $2
			WHERE p.id = ANY($1::uuid[]) AND NOT EXISTS (
				SELECT 1 FROM subscriptions s
				WHERE s.user_id = p.id AND s.status = $3 AND s.plan_id > $2
			)
		`, pq.Array(userIDs), domain.NoPlanID, domain.SubscriptionActive)
		if err != nil {
			return fmt.Errorf("failed to reset profile plans: %w", err)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return expired, nil
}
