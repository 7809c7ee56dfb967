package repository

import (
	"context"
	"fmt"

	"github.com/prperemyshlev/access-service/internal/domain"
	"github.com/prperemyshlev/access-service/pkg/database"
)

// planRepository implements PlanRepository interface
type planRepository struct {
	db *database.Postgres
}

// NewPlanRepository creates a new plan repository
func NewPlanRepository(db *database.Postgres) PlanRepository {
	return &planRepository{db: db}
}

// List returns the whole catalog ordered by id, including the free plan
func (r *planRepository) List(ctx context.Context) ([]domain.Plan, error) {
	query := `SELECT id, display_name, price, payment_type FROM plans ORDER BY id`

	rows, err := r.db.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var plans []domain.Plan
	for rows.Next() {
		var plan domain.Plan
		if err := rows.Scan(&plan.ID, &plan.DisplayName, &plan.Price, &plan.PaymentType); err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, plan)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate plans: %w", err)
	}

	return plans, nil
}
