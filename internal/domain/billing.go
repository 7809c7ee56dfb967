package domain

import "time"

// SubscriptionStatus is the lifecycle state of a subscription row
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// PaymentType is the billing cadence of a plan
type PaymentType string

const (
	PaymentRecurring PaymentType = "recurring"
	PaymentOneTime   PaymentType = "one_time"
)

// Subscription is a time-bounded grant of a plan to a user
type Subscription struct {
	ID         string             `json:"id" db:"id"`
	UserID     string             `json:"user_id" db:"user_id"`
	PlanID     int                `json:"plan_id" db:"plan_id"`
	Status     SubscriptionStatus `json:"status" db:"status"`
	StartDate  time.Time          `json:"start_date" db:"start_date"`
	EndDate    *time.Time         `json:"end_date" db:"end_date"`
	AmountPaid float64            `json:"amount_paid" db:"amount_paid"`
}

// Plan is a catalog entry
type Plan struct {
	ID          int         `json:"id" db:"id"`
	DisplayName string      `json:"display_name" db:"display_name"`
	Price       float64     `json:"price" db:"price"`
	PaymentType PaymentType `json:"payment_type" db:"payment_type"`
}

// IsPaid reports whether the plan is a real paid plan
func (p Plan) IsPaid() bool {
	return p.ID > NoPlanID
}

// PendingPlan is a purchase made before its buyer signed up
type PendingPlan struct {
	ID           string     `json:"id" db:"id"`
	Email        string     `json:"email" db:"email"`
	PlanID       int        `json:"plan_id" db:"plan_id"`
	AmountPaid   float64    `json:"amount_paid" db:"amount_paid"`
	DurationDays *int       `json:"duration_days" db:"duration_days"`
	ClaimedAt    *time.Time `json:"claimed_at" db:"claimed_at"`
}
