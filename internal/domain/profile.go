package domain

// NoPlanID marks a profile without a paid plan
const NoPlanID = 0

// UserProfile is the in-session representation of a user's plan, admin and avatar state.
// A published profile is never mutated; resolvers build a new one instead.
type UserProfile struct {
	ID                string  `json:"id"`
	Email             string  `json:"email"`
	Nome              string  `json:"nome"`
	ActivePlanID      int     `json:"active_plan_id"`
	HasLifetimeAccess bool    `json:"has_lifetime_access"`
	IsAdmin           bool    `json:"is_admin"`
	AvatarURL         *string `json:"avatar_url"`
}

// ProfileSummary is the narrow profile row
type ProfileSummary struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Nome    string `json:"nome"`
	IsAdmin bool   `json:"is_admin"`
}
