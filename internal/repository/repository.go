package repository

import (
	"github.com/prperemyshlev/access-service/pkg/database"
)

// Repositories holds all repository interfaces
type Repositories struct {
	User         UserRepository
	Profile      ProfileRepository
	Subscription SubscriptionRepository
	Plan         PlanRepository
	Token        TokenRepository
	OAuthLink    OAuthLinkRepository
}

// NewRepositories creates all repositories
func NewRepositories(db *database.Postgres) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Profile:      NewProfileRepository(db),
		Subscription: NewSubscriptionRepository(db),
		Plan:         NewPlanRepository(db),
		Token:        NewTokenRepository(db),
		OAuthLink:    NewOAuthLinkRepository(db),
	}
}
