package dto

// SignUpRequest represents a sign-up request
type SignUpRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Nome     string `json:"nome" binding:"omitempty,max=120"`
}

// SignInRequest represents a password sign-in request
type SignInRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// PreferencesRequest replaces both preference flags
type PreferencesRequest struct {
	FirstVisitDone *bool `json:"first_visit_done" binding:"required"`
	PopupSilenced  *bool `json:"popup_silenced" binding:"required"`
}
