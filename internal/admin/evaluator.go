// Package admin decides administrative privilege from identity signals that
// do not always agree with each other.
package admin

import (
	"strings"

	"github.com/prperemyshlev/access-service/internal/domain"
)

// Status is a tri-state admin flag; StatusUnknown is not the same as "not admin"
type Status int8

const (
	StatusUnknown Status = iota
	StatusNotAdmin
	StatusAdmin
)

// Signals is everything the evaluator may look at for one user
type Signals struct {
	Identity  domain.Identity
	Cached    Status
	LastKnown Status
}

// Checker inspects one signal. decided is false when the signal has nothing to say.
type Checker struct {
	Name  string
	Check func(Signals) (isAdmin, decided bool)
}

// Evaluator runs checkers in priority order and stops at the first positive answer
type Evaluator struct {
	checkers []Checker
}

// NewEvaluator builds the default priority list: identity claims, persisted
// cache, in-session memory, then the email allow-list.
func NewEvaluator(allowList []string) *Evaluator {
	emails := make(map[string]struct{}, len(allowList))
	for _, email := range allowList {
		email = normalizeEmail(email)
		if email != "" {
			emails[email] = struct{}{}
		}
	}

	return NewEvaluatorWithCheckers(
		Checker{Name: "claims", Check: claimsChecker},
		Checker{Name: "cache", Check: statusChecker(func(s Signals) Status { return s.Cached })},
		Checker{Name: "last_known", Check: statusChecker(func(s Signals) Status { return s.LastKnown })},
		Checker{Name: "allow_list", Check: allowListChecker(emails)},
	)
}

// NewEvaluatorWithCheckers builds an evaluator over an explicit priority list
func NewEvaluatorWithCheckers(checkers ...Checker) *Evaluator {
	return &Evaluator{checkers: checkers}
}

// Evaluate returns true as soon as any checker reports admin.
// It has no side effects; callers persist positive results themselves.
func (e *Evaluator) Evaluate(identity domain.Identity, cached, lastKnown Status) bool {
	_, ok := e.Explain(Signals{Identity: identity, Cached: cached, LastKnown: lastKnown})
	return ok
}

// Explain is Evaluate that also names the checker that decided
func (e *Evaluator) Explain(signals Signals) (string, bool) {
	for _, c := range e.checkers {
		if isAdmin, decided := c.Check(signals); decided && isAdmin {
			return c.Name, true
		}
	}
	return "", false
}

func claimsChecker(s Signals) (bool, bool) {
	id := s.Identity
	if strings.EqualFold(id.MetadataString("role"), "admin") {
		return true, true
	}
	if id.MetadataBool("is_admin") || id.MetadataBool("admin") {
		return true, true
	}
	return false, false
}

func statusChecker(pick func(Signals) Status) func(Signals) (bool, bool) {
	return func(s Signals) (bool, bool) {
		switch pick(s) {
		case StatusAdmin:
			return true, true
		case StatusNotAdmin:
			return false, true
		}
		return false, false
	}
}

func allowListChecker(emails map[string]struct{}) func(Signals) (bool, bool) {
	return func(s Signals) (bool, bool) {
		if len(emails) == 0 || s.Identity.Email == "" {
			return false, false
		}
		_, ok := emails[normalizeEmail(s.Identity.Email)]
		return ok, ok
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
