package admin

import (
	"testing"

	"github.com/prperemyshlev/access-service/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestEvaluate_Signals(t *testing.T) {
	e := NewEvaluator([]string{" Owner@Example.com ", ""})

	tests := []struct {
		name      string
		identity  domain.Identity
		cached    Status
		lastKnown Status
		want      bool
	}{
		{
			name:     "role claim",
			identity: domain.Identity{ID: "u1", Metadata: map[string]any{"role": "Admin"}},
			want:     true,
		},
		{
			name:     "boolean claim",
			identity: domain.Identity{ID: "u1", Metadata: map[string]any{"is_admin": true}},
			want:     true,
		},
		{
			name:     "string boolean claim",
			identity: domain.Identity{ID: "u1", Metadata: map[string]any{"admin": "true"}},
			want:     true,
		},
		{
			name:     "cached admin",
			identity: domain.Identity{ID: "u1"},
			cached:   StatusAdmin,
			want:     true,
		},
		{
			name:      "last known admin survives cached negative",
			identity:  domain.Identity{ID: "u1"},
			cached:    StatusNotAdmin,
			lastKnown: StatusAdmin,
			want:      true,
		},
		{
			name:     "allow-listed email is case insensitive",
			identity: domain.Identity{ID: "u1", Email: "OWNER@example.com"},
			cached:   StatusNotAdmin,
			want:     true,
		},
		{
			name:     "no signal",
			identity: domain.Identity{ID: "u1", Email: "someone@example.com", Metadata: map[string]any{"role": "member"}},
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Evaluate(tt.identity, tt.cached, tt.lastKnown))
		})
	}
}

func TestExplain_StopsAtFirstPositive(t *testing.T) {
	var calls []string
	record := func(name string, answer bool) Checker {
		return Checker{Name: name, Check: func(Signals) (bool, bool) {
			calls = append(calls, name)
			return answer, true
		}}
	}

	e := NewEvaluatorWithCheckers(record("first", false), record("second", true), record("third", true))

	name, ok := e.Explain(Signals{})

	assert.True(t, ok)
	assert.Equal(t, "second", name)
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestExplain_ReportsClaimsFirst(t *testing.T) {
	e := NewEvaluator([]string{"owner@example.com"})

	name, ok := e.Explain(Signals{
		Identity: domain.Identity{Email: "owner@example.com", Metadata: map[string]any{"role": "admin"}},
		Cached:   StatusAdmin,
	})

	assert.True(t, ok)
	assert.Equal(t, "claims", name)
}

func TestLastKnown(t *testing.T) {
	l := NewLastKnown()
	assert.Equal(t, StatusUnknown, l.Status("u1"))

	l.MarkAdmin("u1")
	assert.Equal(t, StatusAdmin, l.Status("u1"))
	assert.Equal(t, StatusUnknown, l.Status("u2"))

	l.Forget("u1")
	assert.Equal(t, StatusUnknown, l.Status("u1"))
}
