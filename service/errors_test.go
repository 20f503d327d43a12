package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"validation", Validation("bad %s", "input"), KindValidation},
		{"wrapped", fmt.Errorf("outer: %w", NotFound("missing")), KindNotFound},
		{"plain", errors.New("boom"), KindServer},
		{"conflict", Conflict("dup"), KindConflict},
		{"in use", InUse("used"), KindInUse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "bad input", Validation("bad %s", "input").Error())
	assert.True(t, IsKind(Forbidden("no"), KindForbidden))
	assert.False(t, IsKind(nil, KindServer))
}
