package apperr

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
		{"nil", nil, ""},
		{"classified", New(KindValidation, "bad"), KindValidation},
		{"wrapped classified", fmt.Errorf("outer: %w", New(KindConflict, "taken")), KindConflict},
		{"sentinel not found", fmt.Errorf("get: %w", ErrNotFound), KindNotFound},
		{"sentinel invalid state", ErrInvalidState, KindInvalidState},
		{"sentinel unavailable", ErrUnavailable, KindUnavailable},
		{"plain", errors.New("boom"), KindInternal},
		{"wrap keeps outer kind", Wrap(ErrNotFound, KindValidation, "unknown item"), KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, KindInternal, "nothing"))
}

func TestWrapUnwrapsToSentinel(t *testing.T) {
	err := Wrap(ErrConflict, KindValidation, "duplicate")
	assert.True(t, errors.Is(err, ErrConflict))
	assert.True(t, HasKind(err, KindValidation))
	assert.False(t, HasKind(err, KindConflict))
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "already decided", Message(New(KindInvalidState, "already decided")))
	assert.Equal(t, "internal error", Message(errors.New("pq: connection reset")))
	assert.Equal(t, "internal error", Message(Wrap(errors.New("x"), KindInternal, "secret detail")))
	assert.Equal(t, "not found", Message(ErrNotFound))
}
