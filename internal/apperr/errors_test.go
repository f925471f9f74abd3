package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind(t *testing.T) {
	assert.Equal(t, ErrNotFound, Kind(NotFound("task %s", "t1")))
	assert.Equal(t, ErrConflict, Kind(fmt.Errorf("wrapped: %w", Conflict("dup"))))
	assert.Equal(t, ErrExternalIntegration, Kind(External(errors.New("boom"), "calendar delete")))
	assert.Nil(t, Kind(errors.New("db down")))
}

func TestMessages(t *testing.T) {
	err := Conflict("cannot shrink period: tasks exist outside the new range")
	assert.EqualError(t, err, "conflict: cannot shrink period: tasks exist outside the new range")
}
