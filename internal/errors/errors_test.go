package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/victornm/bananaquiz/internal/errors"
)

func TestError_Is(t *testing.T) {
	err := errors.From(errors.ErrRoomFull, errors.WithMessagef("room is full: room=%s", "r1"))
	wrapped := fmt.Errorf("join: %w", err)

	assert.ErrorIs(t, wrapped, errors.ErrRoomFull)
	assert.NotErrorIs(t, wrapped, errors.ErrAlreadyJoined)
	assert.Equal(t, "room is full: room=r1", errors.Convert(wrapped).Message)
	assert.Equal(t, "room is full", errors.ErrRoomFull.Message, "sentinel must not be mutated")
}

func TestError_Status(t *testing.T) {
	err := errors.From(errors.ErrRoomNotFound)

	assert.Equal(t, http.StatusNotFound, err.HTTPStatusCode())
	assert.Equal(t, codes.NotFound, status.Convert(err).Code())
}

func TestConvert_Internal(t *testing.T) {
	e := errors.Convert(stderrors.New("boom"))

	assert.Equal(t, errors.CodeInternal, e.Code)
	assert.Equal(t, http.StatusInternalServerError, e.HTTPStatusCode())
}
