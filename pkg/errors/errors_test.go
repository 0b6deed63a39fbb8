package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneKeepsCodeForIs(t *testing.T) {
	clone := Clone(ErrAlreadyEnrolled, "already enrolled in CS101")

	assert.True(t, errors.Is(clone, ErrAlreadyEnrolled))
	assert.False(t, errors.Is(clone, ErrPaymentRequired))
	assert.Equal(t, "already enrolled in CS101", clone.Message)
	assert.Equal(t, "already enrolled in this course", ErrAlreadyEnrolled.Message)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	appErr := FromError(fmt.Errorf("boom"))

	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.EqualError(t, appErr, "internal server error: boom")
}

func TestFromErrorUnwrapsWrapped(t *testing.T) {
	wrapped := fmt.Errorf("context: %w", Clone(ErrAuth, "Invalid login credentials"))

	appErr := FromError(wrapped)

	assert.Equal(t, ErrAuth.Code, appErr.Code)
	assert.Equal(t, "Invalid login credentials", appErr.Message)
}
