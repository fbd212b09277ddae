package validator

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "usermgmt/internal/domain/errors"
)

type sampleRequest struct {
	Name  string  `json:"name" validate:"required,min=1"`
	Email string  `json:"email" validate:"required,email"`
	Nick  *string `json:"nick,omitempty" validate:"omitempty,min=2"`
}

func TestCustomValidator_Validate(t *testing.T) {
	v := New()

	assert.NoError(t, v.Validate(&sampleRequest{Name: "Ann", Email: "ann@example.com"}))

	err := v.Validate(&sampleRequest{Email: "not-an-email"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrValidationFailed))

	appErr, ok := domainerrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "VALIDATION_FAILED", appErr.ErrorCode())
	assert.Contains(t, appErr.Details(), "name is required")
	assert.Contains(t, appErr.Details(), "email must be a valid email address")

	short := "x"
	err = v.Validate(&sampleRequest{Name: "Ann", Email: "ann@example.com", Nick: &short})
	appErr, ok = domainerrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "nick must be at least 2 characters", appErr.Details())
}
