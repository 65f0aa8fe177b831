package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type feedbackPayload struct {
	Feedback int16 `validate:"required,oneof=1 -1"`
}

func TestValidate(t *testing.T) {
	_, err := Validate(feedbackPayload{Feedback: 1})
	assert.NoError(t, err)

	_, err = Validate(feedbackPayload{Feedback: -1})
	assert.NoError(t, err)

	_, err = Validate(feedbackPayload{Feedback: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oneof")

	_, err = Validate(feedbackPayload{})
	assert.Error(t, err)
}

func TestValidateValue(t *testing.T) {
	assert.NoError(t, ValidateValue("a@b.com", "email"))
	assert.Error(t, ValidateValue("not-an-email", "email"))
}
