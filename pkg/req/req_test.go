package req

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Token string `json:"stripe_token" validate:"required,max=5"`
	Plan  string `json:"plan" validate:"required"`
	Flag  *bool  `json:"flag"`
}

func TestDecode(t *testing.T) {
	p, err := Decode[payload](io.NopCloser(strings.NewReader(`{"stripe_token":"tok","plan":"gold","flag":false}`)))
	require.NoError(t, err)
	assert.Equal(t, "tok", p.Token)
	require.NotNil(t, p.Flag)
	assert.False(t, *p.Flag)

	_, err = Decode[payload](io.NopCloser(strings.NewReader(`{not json`)))
	assert.Error(t, err)

	_, err = Decode[payload](nil)
	assert.ErrorIs(t, err, io.EOF)
}

func TestIsValidAndDetails(t *testing.T) {
	assert.NoError(t, IsValid(payload{Token: "tok", Plan: "gold"}))

	err := IsValid(payload{Token: "too-long-token"})
	require.Error(t, err)

	details := ValidationDetails(err)
	assert.Equal(t, []string{"Ensure this field has no more than 5 characters."}, details["stripe_token"])
	assert.Equal(t, []string{"This field is required."}, details["plan"])
	assert.NotContains(t, details, "flag")
}

func TestValidationDetailsIgnoresOtherErrors(t *testing.T) {
	assert.Nil(t, ValidationDetails(io.EOF))
}
