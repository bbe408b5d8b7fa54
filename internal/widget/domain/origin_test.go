package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeOrigins(t *testing.T) {
	got, err := NormalizeOrigins([]string{" https://A.com/x ", "", "http://b.com:8080", "https://a.com", "*"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.com", "http://b.com:8080", "*"}, got)

	_, err = NormalizeOrigins([]string{"ftp://files.example.com"})
	assert.ErrorIs(t, err, ErrInvalidOrigin)
}

func TestOriginAllowedWildcard(t *testing.T) {
	r := Resolved{AllowedOrigins: []string{"*"}}
	assert.True(t, r.OriginAllowed("https://anything.example"))
}
