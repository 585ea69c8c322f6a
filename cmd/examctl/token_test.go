package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRejectsUnknownRole(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	require.NoError(t, tokenCmd.Flags().Set("email", "new@example.com"))
	require.NoError(t, tokenCmd.Flags().Set("create", "true"))
	require.NoError(t, tokenCmd.Flags().Set("role", "foo"))
	t.Cleanup(func() {
		_ = tokenCmd.Flags().Set("role", "student")
		_ = tokenCmd.Flags().Set("create", "false")
	})

	err := runToken(tokenCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown role "foo"`)
}
