package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The flag maps are package globals, so the command tree is built once and
// the cases run sequentially.
func TestRootCommand(t *testing.T) {
	root := newRootCommand()

	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "migrate", "admin"})

	migrate, _, err := root.Find([]string{"migrate", "force"})
	require.NoError(t, err)
	assert.Equal(t, "force", migrate.Name())

	t.Run("force_rejects_non_numeric_version", func(t *testing.T) {
		root.SetArgs([]string{"migrate", "force", "three"})
		err := root.Execute()
		require.Error(t, err)
		assert.Contains(t, err.Error(), `invalid version "three"`)
	})

	t.Run("admin_create_requires_flags", func(t *testing.T) {
		root.SetArgs([]string{"admin", "create", "--email", "ops@minmin.app"})
		err := root.Execute()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "are required")
	})
}
