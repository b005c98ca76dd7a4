package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMCPCommand_Structure(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "mcp", mcpCmd.Use)
	require.NotNil(t, mcpCmd.RunE)

	flag := mcpCmd.Flags().Lookup("http")
	require.NotNil(t, flag)
	assert.Empty(t, flag.DefValue)
}
