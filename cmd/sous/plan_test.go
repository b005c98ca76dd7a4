package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanCommand_Structure(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "plan", planCmd.Use)

	subcommands := planCmd.Commands()
	names := make([]string, len(subcommands))
	for i, cmd := range subcommands {
		names[i] = cmd.Name()
	}
	for _, exp := range []string{"add", "list", "remove"} {
		assert.Contains(t, names, exp)
	}
}

func TestPlanAddCommand_Flags(t *testing.T) {
	t.Parallel()

	flags := planAddCmd.Flags()

	on := flags.Lookup("on")
	require.NotNil(t, on)
	assert.Equal(t, "today", on.DefValue)

	for _, name := range []string{"slot", "recipe", "title", "servings", "note"} {
		assert.NotNil(t, flags.Lookup(name), "plan add should have --%s", name)
	}
}

func TestResolvePlanRange_Defaults(t *testing.T) {
	reset := setPlanRange("", "")
	defer reset()

	from, to, err := resolvePlanRange()
	require.NoError(t, err)
	assert.NotEmpty(t, from)
	assert.NotEmpty(t, to)
	assert.Less(t, from, to)
}

func TestResolvePlanRange_FromOnly(t *testing.T) {
	reset := setPlanRange("2025-03-10", "")
	defer reset()

	from, to, err := resolvePlanRange()
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", from)
	assert.Equal(t, "2025-03-16", to)
}

func TestResolvePlanRange_Explicit(t *testing.T) {
	reset := setPlanRange("2025-03-01", "2025-03-31")
	defer reset()

	from, to, err := resolvePlanRange()
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01", from)
	assert.Equal(t, "2025-03-31", to)
}

func TestResolvePlanRange_InvalidFrom(t *testing.T) {
	reset := setPlanRange("flurble gribble", "")
	defer reset()

	_, _, err := resolvePlanRange()
	require.Error(t, err)
}

// setPlanRange swaps the plan list range flags and returns a restore func.
func setPlanRange(from, to string) func() {
	prevFrom, prevTo := planFrom, planTo
	planFrom, planTo = from, to
	return func() {
		planFrom, planTo = prevFrom, prevTo
	}
}
