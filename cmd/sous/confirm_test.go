package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfirmDestructive_YesFlagSkipsPrompt(t *testing.T) {
	prev := yesFlag
	yesFlag = true
	defer func() { yesFlag = prev }()

	assert.True(t, confirmDestructive("Remove everything?"))
}
