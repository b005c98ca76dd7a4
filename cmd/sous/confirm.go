package main

import "github.com/charmbracelet/huh"

// confirmDestructive asks before a destructive action. --yes skips the
// prompt; a failed prompt (no TTY, ctrl-c) counts as no.
func confirmDestructive(title string) bool {
	if yesFlag {
		return true
	}
	ok := false
	err := huh.NewConfirm().
		Title(title).
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run()
	if err != nil {
		return false
	}
	return ok
}
