// Package tui implements the interactive terminal surfaces, currently the
// side-by-side conflict resolver behind `sous sync resolve`.
package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/felixgeelhaar/sous/internal/domain/sync"
)

// ResolverResult holds the outcome of an interactive resolution session.
type ResolverResult struct {
	// Resolutions maps conflict ids to the chosen side. Complete unless
	// Cancelled is set.
	Resolutions map[string]sync.Resolution
	// Cancelled reports that the user backed out without deciding.
	Cancelled bool
}

// RunConflictResolver walks the user through the given conflicts and returns
// one resolution per conflict, or Cancelled if the user quit early.
func RunConflictResolver(ctx context.Context, conflicts []sync.Conflict) (*ResolverResult, error) {
	if len(conflicts) == 0 {
		return &ResolverResult{Resolutions: map[string]sync.Resolution{}}, nil
	}

	model := newResolverModel(conflicts)
	p := tea.NewProgram(model, tea.WithContext(ctx))
	finalModel, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("conflict resolver failed: %w", err)
	}

	m, ok := finalModel.(resolverModel)
	if !ok {
		return nil, fmt.Errorf("unexpected model type")
	}
	if m.cancelled {
		return &ResolverResult{Cancelled: true}, nil
	}

	resolutions := make(map[string]sync.Resolution, len(m.conflicts))
	for i, conflict := range m.conflicts {
		switch m.choices[i] {
		case choiceLocal:
			resolutions[conflict.ID()] = sync.ChooseLocal
		case choiceRemote:
			resolutions[conflict.ID()] = sync.ChooseRemote
		}
	}
	return &ResolverResult{Resolutions: resolutions}, nil
}
