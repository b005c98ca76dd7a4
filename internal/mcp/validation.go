// Package mcp provides MCP (Model Context Protocol) server implementation for sous.
package mcp

import (
	"fmt"

	"github.com/felixgeelhaar/sous/internal/validation"
)

// ValidateListRecipesInput validates ListRecipesInput fields.
func ValidateListRecipesInput(in *ListRecipesInput) error {
	if in.Query != "" {
		if err := validation.ValidateName(in.Query); err != nil {
			return fmt.Errorf("invalid query: %w", err)
		}
	}
	if in.Tag != "" {
		if err := validation.ValidateName(in.Tag); err != nil {
			return fmt.Errorf("invalid tag: %w", err)
		}
	}
	if in.Limit < 0 || in.Limit > 500 {
		return fmt.Errorf("invalid limit: %d is out of range (0-500)", in.Limit)
	}
	return nil
}

// ValidateGetRecipeInput validates GetRecipeInput fields.
func ValidateGetRecipeInput(in *GetRecipeInput) error {
	if err := validation.ValidateID(in.RecipeID); err != nil {
		return fmt.Errorf("invalid recipe_id: %w", err)
	}
	return nil
}

// ValidateWeekPlanInput validates WeekPlanInput fields.
func ValidateWeekPlanInput(in *WeekPlanInput) error {
	if in.From != "" {
		if err := validation.ValidateDate(in.From); err != nil {
			return fmt.Errorf("invalid from: %w", err)
		}
	}
	if in.To != "" {
		if err := validation.ValidateDate(in.To); err != nil {
			return fmt.Errorf("invalid to: %w", err)
		}
	}
	return nil
}

// ValidateGroceryListInput validates GroceryListInput fields.
func ValidateGroceryListInput(in *GroceryListInput) error {
	if in.ListID != "" {
		if err := validation.ValidateID(in.ListID); err != nil {
			return fmt.Errorf("invalid list_id: %w", err)
		}
	}
	return nil
}

// ValidateScheduleMealInput validates ScheduleMealInput fields.
func ValidateScheduleMealInput(in *ScheduleMealInput) error {
	if err := validation.ValidateDate(in.Date); err != nil {
		return fmt.Errorf("invalid date: %w", err)
	}
	if err := validation.ValidateSlot(in.Slot); err != nil {
		return fmt.Errorf("invalid slot: %w", err)
	}
	if in.RecipeID != "" {
		if err := validation.ValidateID(in.RecipeID); err != nil {
			return fmt.Errorf("invalid recipe_id: %w", err)
		}
	}
	if in.Title != "" {
		if err := validation.ValidateName(in.Title); err != nil {
			return fmt.Errorf("invalid title: %w", err)
		}
	}
	if err := validation.ValidateServings(in.Servings); err != nil {
		return fmt.Errorf("invalid servings: %w", err)
	}
	return nil
}

// ValidateGenerateGroceriesInput validates GenerateGroceriesInput fields.
func ValidateGenerateGroceriesInput(in *GenerateGroceriesInput) error {
	if err := validation.ValidateDate(in.From); err != nil {
		return fmt.Errorf("invalid from: %w", err)
	}
	if err := validation.ValidateDate(in.To); err != nil {
		return fmt.Errorf("invalid to: %w", err)
	}
	if in.Name != "" {
		if err := validation.ValidateName(in.Name); err != nil {
			return fmt.Errorf("invalid name: %w", err)
		}
	}
	return nil
}
