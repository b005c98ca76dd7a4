// Package recipefile reads and writes single recipes as TOML files, the
// format used by `sous recipe export` and `sous recipe import`. Exported
// files carry no record ids, so importing one always creates a new recipe.
package recipefile

import (
	"errors"
	"fmt"

	"github.com/pelletier/go-toml/v2"

	"github.com/felixgeelhaar/sous/internal/domain/snapshot"
)

// Decode errors.
var (
	// ErrMissingName is returned when a recipe file has no recipe name.
	ErrMissingName = errors.New("recipe file is missing the recipe name")
)

// File is the on-disk shape of an exported recipe.
type File struct {
	Recipe      Recipe       `toml:"recipe"`
	Ingredients []Ingredient `toml:"ingredients,omitempty"`
}

// Recipe is the [recipe] table of a recipe file.
type Recipe struct {
	Name         string   `toml:"name"`
	Description  string   `toml:"description,omitempty"`
	Servings     int      `toml:"servings,omitempty"`
	PrepMinutes  int      `toml:"prep_minutes,omitempty"`
	CookMinutes  int      `toml:"cook_minutes,omitempty"`
	Instructions []string `toml:"instructions,omitempty"`
	Tags         []string `toml:"tags,omitempty"`
}

// Ingredient is one [[ingredients]] entry of a recipe file.
type Ingredient struct {
	Name     string  `toml:"name"`
	Quantity float64 `toml:"quantity,omitempty"`
	Unit     string  `toml:"unit,omitempty"`
	Note     string  `toml:"note,omitempty"`
	Optional bool    `toml:"optional,omitempty"`
}

// Encode renders a recipe and its ingredients as a TOML document.
func Encode(recipe snapshot.Recipe, ingredients []snapshot.Ingredient) ([]byte, error) {
	file := File{
		Recipe: Recipe{
			Name:         recipe.Name,
			Description:  recipe.Description,
			Servings:     recipe.Servings,
			PrepMinutes:  recipe.PrepMinutes,
			CookMinutes:  recipe.CookMinutes,
			Instructions: recipe.Instructions,
			Tags:         recipe.Tags,
		},
	}
	for _, ing := range ingredients {
		file.Ingredients = append(file.Ingredients, Ingredient{
			Name:     ing.Name,
			Quantity: ing.Quantity,
			Unit:     ing.Unit,
			Note:     ing.Note,
			Optional: ing.Optional,
		})
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return nil, fmt.Errorf("failed to encode recipe file: %w", err)
	}
	return data, nil
}

// Decode parses a TOML recipe file.
func Decode(data []byte) (*File, error) {
	var file File
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse recipe file: %w", err)
	}
	if file.Recipe.Name == "" {
		return nil, ErrMissingName
	}
	for i, ing := range file.Ingredients {
		if ing.Name == "" {
			return nil, fmt.Errorf("ingredient %d is missing a name", i+1)
		}
	}
	return &file, nil
}
