package snapshot

import "slices"

// Record is implemented by every entity type stored in a snapshot. Key returns
// the stable record id, Equal reports full structural equality (never identity),
// and Clone returns an independent copy safe to mutate.
type Record[T any] interface {
	Key() string
	Equal(other T) bool
	Clone() T
}

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Slot names the meal slot a plan entry occupies.
type Slot string

// Meal slot constants.
const (
	SlotBreakfast Slot = "breakfast"
	SlotLunch     Slot = "lunch"
	SlotDinner    Slot = "dinner"
	SlotSnack     Slot = "snack"
)

// IsValid checks if the slot is a known valid slot.
func (s Slot) IsValid() bool {
	switch s {
	case SlotBreakfast, SlotLunch, SlotDinner, SlotSnack:
		return true
	default:
		return false
	}
}

// DateRange bounds a grocery list to the planned days it was generated from.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Recipe is a dish the user can schedule and shop for.
type Recipe struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Servings     int      `json:"servings"`
	PrepMinutes  int      `json:"prepMinutes"`
	CookMinutes  int      `json:"cookMinutes"`
	Instructions []string `json:"instructions,omitempty"`
	Tags         []string `json:"tags,omitempty"`
}

// Key returns the recipe id.
func (r Recipe) Key() string { return r.ID }

// Equal reports whether r and other match field for field.
func (r Recipe) Equal(other Recipe) bool {
	return r.ID == other.ID &&
		r.Name == other.Name &&
		r.Description == other.Description &&
		r.Servings == other.Servings &&
		r.PrepMinutes == other.PrepMinutes &&
		r.CookMinutes == other.CookMinutes &&
		slices.Equal(r.Instructions, other.Instructions) &&
		slices.Equal(r.Tags, other.Tags)
}

// Clone returns a copy whose slices are independent of r.
func (r Recipe) Clone() Recipe {
	out := r
	out.Instructions = slices.Clone(r.Instructions)
	out.Tags = slices.Clone(r.Tags)
	return out
}

// Ingredient is one line of a recipe's ingredient list.
type Ingredient struct {
	ID       string  `json:"id"`
	RecipeID string  `json:"recipeId"`
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit,omitempty"`
	Note     string  `json:"note,omitempty"`
	Optional bool    `json:"optional,omitempty"`
}

// Key returns the ingredient id.
func (i Ingredient) Key() string { return i.ID }

// Equal reports whether i and other match field for field.
func (i Ingredient) Equal(other Ingredient) bool {
	return i == other
}

// Clone returns a copy of i.
func (i Ingredient) Clone() Ingredient { return i }

// MealPlan schedules a recipe (or a custom entry) onto a calendar day and slot.
type MealPlan struct {
	ID       string `json:"id"`
	Date     string `json:"date"`
	Slot     Slot   `json:"slot"`
	RecipeID string `json:"recipeId,omitempty"`
	Title    string `json:"title,omitempty"`
	Servings int    `json:"servings"`
	Note     string `json:"note,omitempty"`
}

// Key returns the meal plan id.
func (m MealPlan) Key() string { return m.ID }

// Equal reports whether m and other match field for field.
func (m MealPlan) Equal(other MealPlan) bool {
	return m == other
}

// Clone returns a copy of m.
func (m MealPlan) Clone() MealPlan { return m }

// GroceryList groups grocery items generated for a date range.
type GroceryList struct {
	ID    string    `json:"id"`
	Name  string    `json:"name"`
	Range DateRange `json:"range"`
	Note  string    `json:"note,omitempty"`
}

// Key returns the grocery list id.
func (g GroceryList) Key() string { return g.ID }

// Equal reports whether g and other match field for field, including the
// nested date range.
func (g GroceryList) Equal(other GroceryList) bool {
	return g == other
}

// Clone returns a copy of g.
func (g GroceryList) Clone() GroceryList { return g }

// GroceryItem is one purchasable line of a grocery list.
type GroceryItem struct {
	ID        string  `json:"id"`
	ListID    string  `json:"listId"`
	Name      string  `json:"name"`
	Quantity  float64 `json:"quantity"`
	Unit      string  `json:"unit,omitempty"`
	Category  string  `json:"category,omitempty"`
	Checked   bool    `json:"checked"`
	SortOrder int     `json:"sortOrder"`
}

// Key returns the grocery item id.
func (g GroceryItem) Key() string { return g.ID }

// Equal reports whether g and other match field for field.
func (g GroceryItem) Equal(other GroceryItem) bool {
	return g == other
}

// Clone returns a copy of g.
func (g GroceryItem) Clone() GroceryItem { return g }

var (
	_ Record[Recipe]      = Recipe{}
	_ Record[Ingredient]  = Ingredient{}
	_ Record[MealPlan]    = MealPlan{}
	_ Record[GroceryList] = GroceryList{}
	_ Record[GroceryItem] = GroceryItem{}
)
