// Package snapshot defines the synchronizable meal-planning dataset: five
// entity collections tagged with a last-modified timestamp and a format
// version. A snapshot is the unit of comparison and transfer between devices;
// its JSON encoding is the sync payload.
package snapshot

// FormatVersion is the current snapshot wire format version.
const FormatVersion = 1

// Entity identifies one of the snapshot's record collections. Entity names
// are wire-stable: they form the first half of conflict ids.
type Entity string

// Entity kind constants.
const (
	EntityRecipe      Entity = "recipe"
	EntityMealPlan    Entity = "mealPlan"
	EntityIngredient  Entity = "ingredient"
	EntityGroceryList Entity = "groceryList"
	EntityGroceryItem Entity = "groceryItem"
)

// IsValid checks if the entity is a known valid entity kind.
func (e Entity) IsValid() bool {
	switch e {
	case EntityRecipe, EntityMealPlan, EntityIngredient, EntityGroceryList, EntityGroceryItem:
		return true
	default:
		return false
	}
}

// Snapshot is the complete dataset at a point in time. Within each collection
// every record has a unique id. LastModified is Unix milliseconds.
type Snapshot struct {
	Recipes      []Recipe      `json:"recipes"`
	MealPlans    []MealPlan    `json:"mealPlans"`
	Ingredients  []Ingredient  `json:"ingredients"`
	GroceryLists []GroceryList `json:"groceryLists"`
	GroceryItems []GroceryItem `json:"groceryItems"`
	LastModified int64         `json:"lastModified"`
	Version      int           `json:"version"`
}

// New returns an empty snapshot at the current format version.
func New() *Snapshot {
	return &Snapshot{
		Recipes:      []Recipe{},
		MealPlans:    []MealPlan{},
		Ingredients:  []Ingredient{},
		GroceryLists: []GroceryList{},
		GroceryItems: []GroceryItem{},
		Version:      FormatVersion,
	}
}

// Clone returns a deep copy of s. Mutating the copy never affects s.
func (s *Snapshot) Clone() *Snapshot {
	return &Snapshot{
		Recipes:      cloneAll(s.Recipes),
		MealPlans:    cloneAll(s.MealPlans),
		Ingredients:  cloneAll(s.Ingredients),
		GroceryLists: cloneAll(s.GroceryLists),
		GroceryItems: cloneAll(s.GroceryItems),
		LastModified: s.LastModified,
		Version:      s.Version,
	}
}

// Normalize replaces nil collections with empty ones so the JSON encoding
// always carries all five arrays.
func (s *Snapshot) Normalize() {
	if s.Recipes == nil {
		s.Recipes = []Recipe{}
	}
	if s.MealPlans == nil {
		s.MealPlans = []MealPlan{}
	}
	if s.Ingredients == nil {
		s.Ingredients = []Ingredient{}
	}
	if s.GroceryLists == nil {
		s.GroceryLists = []GroceryList{}
	}
	if s.GroceryItems == nil {
		s.GroceryItems = []GroceryItem{}
	}
}

// Stamp marks s as a freshly merged snapshot: a new last-modified timestamp
// and the current format version.
func (s *Snapshot) Stamp(lastModified int64) {
	s.LastModified = lastModified
	s.Version = FormatVersion
}

// IsEmpty reports whether the snapshot contains no records at all.
func (s *Snapshot) IsEmpty() bool {
	return s.RecordCount() == 0
}

// RecordCount returns the total number of records across all collections.
func (s *Snapshot) RecordCount() int {
	return len(s.Recipes) + len(s.MealPlans) + len(s.Ingredients) +
		len(s.GroceryLists) + len(s.GroceryItems)
}

// SameData reports whether two snapshots hold structurally equal record
// collections, ignoring lastModified and version.
func (s *Snapshot) SameData(other *Snapshot) bool {
	return equalAll(s.Recipes, other.Recipes) &&
		equalAll(s.MealPlans, other.MealPlans) &&
		equalAll(s.Ingredients, other.Ingredients) &&
		equalAll(s.GroceryLists, other.GroceryLists) &&
		equalAll(s.GroceryItems, other.GroceryItems)
}

func cloneAll[T Record[T]](records []T) []T {
	if records == nil {
		return nil
	}
	out := make([]T, 0, len(records))
	for _, r := range records {
		out = append(out, r.Clone())
	}
	return out
}

func equalAll[T Record[T]](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
