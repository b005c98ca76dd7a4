package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/felixgeelhaar/sous/internal/adapters/sqlite"
	"github.com/felixgeelhaar/sous/internal/domain/snapshot"
)

// Grocery errors.
var (
	ErrUnknownList = errors.New("grocery list not found")
	ErrUnknownItem = errors.New("grocery item not found")
	ErrEmptyRange  = errors.New("no planned meals with recipes in the given range")
)

// Grocery builds and manages shopping lists derived from the meal plan.
type Grocery struct {
	store *sqlite.Store
	now   func() time.Time
	newID func() string
}

// GroceryOption configures a Grocery service.
type GroceryOption func(*Grocery)

// WithGroceryClock overrides the clock, for tests.
func WithGroceryClock(now func() time.Time) GroceryOption {
	return func(g *Grocery) {
		g.now = now
	}
}

// WithGroceryIDs overrides id generation, for tests.
func WithGroceryIDs(newID func() string) GroceryOption {
	return func(g *Grocery) {
		g.newID = newID
	}
}

// NewGrocery creates a Grocery service backed by the local store.
func NewGrocery(store *sqlite.Store, opts ...GroceryOption) *Grocery {
	g := &Grocery{
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate aggregates the ingredients of every recipe planned in the
// inclusive date range [from, to] into a new grocery list. Quantities are
// scaled by planned servings over recipe servings and merged per ingredient
// name and unit. Plan entries without a recipe (eating out, leftovers) are
// skipped.
func (g *Grocery) Generate(ctx context.Context, from, to, name string) (snapshot.GroceryList, []snapshot.GroceryItem, error) {
	for _, date := range []string{from, to} {
		if _, err := time.Parse(snapshot.DateLayout, date); err != nil {
			return snapshot.GroceryList{}, nil, fmt.Errorf("%w: %q", ErrInvalidDate, date)
		}
	}

	plans, err := g.store.ListMealPlans(ctx, from, to)
	if err != nil {
		return snapshot.GroceryList{}, nil, err
	}

	type aggregate struct {
		name     string
		quantity float64
		unit     string
	}
	totals := map[string]*aggregate{}

	planned := 0
	for _, plan := range plans {
		if plan.RecipeID == "" {
			continue
		}

		recipe, err := g.store.GetRecipe(ctx, plan.RecipeID)
		if err != nil {
			if errors.Is(err, sqlite.ErrNotFound) {
				continue // plan references a recipe deleted on another device
			}
			return snapshot.GroceryList{}, nil, err
		}
		planned++

		ratio := 1.0
		if recipe.Servings > 0 && plan.Servings > 0 {
			ratio = float64(plan.Servings) / float64(recipe.Servings)
		}

		ingredients, err := g.store.ListIngredients(ctx, recipe.ID)
		if err != nil {
			return snapshot.GroceryList{}, nil, err
		}
		for _, ing := range ingredients {
			key := strings.ToLower(ing.Name) + "|" + strings.ToLower(ing.Unit)
			if agg, ok := totals[key]; ok {
				agg.quantity += ing.Quantity * ratio
				continue
			}
			totals[key] = &aggregate{
				name:     ing.Name,
				quantity: ing.Quantity * ratio,
				unit:     ing.Unit,
			}
		}
	}

	if planned == 0 {
		return snapshot.GroceryList{}, nil, ErrEmptyRange
	}

	if name == "" {
		name = fmt.Sprintf("Groceries %s to %s", from, to)
	}
	list := snapshot.GroceryList{
		ID:    g.newID(),
		Name:  name,
		Range: snapshot.DateRange{Start: from, End: to},
	}

	caser := cases.Title(language.English)
	items := make([]snapshot.GroceryItem, 0, len(totals))
	for _, agg := range totals {
		items = append(items, snapshot.GroceryItem{
			ID:       g.newID(),
			ListID:   list.ID,
			Name:     caser.String(strings.ToLower(agg.name)),
			Quantity: agg.quantity,
			Unit:     agg.unit,
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	for i := range items {
		items[i].SortOrder = i + 1
	}

	if err := g.store.PutGroceryList(ctx, list); err != nil {
		return snapshot.GroceryList{}, nil, err
	}
	if err := g.store.PutGroceryItems(ctx, items); err != nil {
		return snapshot.GroceryList{}, nil, err
	}
	return list, items, g.touch(ctx)
}

// Lists returns all grocery lists.
func (g *Grocery) Lists(ctx context.Context) ([]snapshot.GroceryList, error) {
	return g.store.ListGroceryLists(ctx)
}

// Items returns one list's items in shopping order.
func (g *Grocery) Items(ctx context.Context, listID string) (snapshot.GroceryList, []snapshot.GroceryItem, error) {
	list, err := g.store.GetGroceryList(ctx, listID)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return snapshot.GroceryList{}, nil, fmt.Errorf("%w: %s", ErrUnknownList, listID)
		}
		return snapshot.GroceryList{}, nil, err
	}

	items, err := g.store.ListGroceryItems(ctx, listID)
	if err != nil {
		return snapshot.GroceryList{}, nil, err
	}
	return list, items, nil
}

// Check marks an item as bought (or not).
func (g *Grocery) Check(ctx context.Context, itemID string, checked bool) (snapshot.GroceryItem, error) {
	item, err := g.store.GetGroceryItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return snapshot.GroceryItem{}, fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
		}
		return snapshot.GroceryItem{}, err
	}

	item.Checked = checked
	if err := g.store.PutGroceryItem(ctx, item); err != nil {
		return snapshot.GroceryItem{}, err
	}
	return item, g.touch(ctx)
}

// RemoveList deletes a grocery list and its items.
func (g *Grocery) RemoveList(ctx context.Context, listID string) error {
	if err := g.store.DeleteGroceryList(ctx, listID); err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrUnknownList, listID)
		}
		return err
	}
	return g.touch(ctx)
}

// touch bumps the working snapshot's last-modified stamp.
func (g *Grocery) touch(ctx context.Context) error {
	return g.store.SetLastModified(ctx, g.now().UnixMilli())
}
