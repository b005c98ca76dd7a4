// Package mcp provides MCP (Model Context Protocol) server implementation for sous.
package mcp

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/sous/internal/app"
	"github.com/felixgeelhaar/sous/internal/domain/snapshot"
)

// ListRecipesInput is the input for the sous_list_recipes tool.
type ListRecipesInput struct {
	Query string `json:"query,omitempty" jsonschema:"description=Filter recipes by name substring (case-insensitive)"`
	Tag   string `json:"tag,omitempty" jsonschema:"description=Only recipes carrying this tag"`
	Limit int    `json:"limit,omitempty" jsonschema:"description=Maximum number of recipes to return (default: all)"`
}

// ListRecipesOutput is the output for the sous_list_recipes tool.
type ListRecipesOutput struct {
	Recipes []RecipeSummary `json:"recipes"`
	Total   int             `json:"total"`
}

// RecipeSummary is one recipe in a listing.
type RecipeSummary struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Servings    int      `json:"servings"`
	TotalTime   string   `json:"total_time,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// GetRecipeInput is the input for the sous_get_recipe tool.
type GetRecipeInput struct {
	RecipeID string `json:"recipe_id" jsonschema:"required,description=Recipe id from sous_list_recipes"`
}

// GetRecipeOutput is the output for the sous_get_recipe tool.
type GetRecipeOutput struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Description  string           `json:"description,omitempty"`
	Servings     int              `json:"servings"`
	PrepMinutes  int              `json:"prep_minutes,omitempty"`
	CookMinutes  int              `json:"cook_minutes,omitempty"`
	Instructions []string         `json:"instructions,omitempty"`
	Tags         []string         `json:"tags,omitempty"`
	Ingredients  []IngredientLine `json:"ingredients"`
}

// IngredientLine is one ingredient of a recipe.
type IngredientLine struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit,omitempty"`
	Note     string  `json:"note,omitempty"`
	Optional bool    `json:"optional,omitempty"`
}

// WeekPlanInput is the input for the sous_week_plan tool.
type WeekPlanInput struct {
	From string `json:"from,omitempty" jsonschema:"description=Start date YYYY-MM-DD (default: today)"`
	To   string `json:"to,omitempty" jsonschema:"description=End date YYYY-MM-DD inclusive (default: six days after from)"`
}

// WeekPlanOutput is the output for the sous_week_plan tool.
type WeekPlanOutput struct {
	From  string        `json:"from"`
	To    string        `json:"to"`
	Meals []PlannedMeal `json:"meals"`
}

// PlannedMeal is one scheduled meal.
type PlannedMeal struct {
	PlanID     string `json:"plan_id"`
	Date       string `json:"date"`
	Slot       string `json:"slot"`
	Title      string `json:"title"`
	RecipeID   string `json:"recipe_id,omitempty"`
	RecipeName string `json:"recipe_name,omitempty"`
	Servings   int    `json:"servings"`
	Note       string `json:"note,omitempty"`
}

// GroceryListInput is the input for the sous_grocery_list tool.
type GroceryListInput struct {
	ListID string `json:"list_id,omitempty" jsonschema:"description=Grocery list id (default: the most recent list)"`
}

// GroceryListOutput is the output for the sous_grocery_list tool.
type GroceryListOutput struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	From      string        `json:"from"`
	To        string        `json:"to"`
	Items     []GroceryLine `json:"items"`
	Remaining int           `json:"remaining"`
}

// GroceryLine is one purchasable line of a grocery list.
type GroceryLine struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit,omitempty"`
	Checked  bool    `json:"checked"`
}

// SyncStatusInput is the input for the sous_sync_status tool.
type SyncStatusInput struct{}

// SyncStatusOutput is the output for the sous_sync_status tool.
type SyncStatusOutput struct {
	Version       string            `json:"version"`
	DeviceID      string            `json:"device_id"`
	State         string            `json:"state"`
	RecordCount   int               `json:"record_count"`
	LocalChanges  ChangeSummary     `json:"local_changes"`
	RemoteChanges ChangeSummary     `json:"remote_changes"`
	Conflicts     []ConflictSummary `json:"conflicts,omitempty"`
}

// ChangeSummary counts record-level changes since the last sync.
type ChangeSummary struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
}

// ConflictSummary describes one conflict a sync would stop on.
type ConflictSummary struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	Entity   string `json:"entity"`
	EntityID string `json:"entity_id"`
}

// ScheduleMealInput is the input for the sous_schedule_meal tool.
type ScheduleMealInput struct {
	Date     string `json:"date" jsonschema:"required,description=Day to plan YYYY-MM-DD"`
	Slot     string `json:"slot" jsonschema:"required,description=Meal slot: breakfast lunch dinner or snack"`
	RecipeID string `json:"recipe_id,omitempty" jsonschema:"description=Recipe to schedule (or give a title)"`
	Title    string `json:"title,omitempty" jsonschema:"description=Free-form entry like 'Eating out'"`
	Servings int    `json:"servings,omitempty" jsonschema:"description=Servings to plan (default: the recipe's)"`
	Note     string `json:"note,omitempty" jsonschema:"description=Optional note"`
	Confirm  bool   `json:"confirm" jsonschema:"required,description=Must be true to change the plan (safety confirmation)"`
}

// ScheduleMealOutput is the output for the sous_schedule_meal tool.
type ScheduleMealOutput struct {
	Scheduled bool         `json:"scheduled"`
	Meal      *PlannedMeal `json:"meal,omitempty"`
	Message   string       `json:"message,omitempty"`
}

// GenerateGroceriesInput is the input for the sous_generate_groceries tool.
type GenerateGroceriesInput struct {
	From    string `json:"from" jsonschema:"required,description=Start date YYYY-MM-DD"`
	To      string `json:"to" jsonschema:"required,description=End date YYYY-MM-DD inclusive"`
	Name    string `json:"name,omitempty" jsonschema:"description=List name (default: Groceries <from> to <to>)"`
	Confirm bool   `json:"confirm" jsonschema:"required,description=Must be true to create the list (safety confirmation)"`
}

// GenerateGroceriesOutput is the output for the sous_generate_groceries tool.
type GenerateGroceriesOutput struct {
	Created bool               `json:"created"`
	List    *GroceryListOutput `json:"list,omitempty"`
	Message string             `json:"message,omitempty"`
}

// VersionInfo contains version metadata for the MCP server.
type VersionInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

// RegisterAll registers all MCP tools with the server.
func RegisterAll(srv *mcp.Server, planner *app.Planner, grocery *app.Grocery, syncer *app.SyncService, versionInfo VersionInfo) {
	registerListRecipesTool(srv, planner)
	registerGetRecipeTool(srv, planner)
	registerWeekPlanTool(srv, planner)
	registerGroceryListTool(srv, grocery)
	registerSyncStatusTool(srv, syncer, versionInfo)
	registerScheduleMealTool(srv, planner)
	registerGenerateGroceriesTool(srv, grocery)
}

func registerListRecipesTool(srv *mcp.Server, planner *app.Planner) {
	srv.Tool("sous_list_recipes").
		Description("List recipes in the meal planner. Supports name search and tag filtering.").
		ReadOnly().
		Handler(func(ctx context.Context, in ListRecipesInput) (*ListRecipesOutput, error) {
			if err := ValidateListRecipesInput(&in); err != nil {
				return nil, err
			}

			recipes, err := planner.Recipes(ctx)
			if err != nil {
				return nil, err
			}

			output := &ListRecipesOutput{Recipes: make([]RecipeSummary, 0, len(recipes))}
			for _, r := range recipes {
				if in.Query != "" && !strings.Contains(strings.ToLower(r.Name), strings.ToLower(in.Query)) {
					continue
				}
				if in.Tag != "" && !hasTag(r.Tags, in.Tag) {
					continue
				}
				output.Total++
				if in.Limit > 0 && len(output.Recipes) >= in.Limit {
					continue
				}
				output.Recipes = append(output.Recipes, toRecipeSummary(r))
			}

			return output, nil
		})
}

func registerGetRecipeTool(srv *mcp.Server, planner *app.Planner) {
	srv.Tool("sous_get_recipe").
		Description("Get one recipe with its full ingredient list and instructions.").
		ReadOnly().
		Handler(func(ctx context.Context, in GetRecipeInput) (*GetRecipeOutput, error) {
			if err := ValidateGetRecipeInput(&in); err != nil {
				return nil, err
			}

			recipe, ingredients, err := planner.Recipe(ctx, in.RecipeID)
			if err != nil {
				return nil, err
			}

			output := &GetRecipeOutput{
				ID:           recipe.ID,
				Name:         recipe.Name,
				Description:  recipe.Description,
				Servings:     recipe.Servings,
				PrepMinutes:  recipe.PrepMinutes,
				CookMinutes:  recipe.CookMinutes,
				Instructions: recipe.Instructions,
				Tags:         recipe.Tags,
				Ingredients:  make([]IngredientLine, 0, len(ingredients)),
			}
			for _, ing := range ingredients {
				output.Ingredients = append(output.Ingredients, IngredientLine{
					Name:     ing.Name,
					Quantity: ing.Quantity,
					Unit:     ing.Unit,
					Note:     ing.Note,
					Optional: ing.Optional,
				})
			}

			return output, nil
		})
}

func registerWeekPlanTool(srv *mcp.Server, planner *app.Planner) {
	srv.Tool("sous_week_plan").
		Description("Show the meal plan for a date range. Defaults to the seven days starting today.").
		ReadOnly().
		Handler(func(ctx context.Context, in WeekPlanInput) (*WeekPlanOutput, error) {
			if err := ValidateWeekPlanInput(&in); err != nil {
				return nil, err
			}

			from, to := in.From, in.To
			if from == "" {
				from = time.Now().Format(snapshot.DateLayout)
			}
			if to == "" {
				start, err := time.Parse(snapshot.DateLayout, from)
				if err == nil {
					to = start.AddDate(0, 0, 6).Format(snapshot.DateLayout)
				} else {
					to = from
				}
			}

			plans, err := planner.Plans(ctx, from, to)
			if err != nil {
				return nil, err
			}

			names, err := recipeNames(ctx, planner)
			if err != nil {
				return nil, err
			}

			output := &WeekPlanOutput{From: from, To: to, Meals: make([]PlannedMeal, 0, len(plans))}
			for _, plan := range plans {
				output.Meals = append(output.Meals, toPlannedMeal(plan, names))
			}

			return output, nil
		})
}

func registerGroceryListTool(srv *mcp.Server, grocery *app.Grocery) {
	srv.Tool("sous_grocery_list").
		Description("Show a grocery list with its items and what is still unchecked. Defaults to the most recent list.").
		ReadOnly().
		Handler(func(ctx context.Context, in GroceryListInput) (*GroceryListOutput, error) {
			if err := ValidateGroceryListInput(&in); err != nil {
				return nil, err
			}

			listID := in.ListID
			if listID == "" {
				lists, err := grocery.Lists(ctx)
				if err != nil {
					return nil, err
				}
				if len(lists) == 0 {
					return &GroceryListOutput{Items: []GroceryLine{}}, nil
				}
				listID = latestList(lists).ID
			}

			list, items, err := grocery.Items(ctx, listID)
			if err != nil {
				return nil, err
			}

			return toGroceryListOutput(list, items), nil
		})
}

func registerSyncStatusTool(srv *mcp.Server, syncer *app.SyncService, versionInfo VersionInfo) {
	srv.Tool("sous_sync_status").
		Description("Report how this device relates to the shared snapshot: unlinked, in-sync, ahead, behind, or diverged, plus pending conflicts.").
		ReadOnly().
		Handler(func(ctx context.Context, _ SyncStatusInput) (*SyncStatusOutput, error) {
			status, err := syncer.Status(ctx)
			if err != nil {
				return nil, err
			}

			output := &SyncStatusOutput{
				Version:     versionInfo.Version,
				DeviceID:    status.DeviceID,
				State:       string(status.State),
				RecordCount: status.RecordCount,
				LocalChanges: ChangeSummary{
					Created: status.LocalChanges.Created,
					Updated: status.LocalChanges.Updated,
					Deleted: status.LocalChanges.Deleted,
				},
				RemoteChanges: ChangeSummary{
					Created: status.RemoteChanges.Created,
					Updated: status.RemoteChanges.Updated,
					Deleted: status.RemoteChanges.Deleted,
				},
			}

			if status.Conflicts > 0 {
				conflicts, err := syncer.Conflicts(ctx)
				if err != nil {
					return nil, err
				}
				output.Conflicts = make([]ConflictSummary, 0, len(conflicts))
				for _, c := range conflicts {
					output.Conflicts = append(output.Conflicts, ConflictSummary{
						ID:       c.ID(),
						Kind:     c.Kind().String(),
						Entity:   string(c.Entity()),
						EntityID: c.EntityID(),
					})
				}
			}

			return output, nil
		})
}

func registerScheduleMealTool(srv *mcp.Server, planner *app.Planner) {
	srv.Tool("sous_schedule_meal").
		Description("Add a meal to the plan. REQUIRES confirm=true for safety.").
		Destructive().
		Handler(func(ctx context.Context, in ScheduleMealInput) (*ScheduleMealOutput, error) {
			if err := ValidateScheduleMealInput(&in); err != nil {
				return nil, err
			}

			if !in.Confirm {
				return &ScheduleMealOutput{
					Scheduled: false,
					Message:   "Set confirm=true to schedule the meal",
				}, nil
			}

			plan, err := planner.Schedule(ctx, app.PlanDraft{
				Date:     in.Date,
				Slot:     snapshot.Slot(in.Slot),
				RecipeID: in.RecipeID,
				Title:    in.Title,
				Servings: in.Servings,
				Note:     in.Note,
			})
			if err != nil {
				return nil, err
			}

			names, err := recipeNames(ctx, planner)
			if err != nil {
				return nil, err
			}
			meal := toPlannedMeal(plan, names)

			return &ScheduleMealOutput{Scheduled: true, Meal: &meal}, nil
		})
}

func registerGenerateGroceriesTool(srv *mcp.Server, grocery *app.Grocery) {
	srv.Tool("sous_generate_groceries").
		Description("Generate a grocery list from the meal plan for a date range, scaling and aggregating ingredients. REQUIRES confirm=true for safety.").
		Destructive().
		Handler(func(ctx context.Context, in GenerateGroceriesInput) (*GenerateGroceriesOutput, error) {
			if err := ValidateGenerateGroceriesInput(&in); err != nil {
				return nil, err
			}

			if !in.Confirm {
				return &GenerateGroceriesOutput{
					Created: false,
					Message: "Set confirm=true to create the grocery list",
				}, nil
			}

			list, items, err := grocery.Generate(ctx, in.From, in.To, in.Name)
			if err != nil {
				return nil, err
			}

			return &GenerateGroceriesOutput{
				Created: true,
				List:    toGroceryListOutput(list, items),
			}, nil
		})
}

// Helper functions

func toRecipeSummary(r snapshot.Recipe) RecipeSummary {
	summary := RecipeSummary{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Servings:    r.Servings,
		Tags:        r.Tags,
	}
	if total := r.PrepMinutes + r.CookMinutes; total > 0 {
		summary.TotalTime = (time.Duration(total) * time.Minute).String()
	}
	return summary
}

func toPlannedMeal(plan snapshot.MealPlan, recipeNames map[string]string) PlannedMeal {
	meal := PlannedMeal{
		PlanID:   plan.ID,
		Date:     plan.Date,
		Slot:     string(plan.Slot),
		Title:    plan.Title,
		RecipeID: plan.RecipeID,
		Servings: plan.Servings,
		Note:     plan.Note,
	}
	if plan.RecipeID != "" {
		meal.RecipeName = recipeNames[plan.RecipeID]
	}
	return meal
}

func toGroceryListOutput(list snapshot.GroceryList, items []snapshot.GroceryItem) *GroceryListOutput {
	output := &GroceryListOutput{
		ID:    list.ID,
		Name:  list.Name,
		From:  list.Range.Start,
		To:    list.Range.End,
		Items: make([]GroceryLine, 0, len(items)),
	}
	for _, item := range items {
		output.Items = append(output.Items, GroceryLine{
			ID:       item.ID,
			Name:     item.Name,
			Quantity: item.Quantity,
			Unit:     item.Unit,
			Checked:  item.Checked,
		})
		if !item.Checked {
			output.Remaining++
		}
	}
	return output
}

func recipeNames(ctx context.Context, planner *app.Planner) (map[string]string, error) {
	recipes, err := planner.Recipes(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(recipes))
	for _, r := range recipes {
		names[r.ID] = r.Name
	}
	return names, nil
}

func hasTag(tags []string, want string) bool {
	for _, tag := range tags {
		if strings.EqualFold(tag, want) {
			return true
		}
	}
	return false
}

// latestList picks the list covering the most recent days, falling back to
// name order for a stable result.
func latestList(lists []snapshot.GroceryList) snapshot.GroceryList {
	sorted := make([]snapshot.GroceryList, len(lists))
	copy(sorted, lists)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Range.End != sorted[j].Range.End {
			return sorted[i].Range.End > sorted[j].Range.End
		}
		return sorted[i].Name > sorted[j].Name
	})
	return sorted[0]
}
