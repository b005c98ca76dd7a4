package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/sous/internal/adapters/recipefile"
	"github.com/felixgeelhaar/sous/internal/app"
	"github.com/felixgeelhaar/sous/internal/domain/snapshot"
)

var recipeCmd = &cobra.Command{
	Use:   "recipe",
	Short: "Manage your recipe collection",
}

var recipeAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a new recipe",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecipeAdd,
}

var recipeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all recipes",
	Args:  cobra.NoArgs,
	RunE:  runRecipeList,
}

var recipeShowCmd = &cobra.Command{
	Use:   "show <recipe-id>",
	Short: "Show a recipe with its ingredients and instructions",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecipeShow,
}

var recipeRemoveCmd = &cobra.Command{
	Use:   "remove <recipe-id>",
	Short: "Remove a recipe and its ingredients",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecipeRemove,
}

var ingredientCmd = &cobra.Command{
	Use:   "ingredient",
	Short: "Manage a recipe's ingredients",
}

var ingredientAddCmd = &cobra.Command{
	Use:   "add <recipe-id> <name>",
	Short: "Add an ingredient to a recipe",
	Args:  cobra.ExactArgs(2),
	RunE:  runIngredientAdd,
}

var ingredientRemoveCmd = &cobra.Command{
	Use:   "remove <ingredient-id>",
	Short: "Remove an ingredient",
	Args:  cobra.ExactArgs(1),
	RunE:  runIngredientRemove,
}

var recipeExportCmd = &cobra.Command{
	Use:   "export <recipe-id>",
	Short: "Export a recipe as a TOML file",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecipeExport,
}

var recipeImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a recipe from a TOML file",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecipeImport,
}

var (
	recipeDesc         string
	recipeServings     int
	recipePrepMinutes  int
	recipeCookMinutes  int
	recipeInstructions []string
	recipeTags         []string

	ingredientQty      float64
	ingredientUnit     string
	ingredientNote     string
	ingredientOptional bool

	recipeExportOut string
)

func init() {
	rootCmd.AddCommand(recipeCmd)
	recipeCmd.AddCommand(recipeAddCmd)
	recipeCmd.AddCommand(recipeListCmd)
	recipeCmd.AddCommand(recipeShowCmd)
	recipeCmd.AddCommand(recipeRemoveCmd)
	recipeCmd.AddCommand(ingredientCmd)
	recipeCmd.AddCommand(recipeExportCmd)
	recipeCmd.AddCommand(recipeImportCmd)
	ingredientCmd.AddCommand(ingredientAddCmd)
	ingredientCmd.AddCommand(ingredientRemoveCmd)

	recipeAddCmd.Flags().StringVar(&recipeDesc, "desc", "", "short description")
	recipeAddCmd.Flags().IntVar(&recipeServings, "servings", 0, "servings the recipe yields")
	recipeAddCmd.Flags().IntVar(&recipePrepMinutes, "prep", 0, "preparation time in minutes")
	recipeAddCmd.Flags().IntVar(&recipeCookMinutes, "cook", 0, "cooking time in minutes")
	recipeAddCmd.Flags().StringArrayVar(&recipeInstructions, "instruction", nil, "instruction step (repeatable, in order)")
	recipeAddCmd.Flags().StringSliceVar(&recipeTags, "tag", nil, "tag for filtering (repeatable)")

	ingredientAddCmd.Flags().Float64Var(&ingredientQty, "qty", 0, "quantity per recipe serving count")
	ingredientAddCmd.Flags().StringVar(&ingredientUnit, "unit", "", "unit of measure (g, ml, tbsp, ...)")
	ingredientAddCmd.Flags().StringVar(&ingredientNote, "note", "", "preparation note (diced, room temperature, ...)")
	ingredientAddCmd.Flags().BoolVar(&ingredientOptional, "optional", false, "mark the ingredient as optional")

	recipeExportCmd.Flags().StringVarP(&recipeExportOut, "out", "o", "", "output file (default: stdout)")
}

func runRecipeAdd(_ *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	recipe, err := env.planner.AddRecipe(context.Background(), app.RecipeDraft{
		Name:         args[0],
		Description:  recipeDesc,
		Servings:     recipeServings,
		PrepMinutes:  recipePrepMinutes,
		CookMinutes:  recipeCookMinutes,
		Instructions: recipeInstructions,
		Tags:         recipeTags,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Added recipe %q (%s)\n", recipe.Name, recipe.ID)
	fmt.Printf("Add ingredients with: sous recipe ingredient add %s <name> --qty <n> --unit <unit>\n", recipe.ID)
	return nil
}

func runRecipeList(_ *cobra.Command, _ []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	recipes, err := env.planner.Recipes(context.Background())
	if err != nil {
		return err
	}
	if len(recipes) == 0 {
		fmt.Println("No recipes yet. Add one with 'sous recipe add <name>'.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tSERVINGS\tTIME\tTAGS")
	for _, r := range recipes {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Name, formatServings(r.Servings),
			formatMinutes(r.PrepMinutes+r.CookMinutes),
			strings.Join(r.Tags, ", "))
	}
	return w.Flush()
}

func runRecipeShow(_ *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	recipe, ingredients, err := env.planner.Recipe(context.Background(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("%s  (%s)\n", recipe.Name, recipe.ID)
	var facts []string
	if recipe.Servings > 0 {
		facts = append(facts, fmt.Sprintf("serves %d", recipe.Servings))
	}
	if recipe.PrepMinutes > 0 {
		facts = append(facts, fmt.Sprintf("prep %s", formatMinutes(recipe.PrepMinutes)))
	}
	if recipe.CookMinutes > 0 {
		facts = append(facts, fmt.Sprintf("cook %s", formatMinutes(recipe.CookMinutes)))
	}
	if len(facts) > 0 {
		fmt.Println(strings.Join(facts, " · "))
	}
	if len(recipe.Tags) > 0 {
		fmt.Printf("tags: %s\n", strings.Join(recipe.Tags, ", "))
	}
	if recipe.Description != "" {
		fmt.Printf("\n%s\n", recipe.Description)
	}

	if len(ingredients) > 0 {
		fmt.Println("\nIngredients:")
		for _, ing := range ingredients {
			fmt.Printf("  - %s\n", formatIngredient(ing))
		}
	}
	if len(recipe.Instructions) > 0 {
		fmt.Println("\nInstructions:")
		for i, step := range recipe.Instructions {
			fmt.Printf("  %d. %s\n", i+1, step)
		}
	}
	return nil
}

func runRecipeRemove(_ *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	ctx := context.Background()
	recipe, _, err := env.planner.Recipe(ctx, args[0])
	if err != nil {
		return err
	}
	if !confirmDestructive(fmt.Sprintf("Remove recipe %q and its ingredients?", recipe.Name)) {
		fmt.Println("Cancelled.")
		return nil
	}
	if err := env.planner.RemoveRecipe(ctx, recipe.ID); err != nil {
		return err
	}
	fmt.Printf("Removed recipe %q\n", recipe.Name)
	return nil
}

func runIngredientAdd(_ *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	ing, err := env.planner.AddIngredient(context.Background(), args[0], app.IngredientDraft{
		Name:     args[1],
		Quantity: ingredientQty,
		Unit:     ingredientUnit,
		Note:     ingredientNote,
		Optional: ingredientOptional,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Added %s (%s)\n", formatIngredient(ing), ing.ID)
	return nil
}

func runIngredientRemove(_ *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	if err := env.planner.RemoveIngredient(context.Background(), args[0]); err != nil {
		return err
	}
	fmt.Println("Removed ingredient.")
	return nil
}

func runRecipeExport(_ *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	recipe, ingredients, err := env.planner.Recipe(context.Background(), args[0])
	if err != nil {
		return err
	}
	data, err := recipefile.Encode(recipe, ingredients)
	if err != nil {
		return err
	}

	if recipeExportOut == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(recipeExportOut, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", recipeExportOut, err)
	}
	fmt.Printf("Exported %q to %s\n", recipe.Name, recipeExportOut)
	return nil
}

func runRecipeImport(_ *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	file, err := recipefile.Decode(data)
	if err != nil {
		return err
	}

	env, err := openEnv()
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	ctx := context.Background()
	recipe, err := env.planner.AddRecipe(ctx, app.RecipeDraft{
		Name:         file.Recipe.Name,
		Description:  file.Recipe.Description,
		Servings:     file.Recipe.Servings,
		PrepMinutes:  file.Recipe.PrepMinutes,
		CookMinutes:  file.Recipe.CookMinutes,
		Instructions: file.Recipe.Instructions,
		Tags:         file.Recipe.Tags,
	})
	if err != nil {
		return err
	}
	for _, ing := range file.Ingredients {
		if _, err := env.planner.AddIngredient(ctx, recipe.ID, app.IngredientDraft{
			Name:     ing.Name,
			Quantity: ing.Quantity,
			Unit:     ing.Unit,
			Note:     ing.Note,
			Optional: ing.Optional,
		}); err != nil {
			return err
		}
	}

	fmt.Printf("Imported recipe %q (%s) with %d ingredients\n", recipe.Name, recipe.ID, len(file.Ingredients))
	return nil
}

// formatServings renders a servings count, or "-" when unset.
func formatServings(n int) string {
	if n <= 0 {
		return "-"
	}
	return strconv.Itoa(n)
}

// formatMinutes renders a duration in minutes as "45m" or "1h30m".
func formatMinutes(minutes int) string {
	if minutes <= 0 {
		return "-"
	}
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	if minutes%60 == 0 {
		return fmt.Sprintf("%dh", minutes/60)
	}
	return fmt.Sprintf("%dh%02dm", minutes/60, minutes%60)
}

// formatIngredient renders one ingredient line like "200 g spaghetti (diced)".
func formatIngredient(ing snapshot.Ingredient) string {
	var b strings.Builder
	if ing.Quantity > 0 {
		b.WriteString(strconv.FormatFloat(ing.Quantity, 'f', -1, 64))
		b.WriteString(" ")
	}
	if ing.Unit != "" {
		b.WriteString(ing.Unit)
		b.WriteString(" ")
	}
	b.WriteString(ing.Name)
	if ing.Note != "" {
		b.WriteString(" (" + ing.Note + ")")
	}
	if ing.Optional {
		b.WriteString(" [optional]")
	}
	return b.String()
}
