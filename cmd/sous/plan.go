package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/sous/internal/app"
	"github.com/felixgeelhaar/sous/internal/domain/snapshot"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Schedule meals onto your week",
}

var planAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Schedule a meal",
	Long: `Schedule a recipe (or a free-form entry like "Eating out") onto a day
and slot. Dates accept natural phrases: --on tomorrow, --on "next friday".`,
	Args: cobra.NoArgs,
	RunE: runPlanAdd,
}

var planListCmd = &cobra.Command{
	Use:   "list",
	Short: "List planned meals",
	Args:  cobra.NoArgs,
	RunE:  runPlanList,
}

var planRemoveCmd = &cobra.Command{
	Use:   "remove <plan-id>",
	Short: "Remove a planned meal",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlanRemove,
}

var (
	planOn       string
	planSlot     string
	planRecipe   string
	planTitle    string
	planServings int
	planNote     string

	planFrom string
	planTo   string
)

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.AddCommand(planAddCmd)
	planCmd.AddCommand(planListCmd)
	planCmd.AddCommand(planRemoveCmd)

	planAddCmd.Flags().StringVar(&planOn, "on", "today", "day to plan for (YYYY-MM-DD or a phrase like 'next monday')")
	planAddCmd.Flags().StringVar(&planSlot, "slot", "", "meal slot: breakfast, lunch, dinner or snack")
	planAddCmd.Flags().StringVar(&planRecipe, "recipe", "", "recipe id to schedule")
	planAddCmd.Flags().StringVar(&planTitle, "title", "", "free-form title when no recipe applies")
	planAddCmd.Flags().IntVar(&planServings, "servings", 0, "servings to cook (default: the recipe's)")
	planAddCmd.Flags().StringVar(&planNote, "note", "", "note shown alongside the entry")
	_ = planAddCmd.MarkFlagRequired("slot")

	planListCmd.Flags().StringVar(&planFrom, "from", "", "first day to list (default: today)")
	planListCmd.Flags().StringVar(&planTo, "to", "", "last day to list (default: six days after from)")

	registerSlotCompletion(planAddCmd)
}

// registerSlotCompletion completes --slot with the known meal slots.
func registerSlotCompletion(cmd *cobra.Command) {
	_ = cmd.RegisterFlagCompletionFunc("slot", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{
			string(snapshot.SlotBreakfast),
			string(snapshot.SlotLunch),
			string(snapshot.SlotDinner),
			string(snapshot.SlotSnack),
		}, cobra.ShellCompDirectiveNoFileComp
	})
}

func runPlanAdd(_ *cobra.Command, _ []string) error {
	date, err := parseDay(planOn)
	if err != nil {
		return err
	}

	env, err := openEnv()
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	plan, err := env.planner.Schedule(context.Background(), app.PlanDraft{
		Date:     date,
		Slot:     snapshot.Slot(planSlot),
		RecipeID: planRecipe,
		Title:    planTitle,
		Servings: planServings,
		Note:     planNote,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Planned %s %s: %s (%s)\n", plan.Date, plan.Slot, planMealName(context.Background(), env, plan), plan.ID)
	return nil
}

func runPlanList(_ *cobra.Command, _ []string) error {
	from, to, err := resolvePlanRange()
	if err != nil {
		return err
	}

	env, err := openEnv()
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	ctx := context.Background()
	plans, err := env.planner.Plans(ctx, from, to)
	if err != nil {
		return err
	}
	if len(plans) == 0 {
		fmt.Printf("Nothing planned between %s and %s.\n", from, to)
		return nil
	}

	names, err := recipeNames(ctx, env)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DATE\tSLOT\tMEAL\tSERVINGS\tID")
	for _, p := range plans {
		meal := p.Title
		if p.RecipeID != "" {
			if name, ok := names[p.RecipeID]; ok {
				meal = name
			} else {
				meal = p.RecipeID
			}
		}
		if p.Note != "" {
			meal += " — " + p.Note
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			p.Date, p.Slot, meal, formatServings(p.Servings), p.ID)
	}
	return w.Flush()
}

func runPlanRemove(_ *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	if err := env.planner.Unschedule(context.Background(), args[0]); err != nil {
		return err
	}
	fmt.Println("Removed planned meal.")
	return nil
}

// resolvePlanRange turns the --from/--to flags into a concrete date range,
// defaulting to the week starting today.
func resolvePlanRange() (from, to string, err error) {
	if planFrom == "" {
		from = time.Now().Format(snapshot.DateLayout)
	} else if from, err = parseDay(planFrom); err != nil {
		return "", "", err
	}

	if planTo == "" {
		start, perr := time.Parse(snapshot.DateLayout, from)
		if perr != nil {
			return "", "", perr
		}
		to = start.AddDate(0, 0, 6).Format(snapshot.DateLayout)
	} else if to, err = parseDay(planTo); err != nil {
		return "", "", err
	}

	return from, to, nil
}

// recipeNames maps recipe ids to names for table output.
func recipeNames(ctx context.Context, env *appEnv) (map[string]string, error) {
	recipes, err := env.planner.Recipes(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(recipes))
	for _, r := range recipes {
		names[r.ID] = r.Name
	}
	return names, nil
}

// planMealName resolves the display name for a plan entry.
func planMealName(ctx context.Context, env *appEnv, plan snapshot.MealPlan) string {
	if plan.RecipeID == "" {
		return plan.Title
	}
	recipe, _, err := env.planner.Recipe(ctx, plan.RecipeID)
	if err != nil {
		return plan.RecipeID
	}
	return recipe.Name
}
