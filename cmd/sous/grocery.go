package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/sous/internal/domain/snapshot"
)

var groceryCmd = &cobra.Command{
	Use:   "grocery",
	Short: "Generate and work through grocery lists",
}

var groceryGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a grocery list from planned meals",
	Long: `Generate collects the ingredients of every meal planned in the given
date range, scales them to the planned servings and aggregates equal
items across recipes into one line per name and unit.`,
	Args: cobra.NoArgs,
	RunE: runGroceryGenerate,
}

var groceryListCmd = &cobra.Command{
	Use:   "list [list-id]",
	Short: "Show grocery lists, or the items of one list",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runGroceryList,
}

var groceryCheckCmd = &cobra.Command{
	Use:   "check <item-id>",
	Short: "Check an item off the list",
	Args:  cobra.ExactArgs(1),
	RunE:  runGroceryCheck,
}

var groceryRemoveCmd = &cobra.Command{
	Use:   "remove <list-id>",
	Short: "Remove a grocery list and its items",
	Args:  cobra.ExactArgs(1),
	RunE:  runGroceryRemove,
}

var (
	groceryFrom string
	groceryTo   string
	groceryName string

	groceryCheckUndo bool
)

func init() {
	rootCmd.AddCommand(groceryCmd)
	groceryCmd.AddCommand(groceryGenerateCmd)
	groceryCmd.AddCommand(groceryListCmd)
	groceryCmd.AddCommand(groceryCheckCmd)
	groceryCmd.AddCommand(groceryRemoveCmd)

	groceryGenerateCmd.Flags().StringVar(&groceryFrom, "from", "", "first planned day to shop for (default: today)")
	groceryGenerateCmd.Flags().StringVar(&groceryTo, "to", "", "last planned day to shop for (default: six days after from)")
	groceryGenerateCmd.Flags().StringVar(&groceryName, "name", "", "list name (default: derived from the week)")

	groceryCheckCmd.Flags().BoolVar(&groceryCheckUndo, "undo", false, "uncheck instead")
}

func runGroceryGenerate(_ *cobra.Command, _ []string) error {
	from, to, err := resolveGroceryRange()
	if err != nil {
		return err
	}

	env, err := openEnv()
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	list, items, err := env.grocery.Generate(context.Background(), from, to, groceryName)
	if err != nil {
		return err
	}

	fmt.Printf("Generated %q with %d items for %s to %s (%s)\n",
		list.Name, len(items), list.Range.Start, list.Range.End, list.ID)
	printGroceryItems(items)
	return nil
}

func runGroceryList(_ *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	ctx := context.Background()
	if len(args) == 1 {
		list, items, err := env.grocery.Items(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s  (%s to %s)\n", list.Name, list.Range.Start, list.Range.End)
		printGroceryItems(items)
		return nil
	}

	lists, err := env.grocery.Lists(ctx)
	if err != nil {
		return err
	}
	if len(lists) == 0 {
		fmt.Println("No grocery lists yet. Generate one with 'sous grocery generate'.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tFROM\tTO")
	for _, l := range lists {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", l.ID, l.Name, l.Range.Start, l.Range.End)
	}
	return w.Flush()
}

func runGroceryCheck(_ *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	item, err := env.grocery.Check(context.Background(), args[0], !groceryCheckUndo)
	if err != nil {
		return err
	}
	if item.Checked {
		fmt.Printf("Checked off %s.\n", item.Name)
	} else {
		fmt.Printf("Unchecked %s.\n", item.Name)
	}
	return nil
}

func runGroceryRemove(_ *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	ctx := context.Background()
	list, _, err := env.grocery.Items(ctx, args[0])
	if err != nil {
		return err
	}
	if !confirmDestructive(fmt.Sprintf("Remove grocery list %q and its items?", list.Name)) {
		fmt.Println("Cancelled.")
		return nil
	}
	if err := env.grocery.RemoveList(ctx, list.ID); err != nil {
		return err
	}
	fmt.Printf("Removed grocery list %q\n", list.Name)
	return nil
}

// resolveGroceryRange turns the --from/--to flags into a concrete date
// range, defaulting to the week starting today.
func resolveGroceryRange() (from, to string, err error) {
	if groceryFrom == "" {
		from = time.Now().Format(snapshot.DateLayout)
	} else if from, err = parseDay(groceryFrom); err != nil {
		return "", "", err
	}

	if groceryTo == "" {
		start, perr := time.Parse(snapshot.DateLayout, from)
		if perr != nil {
			return "", "", perr
		}
		to = start.AddDate(0, 0, 6).Format(snapshot.DateLayout)
	} else if to, err = parseDay(groceryTo); err != nil {
		return "", "", err
	}

	return from, to, nil
}

// printGroceryItems renders items as a checklist, checked items marked [x].
func printGroceryItems(items []snapshot.GroceryItem) {
	if len(items) == 0 {
		fmt.Println("  (no items)")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, item := range items {
		mark := " "
		if item.Checked {
			mark = "x"
		}
		qty := ""
		if item.Quantity > 0 {
			qty = strconv.FormatFloat(item.Quantity, 'f', -1, 64)
			if item.Unit != "" {
				qty += " " + item.Unit
			}
		}
		_, _ = fmt.Fprintf(w, "  [%s]\t%s\t%s\t%s\n", mark, item.Name, qty, item.ID)
	}
	_ = w.Flush()
}
