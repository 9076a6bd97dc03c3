package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/ashureev/recipe-road/internal/domain"
	"github.com/spf13/cobra"
)

var (
	searchDescription string
	searchIngredients []string
	searchDiet        []string
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Find three recipes and open a session",
	Long: `Find three recipes matching a description and the ingredients on hand.

Examples:
  reciperoad search -d "quick weeknight dinner" -i rice,eggs,scallions
  reciperoad search -d "dessert" --diet vegan --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		q := domain.SearchQuery{
			Description:         searchDescription,
			Ingredients:         searchIngredients,
			DietaryRestrictions: searchDiet,
		}
		if err := q.Validate(); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()

		res, err := newClient().Search(ctx, q)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), res)
		}
		fmt.Fprint(cmd.OutOrStdout(), renderOptions(res))
		fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render(fmt.Sprintf("Next: reciperoad select %s <index>", res.SessionID)))
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVarP(&searchDescription, "description", "d", "", "what you want to cook (required)")
	searchCmd.Flags().StringSliceVarP(&searchIngredients, "ingredients", "i", nil, "ingredients on hand, comma separated")
	searchCmd.Flags().StringSliceVar(&searchDiet, "diet", nil, "dietary restrictions, comma separated")
	rootCmd.AddCommand(searchCmd)
}
