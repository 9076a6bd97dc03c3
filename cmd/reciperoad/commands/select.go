package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ashureev/recipe-road/internal/domain"
	"github.com/spf13/cobra"
)

var selectText string

var selectCmd = &cobra.Command{
	Use:   "select <session_id> <index>",
	Short: "Break a recipe into voice-guided steps",
	Long: `Break one of the session's search results into phases and steps and
print the websocket address for the voice assistant.

Examples:
  reciperoad select session_0 1
  reciperoad select session_0 0 --text "$(cat grandmas-lasagna.txt)"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID := args[0]
		index, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid recipe index %q", args[1])
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Minute)
		defer cancel()

		client := newClient()
		recipe, err := client.Select(ctx, sessionID, domain.SelectRequest{
			RecipeIndex:    index,
			FullRecipeText: selectText,
		})
		if err != nil {
			return fmt.Errorf("select failed: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), recipe)
		}
		fmt.Fprint(cmd.OutOrStdout(), renderRecipe(recipe))
		fmt.Fprintf(cmd.OutOrStdout(), "\n%s %s\n", labelStyle.Render("Assistant:"), client.AssistantURL(sessionID))
		return nil
	},
}

func init() {
	selectCmd.Flags().StringVar(&selectText, "text", "", "full recipe text to follow instead of generating one")
	rootCmd.AddCommand(selectCmd)
}
