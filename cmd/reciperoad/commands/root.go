// Package commands implements the reciperoad subcommands.
package commands

import (
	"os"

	"github.com/spf13/cobra"
)

const defaultAPI = "http://localhost:8000"

var (
	apiURL     string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "reciperoad",
	Short: "Recipe Road command line client",
	Long: `Recipe Road command line client.

Search for recipes, pick one, and get the websocket address for
voice-guided cooking.

The API address defaults to $RECIPE_ROAD_API, then ` + defaultAPI + `.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	def := os.Getenv("RECIPE_ROAD_API")
	if def == "" {
		def = defaultAPI
	}
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", def, "Recipe Road API base URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print raw JSON")
}

func newClient() *Client {
	return NewClient(apiURL, nil)
}
