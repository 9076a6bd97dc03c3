// Package main provides the Recipe Road CLI.
//
// Usage:
//
//	reciperoad [--api URL] <command> [args]
//
// Commands:
//
//	search - find three recipes and open a session
//	select - break a recipe into voice-guided steps
//	end    - end a session
package main

import (
	"fmt"
	"os"

	"github.com/ashureev/recipe-road/cmd/reciperoad/commands"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
