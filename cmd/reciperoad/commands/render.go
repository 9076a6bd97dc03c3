package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ashureev/recipe-road/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

var (
	primary = lipgloss.Color("#00ff9f")
	dim     = lipgloss.Color("#6e7681")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(primary)
	labelStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(dim)
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(primary).Padding(0, 1)
)

func renderOptions(res *domain.SearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n\n", labelStyle.Render("Session:"), res.SessionID)
	for i, r := range res.Recipes {
		var card strings.Builder
		fmt.Fprintf(&card, "%s  %s\n", titleStyle.Render(fmt.Sprintf("[%d] %s", i, r.Title)), dimStyle.Render(fmt.Sprintf("match %.0f%%", r.MatchScore*100)))
		if r.Description != "" {
			fmt.Fprintln(&card, r.Description)
		}
		fmt.Fprintf(&card, "%s prep %s, cook %s, serves %d, %s", labelStyle.Render("Time:"), orDash(r.PrepTime), orDash(r.CookTime), r.Servings, orDash(r.Difficulty))
		if len(r.MissingIngredients) > 0 {
			fmt.Fprintf(&card, "\n%s %s", labelStyle.Render("Missing:"), strings.Join(r.MissingIngredients, ", "))
		}
		b.WriteString(boxStyle.Render(card.String()))
		b.WriteString("\n")
	}
	return b.String()
}

func renderRecipe(r *domain.DetailedRecipe) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(r.Title))
	b.WriteString("\n")
	if r.Description != "" {
		fmt.Fprintln(&b, r.Description)
	}
	fmt.Fprintf(&b, "%s %d   %s %s\n", labelStyle.Render("Serves:"), r.Servings, labelStyle.Render("Total:"), orDash(r.TotalTime))
	if len(r.Ingredients) > 0 {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Ingredients:"), strings.Join(r.Ingredients, ", "))
	}
	if len(r.Equipment) > 0 {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Equipment:"), strings.Join(r.Equipment, ", "))
	}

	for _, p := range r.Phases {
		fmt.Fprintf(&b, "\n%s %s\n", titleStyle.Render(p.PhaseName), dimStyle.Render(p.TotalTime))
		for _, s := range p.Steps {
			line := fmt.Sprintf("  %d. %s", s.StepNumber, s.Instruction)
			if s.TimerNeeded && s.TimerDuration != nil {
				line += dimStyle.Render(fmt.Sprintf(" (timer %ds)", *s.TimerDuration))
			}
			fmt.Fprintln(&b, line)
			if s.Tips != "" {
				fmt.Fprintln(&b, dimStyle.Render("     tip: "+s.Tips))
			}
		}
	}
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
