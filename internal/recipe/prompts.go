package recipe

import (
	"fmt"
	"strings"

	"github.com/ashureev/recipe-road/internal/domain"
)

const searchSystemPrompt = `You are a helpful recipe search assistant. Search for recipes based on the user's description and available ingredients.

For each recipe, provide:
- A clear title and description
- Realistic prep and cook times
- Number of servings
- Difficulty level (Easy, Medium, Hard)
- Complete ingredient list
- List of ingredients the user doesn't have
- A match score (0-1) based on how well it fits their request

Always return exactly 3 recipe options, ordered by match score (highest first).
Consider dietary restrictions and preferences.`

const detailSystemPrompt = `You are a professional recipe formatter. Convert recipe information into detailed, step-by-step instructions.

Break down recipes into logical phases (e.g., Preparation, Cooking, Finishing).
For each step:
- Provide clear, concise instructions
- Estimate time needed
- Identify if a timer would be helpful, with its duration in seconds
- Add helpful tips where appropriate

Number steps from 1 within each phase.
Make instructions suitable for voice guidance.`

func searchPrompt(q domain.SearchQuery) string {
	restrictions := "None"
	if len(q.DietaryRestrictions) > 0 {
		restrictions = strings.Join(q.DietaryRestrictions, ", ")
	}
	return fmt.Sprintf(`Find recipes for: %s

Available ingredients: %s
Dietary restrictions: %s

Return 3 options that match these criteria.`, q.Description, strings.Join(q.Ingredients, ", "), restrictions)
}

func detailPrompt(opt domain.RecipeOption, fullText string) string {
	return fmt.Sprintf(`Convert this recipe into detailed instructions:

Title: %s
Description: %s
Servings: %d
Ingredients: %s

Full recipe details:
%s

Break this down into clear phases and steps suitable for voice-guided cooking.`,
		opt.Title, opt.Description, opt.Servings, strings.Join(opt.Ingredients, ", "), fullText)
}
