package voice

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mise-app/mise-api/internal/models"
)

// RecipeVoiceContext is the recipe snapshot the assistant speaks from.
// Ingredient amounts are already scaled; Steps keeps the recipe's
// instruction order. CurrentStep is a zero-based index and is always
// clamped to the step range.
type RecipeVoiceContext struct {
	RecipeID    uint     `json:"recipe_id"`
	Title       string   `json:"title"`
	Servings    int      `json:"servings"`
	Multiplier  float64  `json:"multiplier"`
	Ingredients []string `json:"ingredients"`
	Steps       []string `json:"steps"`
	CurrentStep int      `json:"current_step"`
}

// NewRecipeVoiceContext builds the voice context from a stored recipe.
// A multiplier <= 0 means unscaled. The rendered ingredient lines carry
// scaled amounts so the assistant never does arithmetic mid-answer.
func NewRecipeVoiceContext(recipe *models.Recipe, multiplier float64, currentStep int) RecipeVoiceContext {
	if multiplier <= 0 {
		multiplier = 1
	}

	vc := RecipeVoiceContext{
		RecipeID:   recipe.ID,
		Title:      recipe.Title,
		Servings:   scaleServings(recipe.Servings, multiplier),
		Multiplier: multiplier,
		Steps:      append([]string(nil), recipe.Instructions...),
	}

	vc.Ingredients = make([]string, 0, len(recipe.Ingredients))
	for _, ing := range recipe.Ingredients {
		vc.Ingredients = append(vc.Ingredients, renderIngredient(ing, multiplier))
	}

	vc.CurrentStep = clampStep(currentStep, len(vc.Steps))
	return vc
}

// SetStep moves the current step, clamping to the valid range. Returns
// the index actually set.
func (c *RecipeVoiceContext) SetStep(step int) int {
	c.CurrentStep = clampStep(step, len(c.Steps))
	return c.CurrentStep
}

// Advance moves the current step by delta (negative for backwards),
// clamping at the recipe boundaries. Returns the index actually set.
func (c *RecipeVoiceContext) Advance(delta int) int {
	return c.SetStep(c.CurrentStep + delta)
}

// StepText returns the instruction at the current step, or "" when the
// recipe has no steps.
func (c *RecipeVoiceContext) StepText() string {
	if len(c.Steps) == 0 {
		return ""
	}
	return c.Steps[c.CurrentStep]
}

// Vars renders the context into the flat string variables the dialogue
// agent's prompt template consumes. Step numbers are one-based in the
// rendered text because that is how people talk about recipes.
func (c *RecipeVoiceContext) Vars() map[string]string {
	var steps strings.Builder
	for i, s := range c.Steps {
		fmt.Fprintf(&steps, "%d. %s\n", i+1, s)
	}

	return map[string]string{
		"recipe_title": c.Title,
		"servings":     strconv.Itoa(c.Servings),
		"ingredients":  strings.Join(c.Ingredients, "\n"),
		"instructions": strings.TrimRight(steps.String(), "\n"),
		"current_step": strconv.Itoa(c.CurrentStep + 1),
		"total_steps":  strconv.Itoa(len(c.Steps)),
	}
}

func clampStep(step, total int) int {
	if total == 0 {
		return 0
	}
	if step < 0 {
		return 0
	}
	if step >= total {
		return total - 1
	}
	return step
}

func scaleServings(servings int, multiplier float64) int {
	if servings <= 0 {
		return servings
	}
	scaled := int(float64(servings)*multiplier + 0.5)
	if scaled < 1 {
		scaled = 1
	}
	return scaled
}

func renderIngredient(ing models.Ingredient, multiplier float64) string {
	amount := ing.Amount * multiplier

	var b strings.Builder
	if amount > 0 {
		b.WriteString(formatAmount(amount))
		if ing.Unit != "" {
			b.WriteString(" ")
			b.WriteString(ing.Unit)
		}
		b.WriteString(" ")
	}
	b.WriteString(ing.Name)
	if ing.IsEstimated {
		b.WriteString(" (approximate)")
	}
	return b.String()
}

// formatAmount prints scaled amounts the way a cook reads them: whole
// numbers without a decimal point, fractions to at most two places.
func formatAmount(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
