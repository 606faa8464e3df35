package pipeline

import (
	"strings"

	"github.com/pvoronov/homeledger/internal/domain"
)

// buildCategoriesPrompt formats the active taxonomy for the model, with
// assignment rules constraining what it may output.
func buildCategoriesPrompt(categories []domain.Category) string {
	var b strings.Builder
	b.WriteString("Use ONLY the following categories:\n\n")

	for _, c := range categories {
		b.WriteString("  - " + c.Name + "\n")
	}

	b.WriteString("\nCATEGORY ASSIGNMENT RULES:\n")
	b.WriteString("1. Category must be EXACTLY one of the category names shown above.\n")
	b.WriteString("2. If you are unsure, use category \"Other\".\n")
	b.WriteString("3. Never invent a category that is not in the list.\n")

	return b.String()
}

// buildExtractionPrompt assembles the full instruction text for one
// statement.
func buildExtractionPrompt(categories []domain.Category, defaultCurrency string) string {
	basePrompt :=
		"You are a financial statement parser for personal bank and card statements.\n\n" +
			"Task:\n" +
			"- Parse ALL transactions in the attached statement.\n" +
			"- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n" +
			"- Output a JSON array of objects.\n\n" +
			"Each object must have these fields:\n" +
			"- \"date\": string, ISO format \"YYYY-MM-DD\"\n" +
			"- \"description\": string\n" +
			"- \"amount\": number (positive for money IN, negative for money OUT)\n" +
			"- \"currency\": string (e.g. \"" + defaultCurrency + "\"; use \"" + defaultCurrency + "\" if the statement does not say)\n" +
			"- \"category\": string (one of the predefined categories)\n\n"

	rulesPrompt :=
		"Rules:\n" +
			"- If the statement has separate \"paid out\" / \"paid in\" columns, convert to a single signed \"amount\".\n" +
			"- Keep the description exactly as printed, without truncation.\n\n" +
			"Return ONLY valid raw JSON.\n" +
			"Do NOT wrap the response in code fences.\n" +
			"Do NOT use ```json or any Markdown.\n" +
			"Output must begin with \"[\" and end with \"]\".\n"

	return basePrompt + "\n" + buildCategoriesPrompt(categories) + "\n\n" + rulesPrompt
}
