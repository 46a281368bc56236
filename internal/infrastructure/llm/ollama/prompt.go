package ollama

import (
	"fmt"
	"strings"

	"github.com/kirillkom/stablebooks/internal/core/domain"
)

const maxPromptDocument = 12000

func buildInvoicePrompt(text string, categories []domain.Category) string {
	snippet := text
	if len(snippet) > maxPromptDocument {
		snippet = strings.ToValidUTF8(snippet[:maxPromptDocument], "")
	}

	var catalog strings.Builder
	for _, cat := range categories {
		fmt.Fprintf(&catalog, "- %s: %s", cat.ID, cat.Name)
		if len(cat.Subcategories) > 0 {
			names := make([]string, 0, len(cat.Subcategories))
			for _, sub := range cat.Subcategories {
				names = append(names, sub.Name)
			}
			fmt.Fprintf(&catalog, " (%s)", strings.Join(names, ", "))
		}
		catalog.WriteString("\n")
	}

	return `You extract data from an equine service provider invoice.
Return one strict JSON object with keys:
invoice_number (string), invoice_date (YYYY-MM-DD or empty), total (decimal string or empty),
currency (ISO code), provider_name (string), category (one category id from the list),
horse_name (horse the whole invoice is for, or empty),
items (array of {description, amount, suggested_category, horse_name}).
Set an item's suggested_category only when it clearly belongs to a different category than the invoice.
Use horse names exactly as printed.
No markdown, no extra keys.

Categories:
` + catalog.String() + `
Invoice:
` + snippet
}
