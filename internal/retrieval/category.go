// ABOUTME: Category inference for retrieval filtering.
// ABOUTME: Keyword heuristics deciding software vs. electrical queries.

package retrieval

import "strings"

// Category tags carried by corpus records.
const (
	CategorySoftware   = "software"
	CategoryElectrical = "electrical"
)

// CategoryKeywords maps a category to the query keywords that select it.
// Exposed as a variable so deployments can tune the vocabulary.
var CategoryKeywords = map[string][]string{
	CategoryElectrical: {
		"ups", "generator", "ats", "transformer", "relay", "wiring",
		"electrical", "data center", "voltage", "load bank", "retrofit",
		"commissioning", "pcb", "microcontroller", "esp32", "hardware",
	},
	CategorySoftware: {
		"python", "code", "project", "github", "api", "websocket",
		"model", "async", "chatbot", "frontend", "backend", "software",
	},
}

// InferCategory guesses the corpus category a question targets, returning ""
// when no keyword set matches (no filter). Electrical keywords win ties since
// several software terms are generic.
func InferCategory(question string) string {
	q := strings.ToLower(question)

	for _, word := range CategoryKeywords[CategoryElectrical] {
		if strings.Contains(q, word) {
			return CategoryElectrical
		}
	}
	for _, word := range CategoryKeywords[CategorySoftware] {
		if strings.Contains(q, word) {
			return CategorySoftware
		}
	}
	return ""
}
