package ollama

import "fmt"

func buildRewritePrompt(query, tenantID string) string {
	town := tenantID
	if town == "" {
		town = "the town"
	}
	return fmt.Sprintf(`Rewrite the resident question below into the formal vocabulary used in %s municipal documents (zoning by-laws, general by-laws, permit guides, fee schedules, meeting minutes).
Keep it one line. Keep every concrete detail. Do not answer the question. Output only the rewritten query, no quotes, no labels.

Question: %s`, town, query)
}
