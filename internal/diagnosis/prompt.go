package diagnosis

import (
	"strings"
)

const basePrompt = `You are a friendly plant health expert. Look at the plant in this image and assess its health.

Respond with a single JSON object with exactly these fields:
{
  "name": "common name of the plant (and scientific name if known)",
  "status": "one of: healthy, unhealthy, diseased, pest_infested, nutrient_deficient, stressed, unknown",
  "confidence": "integer from 0 to 100 describing how confident you are",
  "problem": "short description of the main problem, or empty if healthy",
  "cause": "most likely cause of the problem",
  "treatment": "practical steps to treat the problem",
  "prevention": "how to prevent this in the future"
}

If you cannot identify the plant or its condition, use "unknown" for status and a low confidence.`

// BuildPrompt returns the diagnosis instruction text. The user's label and
// any additional information are appended when present.
func BuildPrompt(additionalInfo, label string) string {
	var b strings.Builder
	b.WriteString(basePrompt)

	if label = strings.TrimSpace(label); label != "" {
		b.WriteString("\n\nThe user has labeled this plant as: ")
		b.WriteString(label)
	}
	if additionalInfo = strings.TrimSpace(additionalInfo); additionalInfo != "" {
		b.WriteString("\n\nAdditional information from the user: ")
		b.WriteString(additionalInfo)
	}

	b.WriteString("\n\nRespond with ONLY the JSON object, no additional text.")
	return b.String()
}
