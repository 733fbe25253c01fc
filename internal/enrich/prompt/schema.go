package prompt

import "encoding/json"

// AttributesSchema is the JSON schema for enrichment output.
var AttributesSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"subject": map[string]any{
			"type":        "string",
			"description": "Main visual subject of the passage, a few words",
		},
		"setting": map[string]any{
			"type":        []string{"string", "null"},
			"description": "Physical setting if present, null otherwise",
		},
		"mood": map[string]any{
			"type":        "string",
			"description": "Single short mood word or phrase, lowercase",
		},
		"palette": map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string"},
			"maxItems":    4,
			"description": "Dominant colors implied by the passage",
		},
		"time_of_day": map[string]any{
			"type":        "string",
			"enum":        []string{"morning", "day", "evening", "night", "unknown"},
			"description": "Time of day if implied",
		},
		"style_hints": map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string"},
			"maxItems":    3,
			"description": "Short phrases useful for an illustrator",
		},
	},
	"required":             []string{"subject", "mood", "time_of_day"},
	"additionalProperties": false,
}

// SchemaJSON returns the attributes schema serialized for validator compilation.
func SchemaJSON() []byte {
	data, err := json.Marshal(AttributesSchema)
	if err != nil {
		// The schema is a static literal; marshalling cannot fail at runtime.
		panic(err)
	}
	return data
}
