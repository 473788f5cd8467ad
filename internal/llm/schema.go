package llm

// BuildResumeJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// Every property is optional and nullable; objects reject unknown keys.
func BuildResumeJSONSchema() map[string]any {
	education := object(map[string]any{
		"degree":      nullableString(),
		"institution": nullableString(),
		"major":       nullableString(),
		"start_year":  nullableString(),
		"end_year":    nullableString(),
		"gpa":         nullableString(),
	})
	experience := object(map[string]any{
		"title":       nullableString(),
		"company":     nullableString(),
		"start_date":  nullableString(),
		"end_date":    nullableString(),
		"description": nullableString(),
		"location":    nullableString(),
	})
	project := object(map[string]any{
		"name":         nullableString(),
		"description":  nullableString(),
		"technologies": nullableArray(map[string]any{"type": "string"}),
		"start_date":   nullableString(),
		"end_date":     nullableString(),
	})
	contact := object(map[string]any{
		"phone":   nullableString(),
		"email":   nullableString(),
		"address": nullableString(),
	})
	contact["type"] = []string{"object", "null"}

	return object(map[string]any{
		"name":           nullableString(),
		"contact":        contact,
		"education":      nullableArray(education),
		"experience":     nullableArray(experience),
		"projects":       nullableArray(project),
		"skills":         nullableArray(map[string]any{"type": "string"}),
		"languages":      nullableArray(map[string]any{"type": "string"}),
		"certifications": nullableArray(map[string]any{"type": "string"}),
		"summary":        nullableString(),
		"other":          nullableString(),
	})
}

func object(props map[string]any) map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
	}
}

func nullableString() map[string]any {
	return map[string]any{"type": []string{"string", "null"}}
}

func nullableArray(items map[string]any) map[string]any {
	return map[string]any{"type": []string{"array", "null"}, "items": items}
}
