package prompts

func questionSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"type", "prompt", "options", "answer_index", "answer", "front", "back", "explanation"},
		"properties": map[string]any{
			"type":         map[string]any{"type": "string", "enum": []string{"multiple_choice", "fill_blank", "flip_card"}},
			"prompt":       map[string]any{"type": "string"},
			"options":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"answer_index": map[string]any{"type": "integer"},
			"answer":       map[string]any{"type": "string"},
			"front":        map[string]any{"type": "string"},
			"back":         map[string]any{"type": "string"},
			"explanation":  map[string]any{"type": "string"},
		},
	}
}

// QuizSchema is the structured output for a full quiz.
func QuizSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"questions"},
		"properties": map[string]any{
			"questions": map[string]any{"type": "array", "items": questionSchema()},
		},
	}
}

// QuizQuestionSchema is the structured output for one replacement question.
func QuizQuestionSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"question"},
		"properties": map[string]any{
			"question": questionSchema(),
		},
	}
}
