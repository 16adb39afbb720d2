package domain

const (
	QuestionMultipleChoice = "multiple_choice"
	QuestionFillBlank      = "fill_blank"
	QuestionFlipCard       = "flip_card"
)

// QuizQuestion is one quiz item. Which fields are meaningful depends on Type:
// multiple_choice uses Options and AnswerIndex, fill_blank uses Prompt (with
// "___" marking the blank) and Answer, flip_card uses Front and Back.
type QuizQuestion struct {
	Type        string   `json:"type"`
	Prompt      string   `json:"prompt,omitempty"`
	Options     []string `json:"options,omitempty"`
	AnswerIndex int      `json:"answer_index"`
	Answer      string   `json:"answer,omitempty"`
	Front       string   `json:"front,omitempty"`
	Back        string   `json:"back,omitempty"`
	Explanation string   `json:"explanation,omitempty"`
}

// QuizPayload is a chapter's quiz in both renderings plus the structured
// questions it was rendered from.
type QuizPayload struct {
	EditorHTML string         `json:"editor_html"`
	SharedHTML string         `json:"shared_html"`
	Questions  []QuizQuestion `json:"questions,omitempty"`
}
