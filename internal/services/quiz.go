package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/minischools/academy-backend/internal/data/repos"
	types "github.com/minischools/academy-backend/internal/domain"
	contentmod "github.com/minischools/academy-backend/internal/modules/content"
	"github.com/minischools/academy-backend/internal/platform/apierr"
	"github.com/minischools/academy-backend/internal/platform/dbctx"
	"github.com/minischools/academy-backend/internal/platform/logger"
	"github.com/minischools/academy-backend/internal/platform/openai"
	"github.com/minischools/academy-backend/internal/prompts"
)

const (
	defaultQuizSize = 5
	maxQuizSize     = 20
	maxPromptText   = 12000
)

type QuizService interface {
	Generate(dbc dbctx.Context, creatorID, chapterID uuid.UUID, count int) (*types.Chapter, error)
	RegenerateQuestion(dbc dbctx.Context, creatorID, chapterID uuid.UUID, index int) (*types.Chapter, error)
	Remove(dbc dbctx.Context, creatorID, chapterID uuid.UUID) (*types.Chapter, error)
}

type quizService struct {
	log      *logger.Logger
	ai       openai.Client
	content  ContentService
	chapters repos.ChapterRepo
	items    repos.ContentItemRepo
}

func NewQuizService(baseLog *logger.Logger, ai openai.Client, content ContentService, chapters repos.ChapterRepo, items repos.ContentItemRepo) QuizService {
	return &quizService{
		log:      baseLog.With("service", "QuizService"),
		ai:       ai,
		content:  content,
		chapters: chapters,
		items:    items,
	}
}

type quizPromptInput struct {
	Count   int
	Chapter string
	Text    string
}

type regeneratePromptInput struct {
	Chapter      string
	Text         string
	QuestionType string
	Question     string
	Existing     []string
}

func (s *quizService) proseChapter(dbc dbctx.Context, creatorID, chapterID uuid.UUID) (*types.Chapter, error) {
	ch, err := s.content.GetChapter(dbc, creatorID, chapterID)
	if err != nil {
		return nil, err
	}
	if ch.Kind == types.ChapterKindCover {
		return nil, apierr.BadRequest("cover_has_no_quiz", errors.New("the cover chapter cannot carry a quiz"))
	}
	return ch, nil
}

func chapterText(ch *types.Chapter) string {
	text := contentmod.PlainText(ch.BodyHTML)
	if r := []rune(text); len(r) > maxPromptText {
		text = string(r[:maxPromptText])
	}
	return text
}

func (s *quizService) Generate(dbc dbctx.Context, creatorID, chapterID uuid.UUID, count int) (*types.Chapter, error) {
	if s.ai == nil {
		return nil, apierr.New(http.StatusServiceUnavailable, "ai_unavailable", errors.New("AI provider not configured"))
	}
	ch, err := s.proseChapter(dbc, creatorID, chapterID)
	if err != nil {
		return nil, err
	}
	if count <= 0 {
		count = defaultQuizSize
	}
	if count > maxQuizSize {
		count = maxQuizSize
	}
	text := chapterText(ch)
	if text == "" {
		return nil, apierr.BadRequest("empty_chapter", errors.New("chapter has no text to quiz on"))
	}

	tpl, err := prompts.Get(prompts.QuizGenerate)
	if err != nil {
		return nil, err
	}
	in := quizPromptInput{Count: count, Chapter: ch.Title, Text: text}
	obj, err := s.ai.GenerateJSON(dbc.Ctx, tpl.System(in), tpl.User(in), tpl.SchemaName, prompts.QuizSchema())
	if err != nil {
		return nil, apierr.New(http.StatusBadGateway, "quiz_generation_failed", err)
	}
	var out struct {
		Questions []types.QuizQuestion `json:"questions"`
	}
	if err := decodeInto(obj, &out); err != nil {
		return nil, apierr.New(http.StatusBadGateway, "quiz_generation_failed", err)
	}
	questions := validQuestions(out.Questions)
	if len(questions) == 0 {
		return nil, apierr.New(http.StatusBadGateway, "quiz_generation_failed", errors.New("model returned no usable questions"))
	}
	if len(questions) > count {
		questions = questions[:count]
	}
	s.log.Info("quiz generated", "chapter_id", ch.ID, "questions", len(questions))
	return s.store(dbc, ch, questions)
}

func (s *quizService) RegenerateQuestion(dbc dbctx.Context, creatorID, chapterID uuid.UUID, index int) (*types.Chapter, error) {
	if s.ai == nil {
		return nil, apierr.New(http.StatusServiceUnavailable, "ai_unavailable", errors.New("AI provider not configured"))
	}
	ch, err := s.proseChapter(dbc, creatorID, chapterID)
	if err != nil {
		return nil, err
	}
	questions := currentQuestions(ch)
	if len(questions) == 0 {
		return nil, apierr.NotFound("quiz_not_found", errors.New("chapter has no quiz"))
	}
	if index < 0 || index >= len(questions) {
		return nil, apierr.BadRequest("invalid_question_index", fmt.Errorf("question index %d out of range [0,%d)", index, len(questions)))
	}

	existing := make([]string, 0, len(questions))
	for _, q := range questions {
		existing = append(existing, questionLabel(q))
	}
	target := questions[index]
	tpl, err := prompts.Get(prompts.QuizQuestionRegenerate)
	if err != nil {
		return nil, err
	}
	in := regeneratePromptInput{
		Chapter:      ch.Title,
		Text:         chapterText(ch),
		QuestionType: target.Type,
		Question:     questionLabel(target),
		Existing:     existing,
	}
	obj, err := s.ai.GenerateJSON(dbc.Ctx, tpl.System(in), tpl.User(in), tpl.SchemaName, prompts.QuizQuestionSchema())
	if err != nil {
		return nil, apierr.New(http.StatusBadGateway, "quiz_generation_failed", err)
	}
	var out struct {
		Question types.QuizQuestion `json:"question"`
	}
	if err := decodeInto(obj, &out); err != nil {
		return nil, apierr.New(http.StatusBadGateway, "quiz_generation_failed", err)
	}
	replacement := validQuestions([]types.QuizQuestion{out.Question})
	if len(replacement) == 0 {
		return nil, apierr.New(http.StatusBadGateway, "quiz_generation_failed", errors.New("model returned an unusable question"))
	}

	next := append([]types.QuizQuestion(nil), questions...)
	next[index] = replacement[0]
	return s.store(dbc, ch, next)
}

func (s *quizService) Remove(dbc dbctx.Context, creatorID, chapterID uuid.UUID) (*types.Chapter, error) {
	ch, err := s.proseChapter(dbc, creatorID, chapterID)
	if err != nil {
		return nil, err
	}
	ch.SetQuiz(nil)
	if err := s.chapters.Save(dbc, ch); err != nil {
		return nil, fmt.Errorf("save chapter: %w", err)
	}
	_ = s.items.UpdateFields(dbc, ch.ContentItemID, nil)
	return ch, nil
}

func (s *quizService) store(dbc dbctx.Context, ch *types.Chapter, questions []types.QuizQuestion) (*types.Chapter, error) {
	editor, shared := contentmod.RenderQuiz(questions)
	ch.SetQuiz(&types.QuizPayload{EditorHTML: editor, SharedHTML: shared, Questions: questions})
	if err := s.chapters.Save(dbc, ch); err != nil {
		return nil, fmt.Errorf("save chapter: %w", err)
	}
	_ = s.items.UpdateFields(dbc, ch.ContentItemID, nil)
	return ch, nil
}

// currentQuestions prefers the structured questions and falls back to
// reading them back out of the shared markup.
func currentQuestions(ch *types.Chapter) []types.QuizQuestion {
	q := ch.QuizPayload()
	if q == nil {
		return nil
	}
	if len(q.Questions) > 0 {
		return q.Questions
	}
	return contentmod.ParseSharedQuiz(q.SharedHTML)
}

func questionLabel(q types.QuizQuestion) string {
	if q.Type == types.QuestionFlipCard {
		return strings.TrimSpace(q.Front + " / " + q.Back)
	}
	return strings.TrimSpace(q.Prompt)
}

// validQuestions drops questions that cannot be rendered and trims the rest.
func validQuestions(in []types.QuizQuestion) []types.QuizQuestion {
	out := make([]types.QuizQuestion, 0, len(in))
	for _, q := range in {
		q.Prompt = strings.TrimSpace(q.Prompt)
		q.Answer = strings.TrimSpace(q.Answer)
		q.Front = strings.TrimSpace(q.Front)
		q.Back = strings.TrimSpace(q.Back)
		q.Explanation = strings.TrimSpace(q.Explanation)
		switch q.Type {
		case types.QuestionMultipleChoice:
			opts := make([]string, 0, len(q.Options))
			for _, o := range q.Options {
				if o = strings.TrimSpace(o); o != "" {
					opts = append(opts, o)
				}
			}
			if q.Prompt == "" || len(opts) < 2 || q.AnswerIndex < 0 || q.AnswerIndex >= len(opts) {
				continue
			}
			q.Options = opts
			q.Answer, q.Front, q.Back = "", "", ""
		case types.QuestionFillBlank:
			if q.Prompt == "" || q.Answer == "" {
				continue
			}
			if !strings.Contains(q.Prompt, contentmod.BlankToken) {
				q.Prompt += " " + contentmod.BlankToken
			}
			q.Options, q.AnswerIndex, q.Front, q.Back = nil, 0, "", ""
		case types.QuestionFlipCard:
			if q.Front == "" || q.Back == "" {
				continue
			}
			q.Options, q.AnswerIndex, q.Prompt, q.Answer = nil, 0, "", ""
		default:
			continue
		}
		out = append(out, q)
	}
	return out
}

func decodeInto(obj map[string]any, out any) error {
	raw, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
