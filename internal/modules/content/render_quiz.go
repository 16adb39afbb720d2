package content

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	nethtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	types "github.com/minischools/academy-backend/internal/domain"
)

// BlankToken marks the gap in a fill-in-the-blank prompt.
const BlankToken = "___"

// RenderQuiz renders questions as the editor block (starting with the
// Exercises heading) and the interactive shared block.
func RenderQuiz(questions []types.QuizQuestion) (editorHTML, sharedHTML string) {
	return renderEditorQuiz(questions), renderSharedQuiz(questions)
}

func renderEditorQuiz(questions []types.QuizQuestion) string {
	var b strings.Builder
	b.WriteString(ExercisesHeading)
	for i, q := range questions {
		n := i + 1
		switch q.Type {
		case types.QuestionMultipleChoice:
			fmt.Fprintf(&b, `<div class="quiz-question" data-type="multiple_choice"><p><strong>%d.</strong> %s</p><ol type="A">`, n, esc(q.Prompt))
			for _, opt := range q.Options {
				fmt.Fprintf(&b, "<li>%s</li>", esc(opt))
			}
			b.WriteString("</ol>")
			if q.AnswerIndex >= 0 && q.AnswerIndex < len(q.Options) {
				fmt.Fprintf(&b, `<p class="quiz-answer"><em>Answer: %s</em></p>`, string(rune('A'+q.AnswerIndex)))
			}
			b.WriteString("</div>")
		case types.QuestionFillBlank:
			fmt.Fprintf(&b, `<div class="quiz-question" data-type="fill_blank"><p><strong>%d.</strong> %s</p><p class="quiz-answer"><em>Answer: %s</em></p></div>`,
				n, esc(q.Prompt), esc(q.Answer))
		case types.QuestionFlipCard:
			fmt.Fprintf(&b, `<div class="quiz-question" data-type="flip_card"><p><strong>%d. Front:</strong> %s</p><p><strong>Back:</strong> %s</p></div>`,
				n, esc(q.Front), esc(q.Back))
		}
	}
	return b.String()
}

func renderSharedQuiz(questions []types.QuizQuestion) string {
	var b strings.Builder
	b.WriteString(`<div class="quiz-container">`)
	for _, q := range questions {
		switch q.Type {
		case types.QuestionMultipleChoice:
			fmt.Fprintf(&b, `<div class="quiz-question" data-type="multiple_choice" data-answer="%d"><p class="quiz-prompt">%s</p><ul class="quiz-options">`,
				q.AnswerIndex, esc(q.Prompt))
			for i, opt := range q.Options {
				fmt.Fprintf(&b, `<li class="quiz-option" data-index="%d"><span class="quiz-circle"></span><span class="quiz-option-text">%s</span></li>`, i, esc(opt))
			}
			b.WriteString("</ul>")
			writeExplanation(&b, q.Explanation)
			b.WriteString("</div>")
		case types.QuestionFillBlank:
			fmt.Fprintf(&b, `<div class="quiz-question" data-type="fill_blank" data-answer="%s"><p class="quiz-prompt">`, esc(q.Answer))
			// Only the outer edges are trimmed; the spaces around the blank stay.
			before, after, found := strings.Cut(strings.TrimSpace(q.Prompt), BlankToken)
			b.WriteString(html.EscapeString(before))
			fmt.Fprintf(&b, `<input type="text" class="fill-blank-input" data-answer="%s">`, esc(q.Answer))
			if found {
				b.WriteString(html.EscapeString(after))
			}
			b.WriteString("</p>")
			writeExplanation(&b, q.Explanation)
			b.WriteString("</div>")
		case types.QuestionFlipCard:
			fmt.Fprintf(&b, `<div class="flip-card" data-type="flip_card"><div class="flip-card-inner"><div class="flip-card-front">%s</div><div class="flip-card-back">%s</div></div></div>`,
				esc(q.Front), esc(q.Back))
		}
	}
	b.WriteString(`<button type="button" class="check-answers-btn">Check Answers</button><p class="quiz-score"></p></div>`)
	return b.String()
}

func writeExplanation(b *strings.Builder, explanation string) {
	if strings.TrimSpace(explanation) == "" {
		return
	}
	fmt.Fprintf(b, `<p class="quiz-explanation" hidden>%s</p>`, esc(explanation))
}

// esc escapes text for element content and attribute values. Escaping "<"
// also keeps sentinel comments from appearing inside generated questions.
func esc(s string) string { return html.EscapeString(strings.TrimSpace(s)) }

// ParseSharedQuiz recovers structured questions from a shared quiz block.
// Unrecognized markup is skipped.
func ParseSharedQuiz(sharedHTML string) []types.QuizQuestion {
	if strings.TrimSpace(sharedHTML) == "" {
		return nil
	}
	doc, _, err := FragmentDocument(sharedHTML)
	if err != nil {
		return nil
	}
	var out []types.QuizQuestion
	doc.Find(`.quiz-question, .flip-card`).Each(func(_ int, sel *goquery.Selection) {
		typ, _ := sel.Attr("data-type")
		if typ == "" && sel.HasClass("flip-card") {
			typ = types.QuestionFlipCard
		}
		switch typ {
		case types.QuestionMultipleChoice:
			q := types.QuizQuestion{Type: typ, Prompt: collapseSpace(sel.Find(".quiz-prompt").First().Text())}
			sel.Find(".quiz-option").Each(func(_ int, opt *goquery.Selection) {
				text := opt.Find(".quiz-option-text").Text()
				if text == "" {
					text = opt.Text()
				}
				q.Options = append(q.Options, collapseSpace(text))
			})
			if v, ok := sel.Attr("data-answer"); ok {
				if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
					q.AnswerIndex = n
				}
			}
			q.Explanation = collapseSpace(sel.Find(".quiz-explanation").Text())
			out = append(out, q)
		case types.QuestionFillBlank:
			q := types.QuizQuestion{Type: typ}
			q.Answer, _ = sel.Attr("data-answer")
			if prompt := sel.Find(".quiz-prompt").First(); prompt.Length() > 0 {
				q.Prompt = collapseSpace(blankText(prompt.Get(0)))
			}
			q.Explanation = collapseSpace(sel.Find(".quiz-explanation").Text())
			out = append(out, q)
		case types.QuestionFlipCard:
			out = append(out, types.QuizQuestion{
				Type:  types.QuestionFlipCard,
				Front: collapseSpace(sel.Find(".flip-card-front").Text()),
				Back:  collapseSpace(sel.Find(".flip-card-back").Text()),
			})
		}
	})
	return out
}

// blankText returns the text of n with each input replaced by BlankToken.
func blankText(n *nethtml.Node) string {
	var b strings.Builder
	var visit func(*nethtml.Node)
	visit = func(n *nethtml.Node) {
		if n.Type == nethtml.TextNode {
			b.WriteString(n.Data)
			return
		}
		if n.Type == nethtml.ElementNode && n.DataAtom == atom.Input {
			b.WriteString(BlankToken)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return b.String()
}
