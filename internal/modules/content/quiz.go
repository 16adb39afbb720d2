package content

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	SharedQuizStart  = "<!-- SHARED_QUIZ_START -->"
	SharedQuizEnd    = "<!-- SHARED_QUIZ_END -->"
	ExercisesHeading = "<h2>Exercises</h2>"

	exercisesTitle    = "Exercises"
	sharedStartMarker = "SHARED_QUIZ_START"
	sharedEndMarker   = "SHARED_QUIZ_END"
)

// ExtractedQuiz is the two renderings recovered from a chapter.
type ExtractedQuiz struct {
	EditorContent string `json:"editorContent"`
	SharedContent string `json:"sharedContent"`
}

// EmbedQuiz builds the stored chapter string:
// <h1>title</h1>body editor <!-- SHARED_QUIZ_START -->shared<!-- SHARED_QUIZ_END -->.
func EmbedQuiz(editorHTML, sharedHTML, chapterTitle, chapterBodyHTML string) string {
	var b strings.Builder
	b.Grow(len(editorHTML) + len(sharedHTML) + len(chapterTitle) + len(chapterBodyHTML) + 64)
	b.WriteString("<h1>")
	b.WriteString(chapterTitle)
	b.WriteString("</h1>")
	b.WriteString(chapterBodyHTML)
	b.WriteString(editorHTML)
	b.WriteString(SharedQuizStart)
	b.WriteString(sharedHTML)
	b.WriteString(SharedQuizEnd)
	return b.String()
}

// quizSpan locates the quiz region of a chapter string by byte offsets.
// editor is [editorStart, editorEnd) and shared is [sharedStart, sharedEnd),
// with -1 for absent parts. The region that EmbedQuiz appended starts at
// regionStart and ends at regionEnd.
type quizSpan struct {
	editorStart, editorEnd int
	sharedStart, sharedEnd int
	regionStart, regionEnd int
}

func locateQuiz(s string) (quizSpan, bool) {
	sp := quizSpan{editorStart: -1, editorEnd: -1, sharedStart: -1, sharedEnd: -1}

	startIdx := strings.Index(s, SharedQuizStart)
	endIdx := -1
	if startIdx >= 0 {
		if rel := strings.Index(s[startIdx+len(SharedQuizStart):], SharedQuizEnd); rel >= 0 {
			endIdx = startIdx + len(SharedQuizStart) + rel
		}
	}
	hasShared := startIdx >= 0 && endIdx >= 0

	// The editor block is the last Exercises heading before the shared block
	// so an "Exercises" section in the prose itself is not swallowed. A
	// hand-edited editor block holding a second raw heading is split there;
	// generated blocks escape question text and never contain one.
	searchLimit := len(s)
	if hasShared {
		searchLimit = startIdx
	}
	if i := strings.LastIndex(s[:searchLimit], ExercisesHeading); i >= 0 {
		sp.editorStart = i
		sp.editorEnd = searchLimit
	}

	if hasShared {
		sp.sharedStart = startIdx + len(SharedQuizStart)
		sp.sharedEnd = endIdx
	}

	switch {
	case sp.editorStart >= 0 && hasShared:
		sp.regionStart, sp.regionEnd = sp.editorStart, endIdx+len(SharedQuizEnd)
	case sp.editorStart >= 0:
		sp.regionStart, sp.regionEnd = sp.editorStart, len(s)
	case hasShared:
		sp.regionStart, sp.regionEnd = startIdx, endIdx+len(SharedQuizEnd)
	default:
		return sp, false
	}
	return sp, true
}

// ExtractQuiz recovers the editor and shared quiz renderings. It returns nil
// when neither part is present.
func ExtractQuiz(chapterHTML string) *ExtractedQuiz {
	sp, ok := locateQuiz(chapterHTML)
	if !ok {
		return nil
	}
	out := &ExtractedQuiz{}
	if sp.editorStart >= 0 {
		out.EditorContent = chapterHTML[sp.editorStart:sp.editorEnd]
	}
	if sp.sharedStart >= 0 {
		out.SharedContent = chapterHTML[sp.sharedStart:sp.sharedEnd]
	}
	return out
}

// StripQuiz removes every quiz block from chapter HTML by walking the parsed
// tree: each h2 whose text is exactly "Exercises" together with its following
// siblings up to the next h2, each SHARED_QUIZ_START..END comment range, and
// any stray quiz comments. Input with nothing to remove is returned as is.
func StripQuiz(chapterHTML string) string {
	if !strings.Contains(chapterHTML, exercisesTitle) && !strings.Contains(strings.ToUpper(chapterHTML), "QUIZ") {
		return chapterHTML
	}
	return stripQuizTree(chapterHTML, false)
}

// stripQuizTree does the tree walk. When a start marker has no sibling end
// marker the shared block is cut by byte offsets and the walk repeats on the
// remainder. spliced forces a re-render so the result is well formed.
func stripQuizTree(chapterHTML string, spliced bool) string {
	doc, root, err := FragmentDocument(chapterHTML)
	if err != nil {
		return chapterHTML
	}

	var doomed []*html.Node
	doc.Find("h2").Each(func(_ int, sel *goquery.Selection) {
		if strings.TrimSpace(sel.Text()) != exercisesTitle {
			return
		}
		h := sel.Get(0)
		doomed = append(doomed, h)
		for n := h.NextSibling; n != nil; n = n.NextSibling {
			if n.Type == html.ElementNode && n.DataAtom == atom.H2 {
				break
			}
			doomed = append(doomed, n)
		}
	})
	unpaired := false
	walk(root, func(n *html.Node) {
		if n.Type != html.CommentNode || !isMarker(n, sharedStartMarker) {
			return
		}
		for m := n.NextSibling; m != nil; m = m.NextSibling {
			if m.Type == html.CommentNode && isMarker(m, sharedEndMarker) {
				for k := n.NextSibling; k != m; k = k.NextSibling {
					doomed = append(doomed, k)
				}
				return
			}
		}
		unpaired = true
	})
	if unpaired {
		if sp, ok := locateQuiz(chapterHTML); ok && sp.sharedStart >= 0 {
			cut := chapterHTML[:sp.sharedStart-len(SharedQuizStart)] + chapterHTML[sp.sharedEnd+len(SharedQuizEnd):]
			return stripQuizTree(cut, true)
		}
	}
	walk(root, func(n *html.Node) {
		if n.Type == html.CommentNode && isQuizComment(n) {
			doomed = append(doomed, n)
		}
	})

	if len(doomed) == 0 && !spliced {
		return chapterHTML
	}
	for _, n := range doomed {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
	return RenderChildren(root)
}

func isMarker(n *html.Node, marker string) bool {
	return strings.TrimSpace(n.Data) == marker
}

func isQuizComment(n *html.Node) bool {
	d := strings.ToUpper(n.Data)
	return strings.Contains(d, "SHARED_QUIZ") || strings.Contains(d, "QUIZ_DATA")
}

// walk visits n and its descendants in document order. fn must not detach
// nodes.
func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}
