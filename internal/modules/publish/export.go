package publish

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/minischools/academy-backend/internal/modules/content"
	"github.com/minischools/academy-backend/internal/platform/logger"
)

const ImagePlaceholder = "[Image could not be loaded]"

// Document is a content item prepared for export.
type Document struct {
	Title    string
	Author   string
	Chapters []string
}

// Exporter renders documents to PDF and EPUB.
type Exporter struct {
	log          *logger.Logger
	fetcher      ImageFetcher
	fetchLimit   int
	coverArtShow bool
}

type ExporterOption func(*Exporter)

// WithFetchLimit bounds concurrent image downloads.
func WithFetchLimit(n int) ExporterOption { return func(e *Exporter) { e.fetchLimit = n } }

// WithoutCoverArt skips the generated cover for items without a cover image.
func WithoutCoverArt() ExporterOption { return func(e *Exporter) { e.coverArtShow = false } }

func NewExporter(log *logger.Logger, fetcher ImageFetcher, opts ...ExporterOption) *Exporter {
	e := &Exporter{
		log:          log.With("component", "Exporter"),
		fetcher:      fetcher,
		fetchLimit:   4,
		coverArtShow: true,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// printableChapter is a chapter reduced to what belongs on paper: the prose
// and the editor quiz. The interactive quiz is dropped.
type printableChapter struct {
	Title string
	HTML  string
}

func printableChapters(chapters []string) (coverURL string, out []printableChapter) {
	cover, rest := content.SplitCover(chapters)
	coverURL = SafeURL(content.CoverURL(cover))
	for i, raw := range rest {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		ch := content.DecodeChapter(raw)
		body := ch.BodyHTML
		if q := ch.QuizPayload(); q != nil {
			body += q.EditorHTML
		}
		title := ch.Title
		if title == "" {
			title = "Chapter " + strconv.Itoa(i+1)
		}
		out = append(out, printableChapter{Title: title, HTML: body})
	}
	return coverURL, out
}

func imageURLs(coverURL string, chapters []printableChapter) []string {
	var urls []string
	if coverURL != "" {
		urls = append(urls, coverURL)
	}
	for _, ch := range chapters {
		doc, _, err := content.FragmentDocument(ch.HTML)
		if err != nil {
			continue
		}
		doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
			if src := SafeURL(s.AttrOr("src", "")); src != "" {
				urls = append(urls, src)
			}
		})
	}
	return urls
}
