// Package manhwa turns a chapter request into a PDF sent to the chat.
package manhwa

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"nimebot/internal/catalog"
)

// Catalog is the subset of the catalog client the producer needs.
type Catalog interface {
	SearchManhwa(ctx context.Context, title string) []catalog.Entry
	ManhwaDetails(ctx context.Context, id catalog.ID) (*catalog.ManhwaDetails, error)
	ChapterImages(ctx context.Context, chapterURL string) ([]string, error)
	FetchImage(ctx context.Context, rawURL string) ([]byte, error)
}

type Selector interface {
	SelectBest(ctx context.Context, title string, candidates []catalog.Entry) catalog.Entry
}

// Replier is the chat side of one request. *chat.Reply implements it.
type Replier interface {
	Update(ctx context.Context, text string) error
	Document(ctx context.Context, data []byte, filename, mimetype, caption string) error
}

// Stage names the step a request failed in.
type Stage string

const (
	StageSearch   Stage = "search"
	StageDetails  Stage = "details"
	StageChapters Stage = "chapters"
	StageImages   Stage = "images"
	StageDownload Stage = "download"
	StagePDF      Stage = "pdf"
	StageSend     Stage = "send"
)

const (
	synopsisRunes = 300
	// progressEvery is how many pages pass between progress edits.
	progressEvery = 2
)

var stageMessages = map[Stage]string{
	StageSearch:   "❌ I couldn't find that manhwa.",
	StageDetails:  "❌ Failed to load the manhwa details.",
	StageChapters: "❌ This manhwa has no chapters yet.",
	StageImages:   "❌ Couldn't get the pages of that chapter.",
	StageDownload: "❌ Couldn't download any page of that chapter.",
	StagePDF:      "❌ Failed to build the PDF.",
	StageSend:     "❌ Failed to send the PDF.",
}

// StageError is returned by Produce; its message has already been shown to
// the user.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("manhwa %s failed", e.Stage)
	}
	return fmt.Sprintf("manhwa %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// UserMessage is the text shown for a failure in stage s.
func UserMessage(s Stage) string {
	return stageMessages[s]
}

type Producer struct {
	catalog  Catalog
	selector Selector
	log      zerolog.Logger
}

func NewProducer(c Catalog, s Selector, log zerolog.Logger) *Producer {
	return &Producer{catalog: c, selector: s, log: log.With().Str("component", "manhwa").Logger()}
}

// Produce looks up the chapter, builds its PDF and sends it. It returns the
// final text shown to the user. A partial document is never sent.
func (p *Producer) Produce(ctx context.Context, title string, chapter int, r Replier) (string, error) {
	log := p.log.With().Str("title", title).Int("chapter", chapter).Logger()

	results := p.catalog.SearchManhwa(ctx, title)
	if len(results) == 0 {
		return p.fail(ctx, r, log, StageSearch, nil)
	}
	entry := p.selector.SelectBest(ctx, title, results)

	details, err := p.catalog.ManhwaDetails(ctx, entry.ID)
	if err != nil {
		return p.fail(ctx, r, log, StageDetails, err)
	}
	if details.Title == "" {
		details.Title = entry.Title
	}
	ch, exact, ok := catalog.SelectChapter(details.Chapters, chapter)
	if !ok {
		return p.fail(ctx, r, log, StageChapters, nil)
	}
	if !exact {
		log.Info().Float64("using", float64(ch.Number)).Msg("requested chapter missing, using first listed")
	}

	urls, err := p.catalog.ChapterImages(ctx, ch.URL)
	if err == nil && len(urls) == 0 {
		err = errors.New("chapter has no images")
	}
	if err != nil {
		return p.fail(ctx, r, log, StageImages, err)
	}

	label := chapterLabel(ch)
	p.update(ctx, r, fmt.Sprintf("📥 Downloading *%s* %s (%d pages)...", details.Title, label, len(urls)))

	downloaded := make([][]byte, 0, len(urls))
	for i, u := range urls {
		data, err := p.catalog.FetchImage(ctx, u)
		if err != nil {
			log.Warn().Err(err).Str("url", u).Msg("page dropped")
		} else {
			downloaded = append(downloaded, data)
		}
		if done := i + 1; done%progressEvery == 0 || done == len(urls) {
			p.update(ctx, r, fmt.Sprintf("📥 Downloading pages %d/%d", done, len(urls)))
		}
	}
	if len(downloaded) == 0 {
		return p.fail(ctx, r, log, StageDownload, nil)
	}

	var pages []Page
	for i, data := range downloaded {
		strips, err := Normalize(data)
		if err != nil {
			log.Warn().Err(err).Int("index", i).Msg("page dropped")
		} else {
			pages = append(pages, strips...)
		}
		if done := i + 1; done%progressEvery == 0 || done == len(downloaded) {
			p.update(ctx, r, fmt.Sprintf("🛠️ Processing pages %d/%d", done, len(downloaded)))
		}
	}
	if len(pages) == 0 {
		return p.fail(ctx, r, log, StagePDF, errors.New("no decodable pages"))
	}

	doc, err := BuildPDF(details.Title+" - "+label, pages)
	if err != nil {
		return p.fail(ctx, r, log, StagePDF, err)
	}

	filename := FileName(details.Title, label)
	if err := r.Document(ctx, doc, filename, "application/pdf", Caption(details, label)); err != nil {
		return p.fail(ctx, r, log, StageSend, err)
	}

	done := fmt.Sprintf("✅ *%s* %s is ready (%d pages).", details.Title, label, len(pages))
	p.update(ctx, r, done)
	log.Info().Int("images", len(urls)).Int("downloaded", len(downloaded)).Int("pages", len(pages)).Int("bytes", len(doc)).Msg("chapter sent")
	return done, nil
}

func (p *Producer) fail(ctx context.Context, r Replier, log zerolog.Logger, stage Stage, err error) (string, error) {
	log.Warn().Err(err).Str("stage", string(stage)).Msg("manhwa request failed")
	msg := UserMessage(stage)
	p.update(ctx, r, msg)
	return msg, &StageError{Stage: stage, Err: err}
}

func (p *Producer) update(ctx context.Context, r Replier, text string) {
	if err := r.Update(ctx, text); err != nil {
		p.log.Debug().Err(err).Msg("status update failed")
	}
}

func chapterLabel(ch catalog.Chapter) string {
	if name := strings.TrimSpace(ch.Name); name != "" {
		return name
	}
	return "Chapter " + ch.Number.String()
}

var fileNameReplacer = strings.NewReplacer("/", "-", `\`, "-", ":", " ", "*", "", "?", "", `"`, "", "<", "", ">", "", "|", "")

// FileName returns "<title> - <chapter>.pdf" with path-hostile characters removed.
func FileName(title, chapter string) string {
	return strings.TrimSpace(fileNameReplacer.Replace(title+" - "+chapter)) + ".pdf"
}

// Caption describes the series under the sent document.
func Caption(d *catalog.ManhwaDetails, chapter string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📖 *%s*\n", d.Title)
	if d.Score != "" {
		fmt.Fprintf(&b, "⭐ Score: %s\n", d.Score)
	}
	if d.Status != "" {
		fmt.Fprintf(&b, "📌 Status: %s\n", d.Status)
	}
	fmt.Fprintf(&b, "📑 %s\n", chapter)
	if d.Author != "" {
		fmt.Fprintf(&b, "✍️ Author: %s\n", d.Author)
	}
	if len(d.Genres) > 0 {
		fmt.Fprintf(&b, "🏷️ Genres: %s\n", strings.Join(d.Genres, ", "))
	}
	if s := strings.TrimSpace(d.Synopsis); s != "" {
		b.WriteString("\n")
		b.WriteString(truncateRunes(s, synopsisRunes))
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "..."
}
