// Package subtitle generates translated subtitle tracks for an episode by
// fanning translation requests out over chunks of the base track.
package subtitle

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"nimebot/internal/catalog"
	"nimebot/internal/intent"
)

// Backend is the subset of the catalog client the producer needs.
type Backend interface {
	Subtitles(ctx context.Context, episodeID catalog.ID) ([]catalog.Track, error)
	FetchText(ctx context.Context, rawURL string) (string, error)
	Translate(ctx context.Context, r catalog.TranslateRequest) (string, error)
	SaveSubtitle(ctx context.Context, episodeID catalog.ID, lang, content string) (string, error)
	SaveSubtitleRecord(ctx context.Context, episodeID catalog.ID, lang, subtitleURL string) error
}

// Notifier receives progress text. *chat.Reply implements it.
type Notifier interface {
	Update(ctx context.Context, text string) error
}

type Producer struct {
	backend Backend
	log     zerolog.Logger
}

func NewProducer(backend Backend, log zerolog.Logger) *Producer {
	return &Producer{backend: backend, log: log.With().Str("component", "subtitle").Logger()}
}

// Generate produces a subtitle in lang for the episode and returns its URL.
// Every outcome is reported through n; ok is false when nothing was stored.
func (p *Producer) Generate(ctx context.Context, episodeID catalog.ID, lang string, n Notifier) (string, bool) {
	log := p.log.With().Str("episode_id", episodeID.String()).Str("lang", lang).Logger()
	name := LanguageName(lang)

	tracks, err := p.backend.Subtitles(ctx, episodeID)
	if err != nil {
		log.Warn().Err(err).Msg("subtitle listing failed")
		p.notify(ctx, n, "❌ Subtitle is not available for this episode.")
		return "", false
	}
	if existing, ok := findTrack(tracks, lang); ok {
		log.Info().Str("url", existing.URL).Msg("reusing stored subtitle")
		p.notify(ctx, n, fmt.Sprintf("✅ %s subtitle:\n%s", name, existing.URL))
		return existing.URL, true
	}

	base, ok := baseTrack(tracks)
	if !ok {
		log.Warn().Msg("episode has no base subtitle")
		p.notify(ctx, n, "❌ Subtitle is not available for this episode.")
		return "", false
	}
	raw, err := p.backend.FetchText(ctx, base.URL)
	if err != nil {
		log.Warn().Err(err).Str("url", base.URL).Msg("base subtitle download failed")
		p.notify(ctx, n, "❌ Subtitle is not available for this episode.")
		return "", false
	}
	lines := splitLines(raw)
	if len(lines) == 0 {
		log.Warn().Str("url", base.URL).Msg("base subtitle is empty")
		p.notify(ctx, n, "❌ Subtitle is not available for this episode.")
		return "", false
	}

	job := NewJob(len(lines))
	log.Info().Int("lines", len(lines)).Int("chunks", len(job.Chunks)).Msg("translating subtitle")
	p.notify(ctx, n, fmt.Sprintf("📝 Translating %s subtitle... 0%%", name))

	var g errgroup.Group
	for i, r := range job.Chunks {
		g.Go(func() error {
			text, err := p.backend.Translate(ctx, catalog.TranslateRequest{
				Lang:      lang,
				EpisodeID: episodeID,
				StartLine: r.Start,
				EndLine:   r.End,
			})
			if err != nil {
				log.Warn().Err(err).Int("start", r.Start).Int("end", r.End).Msg("chunk translation failed")
				text = ""
			}
			pct := job.Settle(i, text)
			p.notify(ctx, n, fmt.Sprintf("📝 Translating %s subtitle... %d%%", name, pct))
			return nil
		})
	}
	_ = g.Wait()

	content := strings.Join(job.Results, "\n")
	url, err := p.backend.SaveSubtitle(ctx, episodeID, lang, content)
	if err != nil {
		log.Error().Err(err).Msg("saving subtitle failed")
		p.notify(ctx, n, "❌ Failed to save the subtitle.")
		return "", false
	}
	if err := p.backend.SaveSubtitleRecord(ctx, episodeID, lang, url); err != nil {
		log.Error().Err(err).Str("url", url).Msg("saving subtitle record failed")
		p.notify(ctx, n, "❌ Failed to save the subtitle.")
		return "", false
	}

	log.Info().Str("url", url).Msg("subtitle ready")
	p.notify(ctx, n, fmt.Sprintf("✅ %s subtitle ready:\n%s", name, url))
	return url, true
}

func (p *Producer) notify(ctx context.Context, n Notifier, text string) {
	if err := n.Update(ctx, text); err != nil {
		p.log.Debug().Err(err).Msg("progress update failed")
	}
}

// LanguageName renders a language code for users, e.g. "id" → "Indonesian".
func LanguageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}

func findTrack(tracks []catalog.Track, lang string) (catalog.Track, bool) {
	for _, t := range tracks {
		if t.URL != "" && sameLang(t.Lang, lang) {
			return t, true
		}
	}
	return catalog.Track{}, false
}

// baseTrack prefers English, otherwise the first usable track.
func baseTrack(tracks []catalog.Track) (catalog.Track, bool) {
	var first *catalog.Track
	for i := range tracks {
		t := tracks[i]
		if t.URL == "" {
			continue
		}
		if sameLang(t.Lang, "en") {
			return t, true
		}
		if first == nil {
			first = &tracks[i]
		}
	}
	if first == nil {
		return catalog.Track{}, false
	}
	return *first, true
}

// sameLang compares track labels by language code, so "English", "en" and
// "en-US" all match.
func sameLang(a, b string) bool {
	return intent.NormalizeLang(a) == intent.NormalizeLang(b)
}

func splitLines(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.TrimRight(raw, "\n")
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return strings.Split(raw, "\n")
}
