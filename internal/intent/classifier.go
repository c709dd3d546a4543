package intent

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"nimebot/internal/extract"
	"nimebot/internal/genai"
)

//go:embed prompts.yaml
var promptsYAML []byte

// Prompts are the fixed instructions sent ahead of the user's text.
type Prompts struct {
	Classify string `yaml:"classify"`
	Anime    string `yaml:"anime"`
	Manhwa   string `yaml:"manhwa"`
	Persona  struct {
		Identity string `yaml:"identity"`
		Rules    string `yaml:"rules"`
	} `yaml:"persona"`
}

func LoadPrompts(b []byte) (Prompts, error) {
	var p Prompts
	if err := yaml.Unmarshal(b, &p); err != nil {
		return Prompts{}, fmt.Errorf("parse prompts: %w", err)
	}
	if p.Classify == "" || p.Anime == "" || p.Manhwa == "" {
		return Prompts{}, fmt.Errorf("prompts: classify, anime and manhwa are required")
	}
	return p, nil
}

type Classifier struct {
	gen     genai.Generator
	prompts Prompts
	log     zerolog.Logger
}

// NewClassifier uses the embedded prompt set.
func NewClassifier(gen genai.Generator, log zerolog.Logger) (*Classifier, error) {
	p, err := LoadPrompts(promptsYAML)
	if err != nil {
		return nil, err
	}
	return &Classifier{gen: gen, prompts: p, log: log.With().Str("component", "intent").Logger()}, nil
}

type kindReply struct {
	Type string `json:"type"`
}

type animeReply struct {
	Title           string          `json:"title"`
	Season          *extract.Number `json:"season"`
	Episode         extract.Number  `json:"episode"`
	Subtitle        bool            `json:"subtitle"`
	SubtitleLang    *string         `json:"subtitle_lang"`
	SubtitleLangAlt *string         `json:"subtitleLang"`
	NotFound        bool            `json:"notFound"`
}

type manhwaReply struct {
	Title    string         `json:"title"`
	Chapter  extract.Number `json:"chapter"`
	NotFound bool           `json:"notFound"`
}

// ask sends instruction + sanitised text and returns the raw reply.
func (c *Classifier) ask(ctx context.Context, instruction, text string) (string, error) {
	clean, _ := Sanitize(text)
	return c.gen.Generate(ctx, "", instruction+clean)
}

// Classify routes text. Model failures fall back to keyword rules.
func (c *Classifier) Classify(ctx context.Context, text string) Kind {
	raw, err := c.ask(ctx, c.prompts.Classify, text)
	if err != nil {
		c.log.Warn().Err(err).Msg("classify request failed, using keyword rules")
		return fallbackKind(text)
	}

	reply, err := extract.JSON[kindReply](raw).Get()
	if err != nil {
		c.log.Warn().Err(err).Str("raw", truncate(raw, 120)).Msg("classify reply unparsable, using keyword rules")
		return fallbackKind(text)
	}
	return parseKind(strings.ToLower(strings.TrimSpace(reply.Type)))
}

// ParseAnime extracts an episode request. nil means nothing usable could be
// recovered; a non-nil result may still carry NotFound.
func (c *Classifier) ParseAnime(ctx context.Context, text string) *Intent {
	raw, err := c.ask(ctx, c.prompts.Anime, text)
	if err != nil {
		c.log.Warn().Err(err).Msg("anime intent request failed, using regex fallback")
		return fallbackAnime(text)
	}

	r, err := extract.JSON[animeReply](raw).Get()
	if err != nil {
		c.log.Warn().Err(err).Str("raw", truncate(raw, 120)).Msg("anime intent unparsable, using regex fallback")
		return fallbackAnime(text)
	}

	title := strings.TrimSpace(r.Title)
	if r.NotFound || title == "" {
		return &Intent{NotFound: true}
	}

	in := &Intent{
		Title:    title,
		Episode:  r.Episode.Int(),
		Subtitle: r.Subtitle,
	}
	if in.Episode < 1 {
		in.Episode = 1
	}
	if r.Season != nil && r.Season.Int() > 0 {
		s := r.Season.Int()
		in.Season = &s
	}
	lang := r.SubtitleLang
	if lang == nil {
		lang = r.SubtitleLangAlt
	}
	if lang != nil && strings.TrimSpace(*lang) != "" {
		in.SubtitleLang = NormalizeLang(*lang)
	}
	return in
}

// ParseManhwa extracts a chapter request, with the same nil contract as
// ParseAnime.
func (c *Classifier) ParseManhwa(ctx context.Context, text string) *ManhwaIntent {
	raw, err := c.ask(ctx, c.prompts.Manhwa, text)
	if err != nil {
		c.log.Warn().Err(err).Msg("manhwa intent request failed, using regex fallback")
		return fallbackManhwa(text)
	}

	r, err := extract.JSON[manhwaReply](raw).Get()
	if err != nil {
		c.log.Warn().Err(err).Str("raw", truncate(raw, 120)).Msg("manhwa intent unparsable, using regex fallback")
		return fallbackManhwa(text)
	}

	title := strings.TrimSpace(r.Title)
	if r.NotFound || title == "" {
		return &ManhwaIntent{NotFound: true}
	}
	in := &ManhwaIntent{Title: title, Chapter: r.Chapter.Int()}
	if in.Chapter < 1 {
		in.Chapter = 1
	}
	return in
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
