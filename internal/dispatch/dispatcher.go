// Package dispatch routes inbound chat messages to the anime, manhwa and
// casual pipelines, one pipeline per sender at a time.
package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow/types"

	"nimebot/internal/catalog"
	"nimebot/internal/chat"
	"nimebot/internal/intent"
	"nimebot/internal/manhwa"
	"nimebot/internal/subtitle"
)

// Inbound is one received chat message.
type Inbound struct {
	Chat     types.JID
	Sender   types.JID
	PushName string
	IsGroup  bool
	Text     string
}

type Classifier interface {
	Classify(ctx context.Context, text string) intent.Kind
	ParseAnime(ctx context.Context, text string) *intent.Intent
	ParseManhwa(ctx context.Context, text string) *intent.ManhwaIntent
	Chat(ctx context.Context, text string) (string, error)
}

type AnimeCatalog interface {
	SearchAnime(ctx context.Context, title string) []catalog.Entry
	Episodes(ctx context.Context, animeID catalog.ID) ([]catalog.Episode, error)
	GenerateStream(ctx context.Context, episodeID catalog.ID) (*catalog.Stream, error)
	FetchImage(ctx context.Context, rawURL string) ([]byte, error)
}

type Selector interface {
	SelectBest(ctx context.Context, title string, candidates []catalog.Entry) catalog.Entry
}

type ManhwaProducer interface {
	Produce(ctx context.Context, title string, chapter int, r manhwa.Replier) (string, error)
}

type SubtitleProducer interface {
	Generate(ctx context.Context, episodeID catalog.ID, lang string, n subtitle.Notifier) (string, bool)
}

type UsageLogger interface {
	LogUsage(ctx context.Context, rec catalog.UsageRecord) error
}

// Deps are the collaborators of a Dispatcher. Usage may be nil.
type Deps struct {
	Messenger  chat.Messenger
	Classifier Classifier
	Catalog    AnimeCatalog
	Selector   Selector
	Manhwa     ManhwaProducer
	Subtitles  SubtitleProducer
	Usage      UsageLogger
	Registry   *Registry
}

type Config struct {
	// CommandPrefix must start group messages, e.g. ".nime".
	CommandPrefix string
	// DefaultSubtitleLang is used when a subtitle is asked for without a language.
	DefaultSubtitleLang string
	UsageTimeout        time.Duration
}

type Dispatcher struct {
	cfg  Config
	deps Deps
	log  zerolog.Logger
	now  func() time.Time

	wg sync.WaitGroup
}

func New(cfg Config, deps Deps, log zerolog.Logger) *Dispatcher {
	if cfg.CommandPrefix == "" {
		cfg.CommandPrefix = ".nime"
	}
	if cfg.DefaultSubtitleLang == "" {
		cfg.DefaultSubtitleLang = "id"
	}
	if cfg.UsageTimeout <= 0 {
		cfg.UsageTimeout = 10 * time.Second
	}
	if deps.Registry == nil {
		deps.Registry = NewRegistry()
	}
	return &Dispatcher{
		cfg:  cfg,
		deps: deps,
		log:  log.With().Str("component", "dispatch").Logger(),
		now:  time.Now,
	}
}

// Dispatch starts a pipeline for in and reports whether it did. Messages
// without a command, group messages without the prefix and messages from a
// sender whose previous pipeline is still running are dropped silently.
func (d *Dispatcher) Dispatch(ctx context.Context, in Inbound) bool {
	text, ok := d.command(in)
	if !ok {
		return false
	}

	key := lockKey(in)
	if !d.deps.Registry.TryAcquire(key) {
		d.log.Debug().Str("sender", key).Msg("pipeline in flight, message dropped")
		return false
	}

	d.log.Debug().Str("sender", key).Int("in_flight", d.deps.Registry.Len()).Msg("pipeline started")
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.run(ctx, in, key, text)
	}()
	return true
}

// Wait blocks until every started pipeline has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) command(in Inbound) (string, bool) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return "", false
	}
	rest, prefixed := cutPrefix(text, d.cfg.CommandPrefix)
	if in.IsGroup && !prefixed {
		return "", false
	}
	if prefixed {
		text = rest
	}
	return text, true
}

// cutPrefix strips a case-insensitive command prefix that stands alone as a word.
func cutPrefix(text, prefix string) (string, bool) {
	if len(text) < len(prefix) || !strings.EqualFold(text[:len(prefix)], prefix) {
		return text, false
	}
	rest := text[len(prefix):]
	if rest != "" && rest[0] != ' ' && rest[0] != '\n' && rest[0] != '\t' {
		return text, false
	}
	return strings.TrimSpace(rest), true
}

func lockKey(in Inbound) string {
	if in.Sender.IsEmpty() {
		return in.Chat.ToNonAD().String()
	}
	return in.Sender.ToNonAD().String()
}

func (d *Dispatcher) run(ctx context.Context, in Inbound, key, text string) {
	log := d.log.With().Str("request_id", uuid.NewString()).Str("sender", key).Logger()
	start := time.Now()

	var reply *chat.Reply
	var final string
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Str("stack", string(debug.Stack())).Msg("pipeline panicked")
			final = genericFailureText
			d.say(ctx, log, in.Chat, reply, final)
		}
		d.deps.Registry.Release(key)
		log.Info().Dur("took", time.Since(start)).Msg("pipeline finished")
		d.logUsage(ctx, log, in, text, final)
	}()

	log.Info().Str("chat", in.Chat.String()).Bool("group", in.IsGroup).Str("text", text).Msg("message received")
	if text == "" {
		final = helpText(d.cfg.CommandPrefix)
		d.say(ctx, log, in.Chat, nil, final)
		return
	}

	var err error
	reply, err = chat.NewReply(ctx, d.deps.Messenger, in.Chat, thinkingText)
	if err != nil {
		log.Warn().Err(err).Msg("placeholder not sent, updates will be sent as new messages")
	}

	kind := d.deps.Classifier.Classify(ctx, text)
	log.Info().Str("kind", string(kind)).Msg("message classified")

	switch kind {
	case intent.KindAnime:
		final = d.handleAnime(ctx, log, reply, text)
	case intent.KindManhwa:
		final = d.handleManhwa(ctx, log, reply, text)
	case intent.KindCasual:
		final = d.handleCasual(ctx, log, reply, text)
	default:
		final = d.say(ctx, log, in.Chat, reply, unknownText)
	}
}

// say shows text through reply, or as a fresh message when there is none,
// and returns text.
func (d *Dispatcher) say(ctx context.Context, log zerolog.Logger, to types.JID, reply *chat.Reply, text string) string {
	var err error
	if reply != nil {
		err = reply.Update(ctx, text)
	} else {
		_, err = d.deps.Messenger.SendText(ctx, to, text)
	}
	if err != nil {
		log.Warn().Err(err).Msg("reply not delivered")
	}
	return text
}

func (d *Dispatcher) handleAnime(ctx context.Context, log zerolog.Logger, r *chat.Reply, text string) string {
	req := d.deps.Classifier.ParseAnime(ctx, text)
	if !req.Usable() {
		log.Info().Msg("anime request unclear, asking to clarify")
		return d.say(ctx, log, r.Chat(), r, animeClarifyText)
	}

	query := req.Title
	if req.Season != nil && *req.Season > 1 {
		query = fmt.Sprintf("%s Season %d", req.Title, *req.Season)
	}
	log = log.With().Str("title", query).Int("episode", req.Episode).Logger()
	d.say(ctx, log, r.Chat(), r, fmt.Sprintf("🔎 Searching *%s*...", query))

	results := d.deps.Catalog.SearchAnime(ctx, query)
	if len(results) == 0 && query != req.Title {
		results = d.deps.Catalog.SearchAnime(ctx, req.Title)
	}
	if len(results) == 0 {
		return d.say(ctx, log, r.Chat(), r, animeNotFoundText(query))
	}
	entry := d.deps.Selector.SelectBest(ctx, query, results)
	log.Info().Str("anime_id", entry.ID.String()).Str("match", entry.Title).Msg("anime resolved")

	episodes, err := d.deps.Catalog.Episodes(ctx, entry.ID)
	if err != nil {
		log.Warn().Err(err).Msg("episode listing failed")
	}
	ep, exact, ok := catalog.SelectEpisode(episodes, req.Episode)
	if !ok {
		return d.say(ctx, log, r.Chat(), r, noEpisodesText(entry.Title))
	}

	d.say(ctx, log, r.Chat(), r, fmt.Sprintf("🎬 Preparing *%s* episode %s...", entry.Title, ep.Number))
	stream, err := d.deps.Catalog.GenerateStream(ctx, ep.ID)
	if err != nil {
		log.Error().Err(err).Str("episode_id", ep.ID.String()).Msg("stream generation failed")
		return d.say(ctx, log, r.Chat(), r, streamFailureText)
	}

	caption := streamCaption(entry, req.Episode, ep, exact, stream)
	if d.sendPoster(ctx, log, r, entry.Poster, caption) {
		d.say(ctx, log, r.Chat(), r, fmt.Sprintf("✅ Enjoy *%s* episode %s!", entry.Title, ep.Number))
	} else {
		d.say(ctx, log, r.Chat(), r, caption)
	}

	if !req.Subtitle {
		return caption
	}
	lang := req.SubtitleLang
	if lang == "" {
		lang = d.cfg.DefaultSubtitleLang
	}
	if url, ok := d.deps.Subtitles.Generate(ctx, ep.ID, lang, r); ok {
		return caption + "\n📝 Subtitle: " + url
	}
	return caption
}

// sendPoster sends the poster image with caption. It returns false when
// there is no poster or it could not be delivered.
func (d *Dispatcher) sendPoster(ctx context.Context, log zerolog.Logger, r *chat.Reply, posterURL, caption string) bool {
	if posterURL == "" {
		return false
	}
	data, err := d.deps.Catalog.FetchImage(ctx, posterURL)
	if err != nil {
		log.Warn().Err(err).Str("url", posterURL).Msg("poster download failed")
		return false
	}
	if err := r.Image(ctx, data, http.DetectContentType(data), caption); err != nil {
		log.Warn().Err(err).Msg("poster send failed")
		return false
	}
	return true
}

func (d *Dispatcher) handleManhwa(ctx context.Context, log zerolog.Logger, r *chat.Reply, text string) string {
	req := d.deps.Classifier.ParseManhwa(ctx, text)
	if !req.Usable() {
		log.Info().Msg("manhwa request unclear, asking to clarify")
		return d.say(ctx, log, r.Chat(), r, manhwaClarifyText)
	}

	final, err := d.deps.Manhwa.Produce(ctx, req.Title, req.Chapter, r)
	if err != nil {
		log.Warn().Err(err).Str("title", req.Title).Int("chapter", req.Chapter).Msg("manhwa request failed")
	}
	return final
}

func (d *Dispatcher) handleCasual(ctx context.Context, log zerolog.Logger, r *chat.Reply, text string) string {
	answer, err := d.deps.Classifier.Chat(ctx, text)
	if err != nil || strings.TrimSpace(answer) == "" {
		log.Warn().Err(err).Msg("casual reply failed")
		answer = casualFailureText
	}
	return d.say(ctx, log, r.Chat(), r, answer)
}

func (d *Dispatcher) logUsage(ctx context.Context, log zerolog.Logger, in Inbound, message, reply string) {
	if d.deps.Usage == nil {
		return
	}
	rec := catalog.UsageRecord{
		UserID:    in.Sender.User,
		Username:  in.PushName,
		Message:   message,
		Reply:     reply,
		Country:   CountryOf(in.Sender),
		Timestamp: d.now().UTC().Format(time.RFC3339),
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.UsageTimeout)
	defer cancel()
	if err := d.deps.Usage.LogUsage(ctx, rec); err != nil {
		log.Debug().Err(err).Msg("usage log failed")
	}
}

// CountryOf returns the ISO region of a phone-number JID, or "" when the
// sender is not addressed by phone number.
func CountryOf(sender types.JID) string {
	if sender.Server != types.DefaultUserServer || sender.User == "" {
		return ""
	}
	num, err := phonenumbers.Parse("+"+sender.User, "")
	if err != nil {
		return ""
	}
	return phonenumbers.GetRegionCodeForNumber(num)
}
