package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"nimebot/internal/extract"
	"nimebot/internal/genai"
)

// maxCandidates bounds how many search hits are shown to the model.
const maxCandidates = 15

const selectPrompt = `You pick the catalog entry that best matches a requested title.

Requested title: %q

Candidates (JSON):
%s

Rules:
- Prefer a case-insensitive exact title match.
- If several candidates share the same title, pick the one with the highest id (the newest).
- Otherwise pick the closest title.
Reply with ONLY the id of the chosen candidate. No words, no quotes, no JSON.`

var (
	numericIDRe = regexp.MustCompile(`\b\d+\b`)
	slugIDRe    = regexp.MustCompile(`[A-Za-z0-9]+(?:[-_][A-Za-z0-9]+)+`)
)

// Resolver chooses the best search hit for a request.
type Resolver struct {
	gen genai.Generator
	log zerolog.Logger
}

func NewResolver(gen genai.Generator, log zerolog.Logger) *Resolver {
	return &Resolver{gen: gen, log: log.With().Str("component", "resolver").Logger()}
}

// SelectBest never fails: whenever the model cannot name a known candidate
// the first candidate wins. candidates must not be empty.
func (r *Resolver) SelectBest(ctx context.Context, title string, candidates []Entry) Entry {
	first := candidates[0]
	if len(candidates) == 1 {
		return first
	}

	trimmed := candidates
	if len(trimmed) > maxCandidates {
		trimmed = trimmed[:maxCandidates]
	}
	type pair struct {
		ID    ID     `json:"id"`
		Title string `json:"title"`
	}
	pairs := make([]pair, len(trimmed))
	for i, c := range trimmed {
		pairs[i] = pair{ID: c.ID, Title: c.Title}
	}
	list, err := json.Marshal(pairs)
	if err != nil {
		return first
	}

	reply, err := r.gen.Generate(ctx, "", fmt.Sprintf(selectPrompt, title, list))
	if err != nil {
		r.log.Warn().Err(err).Str("title", title).Msg("best match request failed, using first result")
		return first
	}

	byID := make(map[ID]Entry, len(trimmed))
	for _, c := range trimmed {
		byID[c.ID] = c
	}
	for _, id := range replyIDs(reply) {
		if e, ok := byID[ID(id)]; ok {
			return e
		}
	}

	r.log.Warn().Str("title", title).Str("reply", reply).Msg("best match reply names no candidate, using first result")
	return first
}

// replyIDs lists id tokens from a model reply in preference order: the
// whole cleaned reply, then the first numeric token, then the first slug.
func replyIDs(reply string) []string {
	clean := strings.Trim(extract.StripFences(reply), " \t\r\n\"'`.")
	out := []string{clean}
	if m := numericIDRe.FindString(clean); m != "" {
		out = append(out, m)
	}
	if m := slugIDRe.FindString(clean); m != "" {
		out = append(out, m)
	}
	return out
}
