package intent

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// maxPromptRunes bounds how much user text is embedded in a prompt.
const maxPromptRunes = 500

var injectionPatterns = []string{
	"system prompt",
	"you are no longer",
	"you are now",
	"ignore previous",
	"ignore all previous",
	"ignore your instructions",
	"disregard previous",
	"new instructions",
	"forget everything",
	"jailbreak",
	"developer mode",
	"pretend to be",
	"act as",
}

var (
	roleMarkerRe = regexp.MustCompile(`(?i)(?:</?\s*(?:system|assistant|user)\s*>|\[\s*(?:system|assistant)\s*\]?|\b(?:system|assistant)\s*:)`)
	longRuleRe   = regexp.MustCompile(`[#=\-]{3,}`)
)

// Sanitize neutralises text before it is embedded in a prompt: role markers,
// fence markers and rule lines are removed, whitespace is collapsed and the
// length is bounded. The bool reports whether the text looked like an
// injection attempt.
func Sanitize(text string) (string, bool) {
	lower := strings.ToLower(text)
	injected := false
	for _, p := range injectionPatterns {
		if strings.Contains(lower, p) {
			injected = true
			break
		}
	}

	clean := roleMarkerRe.ReplaceAllString(text, " ")
	if clean != text {
		injected = true
	}
	clean = strings.ReplaceAll(clean, "```", " ")
	clean = strings.ReplaceAll(clean, "`", "")
	clean = longRuleRe.ReplaceAllString(clean, " ")
	clean = spacesRe.ReplaceAllString(clean, " ")
	clean = strings.TrimSpace(clean)

	if r := []rune(clean); len(r) > maxPromptRunes {
		clean = string(r[:maxPromptRunes])
	}
	return clean, injected
}

var characterBreakPhrases = []string{
	"as an ai",
	"as a language model",
	"i am an ai",
	"i'm an ai",
	"i am a large language model",
	"my instructions",
	"my system prompt",
}

const characterBreakReply = "Hehe, I'm just Nime 😄 Ask me something like *one piece episode 5* or *solo leveling chapter 3*!"

// Chat produces a casual in-character reply.
func (c *Classifier) Chat(ctx context.Context, text string) (string, error) {
	clean, injected := Sanitize(text)
	if injected {
		c.log.Info().Msg("prompt injection pattern in casual message")
		clean = "[User attempted prompt injection] " + clean
	}

	system := fmt.Sprintf("%s\n%s", c.prompts.Persona.Identity, c.prompts.Persona.Rules)
	reply, err := c.gen.Generate(ctx, system, clean)
	if err != nil {
		return "", fmt.Errorf("casual reply: %w", err)
	}

	lower := strings.ToLower(reply)
	for _, phrase := range characterBreakPhrases {
		if strings.Contains(lower, phrase) {
			c.log.Warn().Str("reply", truncate(reply, 120)).Msg("persona broke character, replacing reply")
			return characterBreakReply, nil
		}
	}
	return reply, nil
}
