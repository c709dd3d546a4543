package dispatch

import (
	"fmt"
	"strings"

	"nimebot/internal/catalog"
)

const (
	thinkingText = "⏳ thinking..."

	genericFailureText = "😵 Something went wrong on my side. Please try again in a moment."
	animeClarifyText   = "🤔 Which anime and episode do you mean? Try something like *one piece episode 5*."
	manhwaClarifyText  = "🤔 Which manhwa and chapter do you mean? Try something like *solo leveling chapter 3*."
	unknownText        = "🤔 I didn't get that. Ask me for an anime episode (*one piece episode 5*) or a manhwa chapter (*solo leveling chapter 3*)."
	casualFailureText  = "😅 I'm a bit sleepy right now, try again later!"
	streamFailureText  = "❌ Could not generate the stream. Please try again later."
)

func helpText(prefix string) string {
	return fmt.Sprintf(`👋 Hi, I'm *Nime*!

🎬 Anime: *one piece episode 5*
📝 With subtitle: *jujutsu kaisen season 2 episode 3 subtitle indonesian*
📖 Manhwa PDF: *solo leveling chapter 3*

In groups start your message with *%s*.`, prefix)
}

func animeNotFoundText(title string) string {
	return fmt.Sprintf("❌ Anime *%s* was not found.", title)
}

func noEpisodesText(title string) string {
	return fmt.Sprintf("❌ No episodes are available for *%s* yet.", title)
}

// streamCaption is the caption under the poster for a generated stream.
func streamCaption(entry catalog.Entry, requested int, ep catalog.Episode, exact bool, s *catalog.Stream) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎬 *%s*\n", entry.Title)
	fmt.Fprintf(&b, "📺 Episode %s", ep.Number)
	if t := strings.TrimSpace(ep.Title); t != "" {
		fmt.Fprintf(&b, " - %s", t)
	}
	b.WriteString("\n")
	if !exact {
		fmt.Fprintf(&b, "⚠️ Episode %d is not released yet, this is the latest available one.\n", requested)
	}
	fmt.Fprintf(&b, "\n▶️ Watch: %s\n", s.PlayerURL)
	if s.MasterURL != "" {
		fmt.Fprintf(&b, "📡 M3U8: %s\n", s.MasterURL)
	}
	return strings.TrimRight(b.String(), "\n")
}
