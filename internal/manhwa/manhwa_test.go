package manhwa

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nimebot/internal/catalog"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y += 7 {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		w, h    int
		heights []int
		width   int
	}{
		{name: "scaled down", w: 1600, h: 1000, heights: []int{500}, width: 800},
		{name: "never upscaled", w: 400, h: 600, heights: []int{600}, width: 400},
		{name: "tall page split", w: 400, h: 3000, heights: []int{2400, 600}, width: 400},
		{name: "scaled then split", w: 1000, h: 6000, heights: []int{2400, 2400}, width: 800},
		{name: "short tail folded", w: 400, h: 2401, heights: []int{2401}, width: 400},
		{name: "tail at threshold kept", w: 400, h: 2400 + MinStripHeight, heights: []int{2400, MinStripHeight}, width: 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages, err := Normalize(pngBytes(t, tt.w, tt.h))
			require.NoError(t, err)
			require.Len(t, pages, len(tt.heights))
			for i, p := range pages {
				assert.Equal(t, tt.width, p.Width)
				assert.Equal(t, tt.heights[i], p.Height)
				assert.Equal(t, []byte{0xFF, 0xD8}, p.JPEG[:2], "jpeg magic")
			}
		})
	}
}

func TestNormalize_Garbage(t *testing.T) {
	_, err := Normalize([]byte("<html>blocked</html>"))
	assert.Error(t, err)
}

func TestBuildPDF(t *testing.T) {
	strips, err := Normalize(pngBytes(t, 400, 3000))
	require.NoError(t, err)
	single, err := Normalize(pngBytes(t, 800, 1200))
	require.NoError(t, err)

	doc, err := BuildPDF("Solo Leveling - Chapter 1", append(strips, single...))
	require.NoError(t, err)
	out := string(doc)
	assert.True(t, strings.HasPrefix(out, "%PDF-"))
	assert.Contains(t, out, "/Count 3")
	assert.Contains(t, out, "/MediaBox [0 0 400.00 600.00]")
	assert.Contains(t, out, "/MediaBox [0 0 800.00 1200.00]")

	_, err = BuildPDF("empty", nil)
	assert.Error(t, err)
}

type fakeCatalog struct {
	results  []catalog.Entry
	details  *catalog.ManhwaDetails
	detErr   error
	images   []string
	imgErr   error
	payloads map[string][]byte
	fetched  []string
}

func (f *fakeCatalog) SearchManhwa(ctx context.Context, title string) []catalog.Entry {
	return f.results
}

func (f *fakeCatalog) ManhwaDetails(ctx context.Context, id catalog.ID) (*catalog.ManhwaDetails, error) {
	return f.details, f.detErr
}

func (f *fakeCatalog) ChapterImages(ctx context.Context, chapterURL string) ([]string, error) {
	return f.images, f.imgErr
}

func (f *fakeCatalog) FetchImage(ctx context.Context, rawURL string) ([]byte, error) {
	f.fetched = append(f.fetched, rawURL)
	if b, ok := f.payloads[rawURL]; ok {
		return b, nil
	}
	return nil, errors.New("404")
}

type firstSelector struct{}

func (firstSelector) SelectBest(ctx context.Context, title string, c []catalog.Entry) catalog.Entry {
	return c[0]
}

type fakeReply struct {
	updates  []string
	docName  string
	docMime  string
	caption  string
	doc      []byte
	docCalls int
}

func (f *fakeReply) Update(ctx context.Context, text string) error {
	f.updates = append(f.updates, text)
	return nil
}

func (f *fakeReply) Document(ctx context.Context, data []byte, filename, mimetype, caption string) error {
	f.docCalls++
	f.doc, f.docName, f.docMime, f.caption = data, filename, mimetype, caption
	return nil
}

func soloLeveling() *catalog.ManhwaDetails {
	return &catalog.ManhwaDetails{
		Title:    "Solo Leveling",
		Score:    "8.7",
		Status:   "Completed",
		Author:   "Chugong",
		Genres:   []string{"Action", "Fantasy"},
		Synopsis: strings.Repeat("ア", 400),
		Chapters: []catalog.Chapter{
			{Number: 2, Name: "Chapter 2", URL: "http://c/2"},
			{Number: 1, Name: "Chapter 1", URL: "http://c/1"},
		},
	}
}

func TestProduce_Success(t *testing.T) {
	fc := &fakeCatalog{
		results: []catalog.Entry{{ID: "sl", Title: "Solo Leveling"}},
		details: soloLeveling(),
		images:  []string{"p1", "p2", "p3"},
		payloads: map[string][]byte{
			"p1": pngBytes(t, 800, 1000),
			"p3": pngBytes(t, 800, 1000),
		},
	}
	r := &fakeReply{}
	p := NewProducer(fc, firstSelector{}, zerolog.Nop())

	msg, err := p.Produce(context.Background(), "solo leveling", 1, r)
	require.NoError(t, err)
	assert.Equal(t, "✅ *Solo Leveling* Chapter 1 is ready (2 pages).", msg)
	assert.Equal(t, 1, r.docCalls)
	assert.Equal(t, "Solo Leveling - Chapter 1.pdf", r.docName)
	assert.Equal(t, "application/pdf", r.docMime)
	assert.Contains(t, string(r.doc), "/Count 2", "dropped page is skipped")
	assert.Contains(t, r.updates, "📥 Downloading pages 2/3")
	assert.Contains(t, r.updates, "📥 Downloading pages 3/3")
	assert.NotContains(t, r.updates, "📥 Downloading pages 1/3")
	assert.Contains(t, r.updates, "🛠️ Processing pages 2/2")
	assert.Equal(t, []string{"p1", "p2", "p3"}, fc.fetched)
}

func TestProduce_MissingChapterUsesFirstListed(t *testing.T) {
	fc := &fakeCatalog{
		results:  []catalog.Entry{{ID: "sl", Title: "Solo Leveling"}},
		details:  soloLeveling(),
		images:   []string{"p1"},
		payloads: map[string][]byte{"p1": pngBytes(t, 100, 100)},
	}
	r := &fakeReply{}
	p := NewProducer(fc, firstSelector{}, zerolog.Nop())

	_, err := p.Produce(context.Background(), "solo leveling", 99, r)
	require.NoError(t, err)
	assert.Equal(t, "Solo Leveling - Chapter 2.pdf", r.docName)
}

func TestProduce_StageFailures(t *testing.T) {
	entries := []catalog.Entry{{ID: "sl", Title: "Solo Leveling"}}
	tests := []struct {
		name  string
		cat   *fakeCatalog
		stage Stage
	}{
		{name: "no results", cat: &fakeCatalog{}, stage: StageSearch},
		{name: "no details", cat: &fakeCatalog{results: entries, detErr: errors.New("500")}, stage: StageDetails},
		{name: "no chapters", cat: &fakeCatalog{results: entries, details: &catalog.ManhwaDetails{Title: "X"}}, stage: StageChapters},
		{name: "no images", cat: &fakeCatalog{results: entries, details: soloLeveling()}, stage: StageImages},
		{name: "image listing error", cat: &fakeCatalog{results: entries, details: soloLeveling(), imgErr: errors.New("timeout")}, stage: StageImages},
		{name: "nothing downloaded", cat: &fakeCatalog{results: entries, details: soloLeveling(), images: []string{"a", "b"}}, stage: StageDownload},
		{name: "undecodable pages", cat: &fakeCatalog{results: entries, details: soloLeveling(), images: []string{"a"}, payloads: map[string][]byte{"a": []byte("nope")}}, stage: StagePDF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeReply{}
			p := NewProducer(tt.cat, firstSelector{}, zerolog.Nop())

			msg, err := p.Produce(context.Background(), "x", 1, r)
			var se *StageError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.stage, se.Stage)
			assert.Equal(t, UserMessage(tt.stage), msg)
			assert.Equal(t, msg, r.updates[len(r.updates)-1])
			assert.Zero(t, r.docCalls, "no partial document")
		})
	}
}

func TestStageMessagesAreDistinct(t *testing.T) {
	seen := map[string]Stage{}
	for stage, msg := range stageMessages {
		other, dup := seen[msg]
		assert.False(t, dup, "%s and %s share a message", stage, other)
		seen[msg] = stage
	}
}

func TestCaption(t *testing.T) {
	c := Caption(soloLeveling(), "Chapter 1")
	assert.Contains(t, c, "📖 *Solo Leveling*")
	assert.Contains(t, c, "⭐ Score: 8.7")
	assert.Contains(t, c, "🏷️ Genres: Action, Fantasy")

	syn := c[strings.LastIndex(c, "\n")+1:]
	assert.Equal(t, 303, utf8.RuneCountInString(syn), "300 runes plus ellipsis")
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "Re-Zero - Chapter 5.pdf", FileName("Re/Zero", "Chapter 5"))
	assert.Equal(t, "A B - Ch 1.pdf", FileName(`A "B"?`, "Ch 1"))
}
