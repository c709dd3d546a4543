package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nimebot/internal/retry"
)

func newTestClient(t *testing.T, mux *http.ServeMux) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	cfg := DefaultConfig(server.URL, "")
	cfg.StreamRetry = retry.Fixed(3, 10*time.Millisecond)
	return New(cfg, zerolog.Nop()), server
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestSearchAnime(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search.php", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "one piece", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`{"results":[{"id":21,"title":"One Piece","poster":"http://img/op.jpg"},{"id":"","title":"broken"},{"id":"op-film","title":"One Piece Film"}]}`))
	})
	c, _ := newTestClient(t, mux)

	got := c.SearchAnime(context.Background(), "one piece")
	require.Len(t, got, 2)
	assert.Equal(t, ID("21"), got[0].ID)
	assert.Equal(t, "http://img/op.jpg", got[0].Poster)
	assert.Equal(t, ID("op-film"), got[1].ID)
}

func TestSearchAnime_FailureIsEmpty(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search.php", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	c, _ := newTestClient(t, mux)

	assert.Empty(t, c.SearchAnime(context.Background(), "x"))
	assert.Empty(t, c.SearchManhwa(context.Background(), "x"))
}

func TestEpisodes_CoercesNumbers(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/episodes.php", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "21", r.URL.Query().Get("id"))
		_, _ = w.Write([]byte(`{"episodes":[{"id":"e1","number":"1","title":"Romance Dawn"},{"id":"e2","number":2,"title":"Enter Zoro"}]}`))
	})
	c, _ := newTestClient(t, mux)

	eps, err := c.Episodes(context.Background(), "21")
	require.NoError(t, err)
	require.Len(t, eps, 2)
	assert.Equal(t, 1, eps[0].Number.Int())
	assert.Equal(t, 2, eps[1].Number.Int())
}

func TestEpisodes_SpecialEntryDoesNotFailListing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/episodes.php", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"episodes":[{"id":"e1","number":"1"},{"id":"e2","number":"2"},{"id":"ova","number":"OVA"}]}`))
	})
	c, _ := newTestClient(t, mux)

	eps, err := c.Episodes(context.Background(), "21")
	require.NoError(t, err)
	require.Len(t, eps, 3)
	assert.Equal(t, 0, eps[2].Number.Int())

	ep, exact, ok := SelectEpisode(eps, 2)
	require.True(t, ok)
	assert.True(t, exact)
	assert.Equal(t, ID("e2"), ep.ID)

	ep, exact, ok = SelectEpisode(eps, 9)
	require.True(t, ok)
	assert.False(t, exact)
	assert.Equal(t, ID("e2"), ep.ID, "latest numbered episode")
}

func TestEpisodes_Error(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/episodes.php", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	})
	c, _ := newTestClient(t, mux)

	_, err := c.Episodes(context.Background(), "1")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "episodes", apiErr.Op)
}

func TestGenerateStream_Success(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/generate.php", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "e5", r.URL.Query().Get("episode_id"))
		if calls.Add(1) == 1 {
			writeJSON(w, map[string]any{"success": false, "message": "warming up"})
			return
		}
		writeJSON(w, map[string]any{
			"success":      true,
			"player_url":   "https://play/e5",
			"master_url":   "https://cdn/e5.m3u8",
			"subtitle_url": "https://cdn/e5.vtt",
		})
	})
	c, _ := newTestClient(t, mux)

	s, err := c.GenerateStream(context.Background(), "e5")
	require.NoError(t, err)
	assert.Equal(t, "https://play/e5", s.PlayerURL)
	assert.Equal(t, "https://cdn/e5.m3u8", s.MasterURL)
	assert.Equal(t, "https://cdn/e5.vtt", s.SubtitleURL)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGenerateStream_ExhaustsThreeAttempts(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/generate.php", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, map[string]any{"success": false})
	})
	c, _ := newTestClient(t, mux)

	start := time.Now()
	s, err := c.GenerateStream(context.Background(), "e5")
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Nil(t, s)
	assert.True(t, retry.IsExhausted(err))
	assert.ErrorIs(t, err, ErrNotSuccessful)
	assert.Equal(t, int32(3), calls.Load())
	assert.GreaterOrEqual(t, elapsed, 20*time.Millisecond, "two fixed waits between three attempts")
}

func TestGenerateStream_NetworkErrorsRetried(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/generate.php", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})
	c, _ := newTestClient(t, mux)

	_, err := c.GenerateStream(context.Background(), "e1")
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDefaultConfig_StreamPolicy(t *testing.T) {
	cfg := DefaultConfig("http://x", "")
	assert.Equal(t, 3, cfg.StreamRetry.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.StreamRetry.Delay)
	assert.Equal(t, 40*time.Second, cfg.StreamTimeout)
}

func TestSubtitleEndpoints(t *testing.T) {
	var translateReq TranslateRequest
	var saved, record map[string]string
	mux := http.NewServeMux()
	mux.HandleFunc("/subtitles.php", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"subtitles":[{"lang":"en","url":"http://sub/en.vtt"}]}`))
	})
	mux.HandleFunc("/translate.php", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&translateReq))
		writeJSON(w, map[string]any{"success": true, "text": "halo\ndunia\n"})
	})
	mux.HandleFunc("/save_subtitle.php", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&saved))
		writeJSON(w, map[string]any{"success": true, "url": "http://sub/e1.id.vtt"})
	})
	mux.HandleFunc("/subtitle_record.php", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&record))
		writeJSON(w, map[string]any{"success": true})
	})
	c, _ := newTestClient(t, mux)
	ctx := context.Background()

	tracks, err := c.Subtitles(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, []Track{{Lang: "en", URL: "http://sub/en.vtt"}}, tracks)

	text, err := c.Translate(ctx, TranslateRequest{Lang: "id", EpisodeID: "e1", StartLine: 100, EndLine: 199})
	require.NoError(t, err)
	assert.Equal(t, "halo\ndunia", text)
	assert.Equal(t, TranslateRequest{Lang: "id", EpisodeID: "e1", StartLine: 100, EndLine: 199}, translateReq)

	u, err := c.SaveSubtitle(ctx, "e1", "id", "content")
	require.NoError(t, err)
	assert.Equal(t, "http://sub/e1.id.vtt", u)
	assert.Equal(t, "content", saved["content"])

	require.NoError(t, c.SaveSubtitleRecord(ctx, "e1", "id", u))
	assert.Equal(t, map[string]string{"episode_id": "e1", "lang": "id", "url": u}, record)
}

func TestTranslate_NotSuccessful(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/translate.php", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"success": false})
	})
	c, _ := newTestClient(t, mux)

	_, err := c.Translate(context.Background(), TranslateRequest{})
	assert.ErrorIs(t, err, ErrNotSuccessful)
}

func TestManhwaEndpoints(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/manhwa/details.php", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"title":"Solo Leveling","score":8.7,"status":"Completed","author":"Chugong","genres":["Action","Fantasy"],"synopsis":"...","chapters":[{"chapter_no":"3","name":"Chapter 3","url":"http://c/3"},{"number":2,"title":"Chapter 2","url":"http://c/2"}]}`))
	})
	mux.HandleFunc("/manhwa/chapter.php", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "http://c/3", r.URL.Query().Get("url"))
		_, _ = w.Write([]byte(`{"images":["http://i/1.jpg","","http://i/2.jpg"]}`))
	})
	c, _ := newTestClient(t, mux)
	ctx := context.Background()

	d, err := c.ManhwaDetails(ctx, "sl")
	require.NoError(t, err)
	assert.Equal(t, ID("sl"), d.ID)
	assert.Equal(t, Text("8.7"), d.Score)
	require.Len(t, d.Chapters, 2)
	assert.Equal(t, 3, d.Chapters[0].Number.Int())
	assert.Equal(t, "Chapter 2", d.Chapters[1].Name)

	imgs, err := c.ChapterImages(ctx, "http://c/3")
	require.NoError(t, err)
	assert.Equal(t, []string{"http://i/1.jpg", "http://i/2.jpg"}, imgs)
}

func TestManhwaDetails_NamedChapterDoesNotFailListing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/manhwa/details.php", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"title":"Solo Leveling","chapters":[{"chapter_no":"Prologue","url":"http://c/0"},{"chapter_no":"1","url":"http://c/1"}]}`))
	})
	c, _ := newTestClient(t, mux)

	d, err := c.ManhwaDetails(context.Background(), "sl")
	require.NoError(t, err)
	require.Len(t, d.Chapters, 2)

	ch, exact, ok := SelectChapter(d.Chapters, 1)
	require.True(t, ok)
	assert.True(t, exact)
	assert.Equal(t, "http://c/1", ch.URL)
}

func TestFetchImage_ProxyFallback(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "hotlink", http.StatusForbidden)
	}))
	defer origin.Close()

	var proxiedURL string
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proxiedURL = r.URL.Query().Get("url")
		_, _ = w.Write([]byte("jpeg-bytes"))
	}))
	defer proxy.Close()

	c := New(DefaultConfig("http://unused", proxy.URL+"/"), zerolog.Nop())
	data, err := c.FetchImage(context.Background(), origin.URL+"/page1.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), data)
	assert.Equal(t, origin.URL+"/page1.jpg", proxiedURL)
}

func TestFetchImage_BothFail(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer dead.Close()

	c := New(DefaultConfig("http://unused", dead.URL), zerolog.Nop())
	_, err := c.FetchImage(context.Background(), dead.URL+"/x.jpg")
	require.Error(t, err)
}

func TestLogUsage(t *testing.T) {
	var got UsageRecord
	mux := http.NewServeMux()
	mux.HandleFunc("/log.php", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	})
	c, _ := newTestClient(t, mux)

	rec := UsageRecord{UserID: "628123", Username: "Rin", Message: "hi", Reply: "hello", Country: "ID", Timestamp: "2026-01-02T03:04:05Z"}
	require.NoError(t, c.LogUsage(context.Background(), rec))
	assert.Equal(t, rec, got)
}
