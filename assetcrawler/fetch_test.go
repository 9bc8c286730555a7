package assetcrawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchAsset(t *testing.T) {
	var userAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/latin1.txt":
			w.Header().Set("Content-Type", "text/plain; charset=iso-8859-1")
			w.Write([]byte("caf\xe9"))
		case "/big.js":
			w.Header().Set("Content-Type", "application/javascript")
			w.Write([]byte(strings.Repeat("a", 64)))
		case "/blob":
			w.Header()["Content-Type"] = nil
			w.Write(pngBytes)
		case "/ua.css":
			userAgent = r.UserAgent()
			w.Header().Set("Content-Type", "text/css")
			w.Write([]byte("a{}"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cfg := Config{MaxResponseBytes: 32, UserAgent: "assetcrawlr-test"}.withDefaults()
	f := NewFetcher(srv.Client(), cfg)
	ctx := context.Background()

	t.Run("decodes declared charsets to utf-8", func(tt *testing.T) {
		file, err := f.FetchAsset(ctx, srv.URL+"/latin1.txt")
		require.NoError(tt, err)
		assert.Equal(tt, "café", file.Content)
		assert.False(tt, file.Binary)
		assert.Equal(tt, "text/plain", file.MimeType)
	})

	t.Run("rejects bodies over the size ceiling", func(tt *testing.T) {
		_, err := f.FetchAsset(ctx, srv.URL+"/big.js")
		assert.ErrorIs(tt, err, ErrResponseTooLarge)
	})

	t.Run("sniffs binary content when no type is declared", func(tt *testing.T) {
		file, err := f.FetchAsset(ctx, srv.URL+"/blob")
		require.NoError(tt, err)
		assert.True(tt, file.Binary)
		assert.True(tt, strings.HasPrefix(file.Content, "data:"))
		assert.Equal(tt, "blob", file.Name)
	})

	t.Run("sends the configured user agent", func(tt *testing.T) {
		file, err := f.FetchAsset(ctx, srv.URL+"/ua.css")
		require.NoError(tt, err)
		assert.Equal(tt, "assetcrawlr-test", userAgent)
		assert.Equal(tt, "css/ua.css", file.Path)
		assert.Equal(tt, srv.URL+"/ua.css", file.SourceURL)
	})

	t.Run("treats non-2xx responses as failures", func(tt *testing.T) {
		_, err := f.FetchAsset(ctx, srv.URL+"/missing.png")
		require.Error(tt, err)
		assert.NotErrorIs(tt, err, ErrSkipped)
	})

	t.Run("skips urls it will never fetch", func(tt *testing.T) {
		for _, u := range []string{"", "data:text/plain,hi", "ftp://ex.com/a.css", "/relative.css", "https://ex.com/" + strings.Repeat("x", cfg.MaxURLLength)} {
			_, err := f.FetchAsset(ctx, u)
			assert.ErrorIs(tt, err, ErrSkipped, u)
		}
	})
}

func TestDataURI(t *testing.T) {
	assert.Equal(t, "data:image/png;base64,AQID", DataURI("image/png", []byte{1, 2, 3}))
}
