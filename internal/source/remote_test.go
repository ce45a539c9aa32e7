package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/mahyarmirrashed/wallrot/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func newBoard(t *testing.T, fileURL func(srvURL string) string) (*httptest.Server, *[]url.Values) {
	t.Helper()
	var queries []url.Values
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/posts.json":
			queries = append(queries, r.URL.Query())
			assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `[{"id": 42, "file_url": %q}]`, fileURL(srv.URL))
		case "/data/sample.png":
			_, _ = w.Write([]byte("PNGDATA"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &queries
}

func remoteConfig(host string) config.RemoteConfig {
	return config.RemoteConfig{
		Title:   "Test Board",
		Host:    host,
		APIPage: "/posts.json",
		Tags:    []string{"scenery", "night"},
	}
}

func TestRemote_FetchRelativePath(t *testing.T) {
	srv, queries := newBoard(t, func(string) string { return "/data/sample.png" })
	work := t.TempDir()

	s := NewRemote(remoteConfig(srv.URL), Options{WorkDir: work})
	got, err := s.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(work, "dl", "image.png"), got)
	data, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, "PNGDATA", string(data))
	assert.Equal(t, srv.URL+"/data/sample.png", s.SourceURL())

	require.Len(t, *queries, 1)
	q := (*queries)[0]
	assert.Equal(t, "1", q.Get("limit"))
	assert.Equal(t, "true", q.Get("random"))
	assert.Equal(t, "scenery night", q.Get("tags"))
	assert.False(t, q.Has("login"))
}

func TestRemote_FetchAbsoluteURL(t *testing.T) {
	srv, _ := newBoard(t, func(u string) string { return u + "/data/sample.png" })

	s := NewRemote(remoteConfig(srv.URL), Options{WorkDir: t.TempDir()})
	got, err := s.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ".png", filepath.Ext(got))
}

func TestRemote_Login(t *testing.T) {
	keyring.MockInit()
	require.NoError(t, keyring.Set(config.AppName, "alice", "s3cret"))

	srv, queries := newBoard(t, func(string) string { return "/data/sample.png" })
	cfg := remoteConfig(srv.URL)
	cfg.Login = "alice"

	s := NewRemote(cfg, Options{WorkDir: t.TempDir()})
	_, err := s.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, *queries, 1)
	assert.Equal(t, "alice", (*queries)[0].Get("login"))
	assert.Equal(t, "s3cret", (*queries)[0].Get("api_key"))

	cfg.Login = "bob"
	_, err = NewRemote(cfg, Options{WorkDir: t.TempDir()}).Fetch(context.Background())
	assert.Error(t, err)
}

func TestRemote_FallsBackToCachedDownload(t *testing.T) {
	broken := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if broken {
			_, _ = w.Write([]byte(`{not json`))
			return
		}
		if r.URL.Path == "/posts.json" {
			_, _ = w.Write([]byte(`[{"id": 1, "file_url": "/data/a.jpg"}]`))
			return
		}
		_, _ = w.Write([]byte("JPEG"))
	}))
	defer srv.Close()

	s := NewRemote(remoteConfig(srv.URL), Options{WorkDir: t.TempDir()})
	first, err := s.Fetch(context.Background())
	require.NoError(t, err)

	broken = true
	again, err := s.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestRemote_ErrorsWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewRemote(remoteConfig(srv.URL), Options{WorkDir: t.TempDir()}).Fetch(context.Background())
	assert.ErrorContains(t, err, "503")

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer empty.Close()
	_, err = NewRemote(remoteConfig(empty.URL), Options{WorkDir: t.TempDir()}).Fetch(context.Background())
	assert.ErrorContains(t, err, "no posts")

	_, err = NewRemote(remoteConfig(empty.URL), Options{}).Fetch(context.Background())
	assert.Error(t, err)
}

func TestResolveFileURL(t *testing.T) {
	api, err := url.Parse("https://board.example/posts.json?limit=1&tags=x")
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example/a.png", resolveFileURL(api, "//cdn.example/a.png"))
	assert.Equal(t, "http://other.example/b.jpg", resolveFileURL(api, "http://other.example/b.jpg"))
	assert.Equal(t, "https://board.example/data/c.gif", resolveFileURL(api, "/data/c.gif"))
}

func TestRemote_Name(t *testing.T) {
	assert.Equal(t, "Test Board", NewRemote(remoteConfig("h"), Options{}).Name())
	assert.Equal(t, "board.example", NewRemote(config.RemoteConfig{Host: "board.example"}, Options{}).Name())
}
