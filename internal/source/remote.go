package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mahyarmirrashed/wallrot/internal/config"
	log "github.com/sirupsen/logrus"
	"github.com/zalando/go-keyring"
	"golang.org/x/time/rate"
)

// UserAgent is sent with every image-board request; some boards reject
// non-browser agents.
const UserAgent = "Mozilla/5.0 (X11; Linux x86_64)" +
	" AppleWebKit/999.99 (KHTML, like Gecko)" +
	" wallrot/1.0"

// post is the subset of an image-board post the source needs.
type post struct {
	ID      int    `json:"id"`
	FileURL string `json:"file_url"`
}

// Remote asks an image-board API for one random post matching its tags and
// downloads the image into the work folder.
type Remote struct {
	cfg     config.RemoteConfig
	workDir string
	client  *resty.Client
	apiKey  func(service, user string) (string, error)
	limiter *rate.Limiter // API requests

	mu     sync.Mutex
	path   string // last successful download
	source string // URL it came from
}

func NewRemote(cfg config.RemoteConfig, opts Options) *Remote {
	client := opts.Client
	if client == nil {
		client = resty.New().
			SetHeader("User-Agent", UserAgent).
			SetTimeout(60 * time.Second)
	}
	apiKey := opts.Keyring
	if apiKey == nil {
		apiKey = keyring.Get
	}
	return &Remote{
		cfg:     cfg,
		workDir: opts.WorkDir,
		client:  client,
		apiKey:  apiKey,
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 2),
	}
}

func (s *Remote) Kind() config.SourceKind { return config.SourceRemote }

// Name returns the board title, falling back to the host.
func (s *Remote) Name() string {
	if s.cfg.Title != "" {
		return s.cfg.Title
	}
	return s.cfg.Host
}

// SourceURL returns the URL of the last downloaded image.
func (s *Remote) SourceURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// Fetch queries the API and downloads the image it points at. When either
// request fails the previous download is returned if there is one.
func (s *Remote) Fetch(ctx context.Context) (string, error) {
	if s.workDir == "" || s.cfg.Host == "" || s.cfg.APIPage == "" {
		return "", errors.New("remote source needs a work folder, host and api page")
	}

	apiURL, err := s.apiURL()
	if err != nil {
		return "", err
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}
	imageURL, err := s.requestPost(ctx, apiURL)
	if err != nil {
		return s.cached(err)
	}

	file, err := s.download(ctx, imageURL)
	if err != nil {
		return s.cached(err)
	}
	return file, nil
}

// apiURL builds the post query. Host may carry its own scheme.
func (s *Remote) apiURL() (*url.URL, error) {
	base := s.cfg.Host
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid remote host %q: %w", s.cfg.Host, err)
	}
	u.Path = s.cfg.APIPage

	q := url.Values{}
	q.Set("limit", "1")
	q.Set("random", "true")
	q.Set("tags", strings.Join(s.cfg.Tags, " "))

	if s.cfg.Login != "" {
		key, err := s.apiKey(config.AppName, s.cfg.Login)
		if err != nil {
			return nil, fmt.Errorf("could not read API key for %s: %w", s.cfg.Login, err)
		}
		q.Set("login", s.cfg.Login)
		q.Set("api_key", key)
	}
	u.RawQuery = q.Encode()
	return u, nil
}

// requestPost fetches the post list and resolves the first post's file URL.
func (s *Remote) requestPost(ctx context.Context, apiURL *url.URL) (string, error) {
	resp, err := s.client.R().SetContext(ctx).Get(apiURL.String())
	if err != nil {
		return "", fmt.Errorf("failed to query %s: %w", apiURL.Host, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("%s returned status %d", apiURL.Host, resp.StatusCode())
	}

	var posts []post
	if err := json.Unmarshal(resp.Body(), &posts); err != nil {
		return "", fmt.Errorf("failed to parse JSON: %w", err)
	}
	if len(posts) == 0 || posts[0].FileURL == "" {
		return "", fmt.Errorf("%s returned no posts for %q", apiURL.Host, strings.Join(s.cfg.Tags, " "))
	}
	log.Debugf("Remote post %d: %s", posts[0].ID, posts[0].FileURL)

	return resolveFileURL(apiURL, posts[0].FileURL), nil
}

// resolveFileURL turns the file_url of a post into an absolute URL.
// Scheme-relative URLs reuse the API scheme; bare paths live on the API host.
func resolveFileURL(apiURL *url.URL, fileURL string) string {
	switch {
	case strings.HasPrefix(fileURL, "//"):
		return apiURL.Scheme + ":" + fileURL
	case strings.HasPrefix(fileURL, "http://"), strings.HasPrefix(fileURL, "https://"):
		return fileURL
	default:
		u := *apiURL
		u.RawQuery = ""
		u.Path = fileURL
		return u.String()
	}
}

// download stores the image as WorkDir/dl/image.<ext>.
func (s *Remote) download(ctx context.Context, imageURL string) (string, error) {
	resp, err := s.client.R().SetContext(ctx).Get(imageURL)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", imageURL, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("download of %s returned status %d", imageURL, resp.StatusCode())
	}

	ext := ".jpg"
	if u, err := url.Parse(imageURL); err == nil && path.Ext(u.Path) != "" {
		ext = path.Ext(u.Path)
	}

	dir := filepath.Join(s.workDir, "dl")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	dst := filepath.Join(dir, "image"+ext)
	tmp := dst + ".part"
	if err := os.WriteFile(tmp, resp.Body(), 0644); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}

	s.mu.Lock()
	if s.path != "" && s.path != dst {
		_ = os.Remove(s.path)
	}
	s.path = dst
	s.source = imageURL
	s.mu.Unlock()

	log.Infof("Downloaded %s", imageURL)
	return dst, nil
}

func (s *Remote) cached(err error) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return "", err
	}
	log.Warnf("Remote fetch failed, reusing %s: %v", s.path, err)
	return s.path, nil
}
