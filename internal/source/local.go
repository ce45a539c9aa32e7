package source

import (
	"bufio"
	"context"
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mahyarmirrashed/wallrot/internal/config"
	"github.com/mahyarmirrashed/wallrot/internal/filter"
	"github.com/mahyarmirrashed/wallrot/internal/utils"
	log "github.com/sirupsen/logrus"
)

// File always yields the same image.
type File struct {
	path string
}

func NewFile(path string) *File {
	return &File{path: utils.ExpandTilde(path)}
}

func (s *File) Kind() config.SourceKind { return config.SourceFile }
func (s *File) Name() string            { return "File" }

// Path returns the configured image path.
func (s *File) Path() string { return s.path }

func (s *File) Fetch(ctx context.Context) (string, error) {
	if s.path == "" {
		return "", ErrEmpty
	}
	return s.path, nil
}

// List picks a random line of a text file. Relative entries are resolved
// against the list file's folder.
type List struct {
	path   string
	picker picker

	mu     sync.Mutex
	files  []string
	loaded bool
}

func NewList(path string, rng *rand.Rand) *List {
	return &List{path: utils.ExpandTilde(path), picker: picker{rng: rng}}
}

func (s *List) Kind() config.SourceKind { return config.SourceList }
func (s *List) Name() string            { return "FileList" }

// Path returns the list file path.
func (s *List) Path() string { return s.path }

// Invalidate forces the list file to be re-read on the next Fetch.
func (s *List) Invalidate() {
	s.mu.Lock()
	s.loaded = false
	s.mu.Unlock()
}

// Files returns the current candidates, loading them if needed.
func (s *List) Files() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		files, err := readList(s.path)
		if err != nil {
			return nil, err
		}
		s.files = files
		s.loaded = true
		log.Debugf("Loaded %d entries from %s", len(files), s.path)
	}
	return s.files, nil
}

func (s *List) Fetch(ctx context.Context) (string, error) {
	files, err := s.Files()
	if err != nil {
		return "", err
	}
	return s.picker.pick(files)
}

func readList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	base := filepath.Dir(path)
	var files []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		line = utils.ExpandTilde(line)
		if !filepath.IsAbs(line) {
			line = filepath.Join(base, line)
		}
		files = append(files, line)
	}
	return files, scanner.Err()
}

// Folder picks a random image from a folder scan.
type Folder struct {
	root      string
	recursive bool
	filter    *filter.Filter
	picker    picker

	mu      sync.Mutex
	files   []string
	scanned bool
}

func NewFolder(root string, recursive bool, f *filter.Filter, rng *rand.Rand) *Folder {
	return &Folder{
		root:      utils.ExpandTilde(root),
		recursive: recursive,
		filter:    f,
		picker:    picker{rng: rng},
	}
}

func (s *Folder) Kind() config.SourceKind { return config.SourceFolder }
func (s *Folder) Name() string            { return "Folder" }

// Root returns the scanned folder.
func (s *Folder) Root() string { return s.root }

// Recursive reports whether subfolders are scanned.
func (s *Folder) Recursive() bool { return s.recursive }

// Invalidate forces a rescan on the next Fetch.
func (s *Folder) Invalidate() {
	s.mu.Lock()
	s.scanned = false
	s.mu.Unlock()
}

// Files returns the current candidates, scanning if needed.
func (s *Folder) Files() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.scanned {
		files, err := s.scan()
		if err != nil {
			return nil, err
		}
		s.files = files
		s.scanned = true
		log.Debugf("Scanned %d images in %s", len(files), s.root)
	}
	return s.files, nil
}

func (s *Folder) Fetch(ctx context.Context) (string, error) {
	files, err := s.Files()
	if err != nil {
		return "", err
	}
	return s.picker.pick(files)
}

// scan walks the folder and collects matching files.
func (s *Folder) scan() ([]string, error) {
	root, err := filepath.Abs(s.root)
	if err != nil {
		return nil, err
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && !s.recursive {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if s.filter.Match(rel) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// Drop picks a random file from a set handed over on the command line.
type Drop struct {
	picker picker

	mu    sync.Mutex
	files []string
}

func NewDrop(files []string, rng *rand.Rand) *Drop {
	d := &Drop{picker: picker{rng: rng}}
	d.SetFiles(files)
	return d
}

func (s *Drop) Kind() config.SourceKind { return config.SourceDrop }
func (s *Drop) Name() string            { return "Drop" }

// SetFiles replaces the dropped set.
func (s *Drop) SetFiles(files []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = append([]string(nil), files...)
}

// Files returns a copy of the dropped set.
func (s *Drop) Files() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.files...)
}

func (s *Drop) Fetch(ctx context.Context) (string, error) {
	return s.picker.pick(s.Files())
}
