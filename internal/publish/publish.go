package publish

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Generated wallpapers are named Prefix<uuid>Ext.
const (
	Prefix = "wall-"
	Ext    = ".png"
)

// Publisher installs converted images into the destination folder, keeping
// exactly one generated file there.
type Publisher struct {
	mu      sync.Mutex
	dir     string
	current string
}

func New(dir string) *Publisher {
	return &Publisher{dir: dir}
}

// Dir returns the destination folder.
func (p *Publisher) Dir() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dir
}

// SetDir switches the destination folder. The previous output stays where it
// is and is no longer tracked.
func (p *Publisher) SetDir(dir string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if dir != p.dir {
		p.dir = dir
		p.current = ""
	}
}

// Current returns the path of the live generated file, if any.
func (p *Publisher) Current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// TempPath is where converters write before Install.
func (p *Publisher) TempPath() string {
	return filepath.Join(p.Dir(), ".wallrot-tmp"+Ext)
}

// Install moves tmp into the destination folder under a fresh name and
// removes the previous output. It returns the new path.
func (p *Publisher) Install(tmp string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := os.MkdirAll(p.dir, 0755); err != nil {
		return "", fmt.Errorf("could not create %s: %w", p.dir, err)
	}

	dst := filepath.Join(p.dir, Prefix+uuid.NewString()+Ext)
	if err := moveFile(tmp, dst); err != nil {
		return "", err
	}

	if p.current != "" && p.current != dst {
		if err := os.Remove(p.current); err != nil && !os.IsNotExist(err) {
			log.Warnf("Could not remove previous wallpaper %s: %v", p.current, err)
		}
	}
	p.current = dst
	return dst, nil
}

// Cleanup removes generated files left behind by earlier runs, except the
// live one.
func (p *Publisher) Cleanup() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries, err := os.ReadDir(p.dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, e := range entries {
		name := e.Name()
		path := filepath.Join(p.dir, name)
		if e.IsDir() || path == p.current {
			continue
		}
		if strings.HasPrefix(name, Prefix) && strings.HasSuffix(name, Ext) {
			if err := os.Remove(path); err != nil {
				log.Warnf("Could not remove stale wallpaper %s: %v", path, err)
				continue
			}
			log.Debugf("Removed stale wallpaper %s", path)
		}
	}
	return nil
}
