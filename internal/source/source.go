package source

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mahyarmirrashed/wallrot/internal/config"
	"github.com/mahyarmirrashed/wallrot/internal/filter"
	"github.com/zalando/go-keyring"
)

// ErrEmpty is returned when a source has nothing to pick from.
var ErrEmpty = errors.New("source has no candidates")

// Source produces the path of the next image to show.
type Source interface {
	// Kind returns the configured source kind.
	Kind() config.SourceKind
	// Name returns a short display name.
	Name() string
	// Fetch returns a local path to the next image. It may block on I/O.
	Fetch(ctx context.Context) (string, error)
}

// Invalidator is implemented by sources that cache a candidate list and must
// re-read it when the backing file or folder changes.
type Invalidator interface {
	Invalidate()
}

// Options carries the dependencies sources need beyond their config.
type Options struct {
	WorkDir string                                  // Remote downloads land in WorkDir/dl
	Client  *resty.Client                           // Remote HTTP client; built when nil
	Rand    *rand.Rand                              // Random picks; seeded from the clock when nil
	Keyring func(service, user string) (string, error) // API key lookup; keyring.Get when nil
}

// New builds the source selected by cfg.Kind.
func New(cfg config.SourceConfig, opts Options) (Source, error) {
	if opts.Rand == nil {
		seed := uint64(time.Now().UnixNano())
		opts.Rand = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	if opts.Keyring == nil {
		opts.Keyring = keyring.Get
	}

	switch cfg.Kind {
	case config.SourceFile:
		return NewFile(cfg.Path), nil
	case config.SourceList:
		return NewList(cfg.Path, opts.Rand), nil
	case config.SourceFolder:
		f, err := filter.New(cfg.Include, cfg.Exclude)
		if err != nil {
			return nil, fmt.Errorf("could not compile folder patterns: %w", err)
		}
		return NewFolder(cfg.Path, cfg.Recursive, f, opts.Rand), nil
	case config.SourceDrop:
		return NewDrop(cfg.Files, opts.Rand), nil
	case config.SourceRemote:
		return NewRemote(cfg.Remote, opts), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}

// picker chooses uniformly at random while avoiding an immediate repeat.
type picker struct {
	mu   sync.Mutex
	rng  *rand.Rand
	last string
}

func (p *picker) pick(items []string) (string, error) {
	if len(items) == 0 {
		return "", ErrEmpty
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	choice := items[p.rng.IntN(len(items))]
	if choice == p.last && len(items) > 1 {
		// shift to a neighbour so the draw stays uniform over the rest
		idx := p.rng.IntN(len(items) - 1)
		for i, item := range items {
			if item == p.last {
				if idx >= i {
					idx++
				}
				break
			}
		}
		choice = items[idx]
	}
	p.last = choice
	return choice, nil
}
