package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/mahyarmirrashed/wallrot/internal/config"
	"github.com/mahyarmirrashed/wallrot/internal/convert"
	"github.com/mahyarmirrashed/wallrot/internal/history"
	"github.com/mahyarmirrashed/wallrot/internal/instance"
	"github.com/mahyarmirrashed/wallrot/internal/publish"
	"github.com/mahyarmirrashed/wallrot/internal/scheduler"
	"github.com/mahyarmirrashed/wallrot/internal/source"
	"github.com/mahyarmirrashed/wallrot/internal/watcher"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Options carries what the daemon needs besides its config.
type Options struct {
	ConfigPath string // where replaced configs are saved; empty disables saving
	ConfigDir  string // "config" destination folder and remote download area
	Socket     string // control socket; empty disables the server

	History *history.Store // optional

	// Persisted is the config as read from ConfigPath, before command line
	// overrides. Saves start from it; when nil the active config is used.
	Persisted *config.Config

	// Fixed backends, mainly for tests. When nil they follow the config.
	Converter convert.Converter
	Setter    publish.Setter
	Source    source.Options
}

// Daemon owns the active configuration and performs rotations.
type Daemon struct {
	opts      Options
	publisher *publish.Publisher
	sched     *scheduler.Scheduler
	server    *instance.Server

	rotateMu sync.Mutex // one rotation at a time

	mu          sync.Mutex
	cfg         *config.Config
	persisted   *config.Config
	src         source.Source
	conv        convert.Converter
	setter      publish.Setter
	runCtx      context.Context
	stopWatcher context.CancelFunc

	input     string
	output    string
	sourceURL string
	rotations int
	lastErr   string
	changed   time.Time
}

// New validates cfg and builds the rotation pipeline for it.
func New(cfg *config.Config, opts Options) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Source.WorkDir == "" {
		opts.Source.WorkDir = opts.ConfigDir
	}

	persisted := opts.Persisted
	if persisted == nil {
		persisted = cfg
	}
	d := &Daemon{
		opts:      opts,
		persisted: persisted.Clone(),
		publisher: publish.New(cfg.DestFolder(opts.ConfigDir)),
	}
	d.server = instance.NewServer(d)
	d.sched = scheduler.New(cfg.Interval(), func(ctx context.Context) {
		if err := d.Rotate(ctx); err != nil {
			log.Errorf("Rotation failed: %v", err)
		}
	})

	if err := d.apply(cfg); err != nil {
		return nil, err
	}
	return d, nil
}

// Config returns a copy of the active configuration.
func (d *Daemon) Config() *config.Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg.Clone()
}

// Cleanup removes generated wallpapers other than the current one.
func (d *Daemon) Cleanup() error {
	return d.publisher.Cleanup()
}

// Server returns the control server.
func (d *Daemon) Server() *instance.Server {
	return d.server
}

// apply swaps in cfg and rebuilds everything derived from it.
func (d *Daemon) apply(cfg *config.Config) error {
	src, err := source.New(cfg.Source, d.opts.Source)
	if err != nil {
		return err
	}

	conv := d.opts.Converter
	if conv == nil {
		if conv, err = convert.New(cfg.Converter); err != nil {
			return err
		}
	}

	setter := d.opts.Setter
	if setter == nil {
		if setter, err = publish.NewSetter(cfg.Desktop); err != nil {
			log.Warnf("Desktop integration disabled: %v", err)
		}
	}

	d.mu.Lock()
	d.cfg = cfg
	d.src = src
	d.conv = conv
	d.setter = setter
	d.mu.Unlock()

	d.publisher.SetDir(cfg.DestFolder(d.opts.ConfigDir))
	d.sched.Reset(cfg.Interval())
	d.sched.SetEnabled(cfg.Running)
	d.restartWatcher()

	log.Infof("Source %s (%s), every %s, running=%t", src.Name(), src.Kind(), cfg.Interval(), cfg.Running)
	return nil
}

// restartWatcher follows the active source while Run is active.
func (d *Daemon) restartWatcher() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopWatcher != nil {
		d.stopWatcher()
		d.stopWatcher = nil
	}
	if d.runCtx == nil {
		return
	}

	w, err := watcher.ForSource(d.src, watcher.DefaultDebounce)
	if err != nil {
		log.Warnf("Not watching source for changes: %v", err)
		return
	}
	if w == nil {
		return
	}
	ctx, cancel := context.WithCancel(d.runCtx)
	d.stopWatcher = cancel
	go func() {
		if err := w.Run(ctx); err != nil {
			log.Warnf("Watcher stopped: %v", err)
		}
	}()
}

// Rotate fetches the next image, converts it and installs the result.
func (d *Daemon) Rotate(ctx context.Context) error {
	d.rotateMu.Lock()
	defer d.rotateMu.Unlock()

	d.mu.Lock()
	cfg, src, conv, setter := d.cfg, d.src, d.conv, d.setter
	d.mu.Unlock()

	started := time.Now()
	rec := &history.Rotation{
		Kind:      string(src.Kind()),
		Source:    src.Name(),
		Converter: cfg.Converter,
	}

	out, err := d.rotate(ctx, cfg, src, conv, rec)
	rec.Duration = time.Since(started)
	if err != nil {
		rec.Error = err.Error()
		d.finish(rec, err)
		d.server.Broadcast(instance.Event{Type: instance.EventError, Input: rec.Input, Source: rec.Source, Error: rec.Error})
		return err
	}

	if setter != nil {
		if err := setter.Set(ctx, out); err != nil {
			log.Warnf("%s could not set wallpaper: %v", setter.Name(), err)
		}
	}

	d.finish(rec, nil)
	d.server.Broadcast(instance.Event{Type: instance.EventWallpaper, Path: out, Input: rec.Input, Source: rec.Source})
	notifyRotation(cfg.Notify, src.Name(), rec.Input)
	log.Infof("Wallpaper %s from %s (%s)", filepath.Base(out), rec.Input, rec.Duration.Round(time.Millisecond))
	return nil
}

func (d *Daemon) rotate(ctx context.Context, cfg *config.Config, src source.Source, conv convert.Converter, rec *history.Rotation) (string, error) {
	input, err := src.Fetch(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", src.Name(), err)
	}
	rec.Input = input
	if r, ok := src.(interface{ SourceURL() string }); ok {
		rec.SourceURL = r.SourceURL()
	}

	tmp := d.publisher.TempPath()
	if err := os.MkdirAll(filepath.Dir(tmp), 0755); err != nil {
		return "", err
	}
	req, err := convert.RequestFromConfig(cfg, input, tmp)
	if err != nil {
		return "", err
	}

	res, err := conv.Convert(ctx, req)
	if err != nil {
		_ = os.Remove(tmp)
		if res.Stderr != "" {
			log.Debugf("Converter stderr: %s", res.Stderr)
		}
		return "", fmt.Errorf("convert %s: %w", input, err)
	}

	out, err := d.publisher.Install(tmp)
	if err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("install wallpaper: %w", err)
	}
	rec.Output = out
	return out, nil
}

// finish records the outcome of a rotation.
func (d *Daemon) finish(rec *history.Rotation, err error) {
	d.mu.Lock()
	d.rotations++
	if err != nil {
		d.lastErr = err.Error()
	} else {
		d.lastErr = ""
		d.input = rec.Input
		d.output = rec.Output
		d.sourceURL = rec.SourceURL
		d.changed = time.Now()
	}
	d.mu.Unlock()

	if d.opts.History != nil {
		if err := d.opts.History.Record(rec); err != nil {
			log.Warnf("Could not record history: %v", err)
		}
	}
}

// Next rotates immediately and restarts the timer period.
func (d *Daemon) Next(ctx context.Context) error {
	return d.sched.Do(ctx, d.Rotate)
}

// Open switches to the dropped-files source with files and rotates. Only the
// source change is saved; command line overrides stay out of the file.
func (d *Daemon) Open(ctx context.Context, files []string) error {
	if len(files) == 0 {
		return source.ErrEmpty
	}
	cfg := d.Config()
	cfg.Source.Kind = config.SourceDrop
	cfg.Source.Files = append([]string(nil), files...)

	d.mu.Lock()
	persisted := d.persisted.Clone()
	d.mu.Unlock()
	persisted.Source.Kind = config.SourceDrop
	persisted.Source.Files = append([]string(nil), files...)

	return d.replace(ctx, cfg, persisted)
}

// Replace swaps the whole configuration, saves it and rotates.
func (d *Daemon) Replace(ctx context.Context, cfg *config.Config) error {
	return d.replace(ctx, cfg, cfg)
}

func (d *Daemon) replace(ctx context.Context, cfg, persisted *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := d.apply(cfg.Clone()); err != nil {
		return err
	}

	d.mu.Lock()
	d.persisted = persisted.Clone()
	d.mu.Unlock()
	if err := d.save(); err != nil {
		log.Warnf("Could not save config: %v", err)
	}

	d.server.Broadcast(instance.Event{Type: instance.EventConfig, Source: d.Status().Source})
	return d.sched.Do(ctx, d.Rotate)
}

func (d *Daemon) save() error {
	if d.opts.ConfigPath == "" {
		return nil
	}
	d.mu.Lock()
	cfg := d.persisted.Clone()
	d.mu.Unlock()
	return config.SaveConfig(d.opts.ConfigPath, cfg)
}

// Status implements instance.Controller.
func (d *Daemon) Status() instance.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return instance.Status{
		PID:       os.Getpid(),
		Running:   d.cfg.Running,
		Kind:      d.src.Kind(),
		Source:    d.src.Name(),
		Input:     d.input,
		Output:    d.output,
		SourceURL: d.sourceURL,
		Interval:  d.cfg.Interval().String(),
		Rotations: d.rotations,
		LastError: d.lastErr,
		Changed:   d.changed,
	}
}

// Run rotates once, then serves the control socket and the timer until ctx
// is done or SIGINT/SIGTERM arrives. SIGHUP reloads the config file.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := d.Cleanup(); err != nil {
		log.Warnf("Cleanup of %s failed: %v", d.publisher.Dir(), err)
	}

	g, gctx := errgroup.WithContext(ctx)

	d.mu.Lock()
	d.runCtx = gctx
	d.mu.Unlock()
	d.restartWatcher()
	defer func() {
		d.mu.Lock()
		d.runCtx = nil
		d.mu.Unlock()
		d.restartWatcher()
	}()

	if d.opts.Socket != "" {
		g.Go(func() error {
			return d.server.Serve(gctx, d.opts.Socket)
		})
	}
	g.Go(func() error {
		return d.sched.Run(gctx)
	})
	g.Go(func() error {
		d.handleHangup(gctx)
		return nil
	})

	d.sched.Trigger()

	err := g.Wait()
	log.Info("Daemon stopping")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (d *Daemon) handleHangup(ctx context.Context) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := d.Reload(ctx); err != nil {
				log.Errorf("Reload failed: %v", err)
			}
		}
	}
}

// Reload re-reads the config file and replaces the active config with it.
func (d *Daemon) Reload(ctx context.Context) error {
	if d.opts.ConfigPath == "" {
		return errors.New("no config file to reload")
	}
	cfg, err := config.LoadConfig(d.opts.ConfigPath)
	if err != nil {
		return err
	}
	log.Infof("Reloading %s", d.opts.ConfigPath)
	return d.Replace(ctx, cfg)
}
