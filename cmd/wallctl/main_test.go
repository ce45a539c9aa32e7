package main

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mahyarmirrashed/wallrot/internal/config"
	"github.com/mahyarmirrashed/wallrot/internal/instance"
	"github.com/mahyarmirrashed/wallrot/pkg/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type controller struct {
	mu       sync.Mutex
	replaced []*config.Config
}

func (c *controller) Status() instance.Status {
	return instance.Status{PID: 1, Kind: config.SourceList, Source: "FileList"}
}

func (c *controller) Open(ctx context.Context, files []string) error { return nil }
func (c *controller) Next(ctx context.Context) error                 { return nil }

func (c *controller) Replace(ctx context.Context, cfg *config.Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replaced = append(c.replaced, cfg)
	return nil
}

func (c *controller) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.replaced)
}

func serve(t *testing.T, ctrl instance.Controller) *instance.Client {
	t.Helper()
	sock := filepath.Join(t.TempDir(), "w.sock")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = instance.NewServer(ctrl).Serve(ctx, sock)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	c := instance.NewClient(sock)
	require.Eventually(t, func() bool { return c.Health(context.Background()) == nil }, 2*time.Second, 10*time.Millisecond)
	return c
}

func TestApply(t *testing.T) {
	ctrl := &controller{}
	c := serve(t, ctrl)
	ctx := context.Background()
	dir := t.TempDir()

	_, err := apply(ctx, c, filepath.Join(dir, "typo.yaml"))
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, 0, ctrl.count())

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("converter: gimp\n"), 0644))
	_, err = apply(ctx, c, bad)
	assert.Error(t, err)
	assert.Equal(t, 0, ctrl.count())

	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte("scale: tile\nminutes: 2\n"), 0644))
	st, err := apply(ctx, c, good)
	require.NoError(t, err)
	assert.Equal(t, "FileList", st.Source)

	require.Equal(t, 1, ctrl.count())
	assert.Equal(t, geometry.ScaleTile, ctrl.replaced[0].Scale)
	assert.Equal(t, 2, ctrl.replaced[0].Minutes)
}
