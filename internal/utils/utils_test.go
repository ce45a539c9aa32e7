package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gen2brain/beeep"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "Pictures"), ExpandTilde("~/Pictures"))
	assert.Equal(t, "/abs/path", ExpandTilde("/abs/path"))
	assert.Equal(t, "rel/path", ExpandTilde("rel/path"))
}

func TestSendNotification(t *testing.T) {
	var calls []string
	notify = func(title, message string, icon any) error {
		calls = append(calls, title+": "+message)
		return nil
	}
	t.Cleanup(func() { notify = beeep.Notify })

	SendNotification(false, "wallrot", "hidden")
	SendNotification(true, "wallrot", "shown")
	assert.Equal(t, []string{"wallrot: shown"}, calls)
}

func TestConfigureLogging(t *testing.T) {
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		log.SetLevel(log.InfoLevel)
	})

	closer := ConfigureLogging("debug", "")
	assert.Equal(t, log.DebugLevel, log.GetLevel())
	assert.NoError(t, closer.Close())

	ConfigureLogging("bogus", "")
	assert.Equal(t, log.InfoLevel, log.GetLevel())

	path := filepath.Join(t.TempDir(), "logs", "wallrot.log")
	closer = ConfigureLogging("info", path)
	log.Info("hello from test")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from test")
}
