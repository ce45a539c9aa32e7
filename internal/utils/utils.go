package utils

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/gen2brain/beeep"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

//go:embed icon.png
var Icon []byte

// notify is swapped out in tests.
var notify = beeep.Notify

// ExpandTilde will resolve to the correct location on disk.
func ExpandTilde(path string) string {
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// SendNotification shows a desktop notification when enabled.
func SendNotification(enabled bool, title string, message string) {
	if enabled {
		if err := notify(title, message, Icon); err != nil {
			log.Warnf("Notification failed: %v", err)
		}
	}
}

// ConfigureLogging sets the global logger level and output. When logFile is
// set, output is rotated through lumberjack; the returned closer flushes it.
func ConfigureLogging(level, logFile string) io.Closer {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
		CallerPrettyfier: func(f *runtime.Frame) (string, string) {
			return "", fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
		},
	})
	log.SetReportCaller(true)

	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)

	if logFile == "" {
		log.SetOutput(os.Stderr)
		return io.NopCloser(nil)
	}

	logFile = ExpandTilde(logFile)
	if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
		log.Warnf("Could not create log directory: %v", err)
	}
	rotator := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    10, // MB
		MaxBackups: 2,
		MaxAge:     28, // days
		Compress:   true,
	}
	log.SetOutput(rotator)
	return rotator
}
