package instance

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mahyarmirrashed/wallrot/internal/config"
	"golang.org/x/sys/unix"
)

// ErrLocked means another instance holds the lock.
var ErrLocked = errors.New("another instance is running")

// Lock is an exclusive advisory lock on a file.
type Lock struct {
	f *os.File
}

// Acquire takes the lock without blocking.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}

	_ = f.Truncate(0)
	_, _ = fmt.Fprintf(f, "%d\n", os.Getpid())
	return &Lock{f: f}, nil
}

// Release unlocks the lock file. The file stays in place so every contender
// locks the same inode.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	_ = l.f.Truncate(0)
	_ = unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	err := l.f.Close()
	l.f = nil
	return err
}

// RuntimeDir holds the socket and lock file for this user session.
func RuntimeDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, config.AppName)
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("%s-%d", config.AppName, os.Getuid()))
}

// SocketPath returns override when set, else the default socket path.
func SocketPath(override string) string {
	if override != "" {
		return override
	}
	return filepath.Join(RuntimeDir(), config.AppName+".sock")
}

// LockPath returns the lock file guarding socket.
func LockPath(socket string) string {
	return socket + ".lock"
}
