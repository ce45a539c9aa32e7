package instance

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Gate decides whether this process becomes the instance. It returns the held
// lock when it does. Otherwise args are forwarded to the running instance
// (files are opened, no args asks for the next wallpaper) and the lock is nil.
func Gate(ctx context.Context, socket string, args []string) (*Lock, error) {
	lock, err := Acquire(LockPath(socket))
	if err == nil {
		return lock, nil
	}
	if !errors.Is(err, ErrLocked) {
		return nil, err
	}

	client := NewClient(socket)
	if err := waitHealthy(ctx, client); err != nil {
		return nil, fmt.Errorf("instance holds the lock but does not answer: %w", err)
	}

	if len(args) > 0 {
		log.Infof("Forwarding %d file(s) to the running instance", len(args))
		_, err = client.Open(ctx, args)
	} else {
		log.Info("Asking the running instance for the next wallpaper")
		_, err = client.Next(ctx)
	}
	return nil, err
}

// waitHealthy gives a starting instance a moment to open its socket.
func waitHealthy(ctx context.Context, client *Client) error {
	var err error
	for i := 0; i < 10; i++ {
		if err = client.Health(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
	return err
}
