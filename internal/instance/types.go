package instance

import (
	"context"
	"time"

	"github.com/mahyarmirrashed/wallrot/internal/config"
)

// Controller is what the server drives. The daemon implements it.
type Controller interface {
	Status() Status
	Open(ctx context.Context, files []string) error
	Next(ctx context.Context) error
	Replace(ctx context.Context, cfg *config.Config) error
}

// Status describes the running instance.
type Status struct {
	PID       int               `json:"pid"`
	Running   bool              `json:"running"`
	Kind      config.SourceKind `json:"kind"`
	Source    string            `json:"source"`
	Input     string            `json:"input,omitempty"`
	Output    string            `json:"output,omitempty"`
	SourceURL string            `json:"source_url,omitempty"`
	Interval  string            `json:"interval"`
	Rotations int               `json:"rotations"`
	LastError string            `json:"last_error,omitempty"`
	Changed   time.Time         `json:"changed,omitempty"`
}

// Event is pushed to /events subscribers.
type Event struct {
	Type   string    `json:"type"`
	Path   string    `json:"path,omitempty"`
	Input  string    `json:"input,omitempty"`
	Source string    `json:"source,omitempty"`
	Error  string    `json:"error,omitempty"`
	Time   time.Time `json:"time"`
}

// Event types.
const (
	EventWallpaper = "wallpaper"
	EventError     = "error"
	EventConfig    = "config"
)

type openRequest struct {
	Files []string `json:"files"`
}

type errorResponse struct {
	Error string `json:"error"`
}
