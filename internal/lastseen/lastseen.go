// Package lastseen records when a user's last connection went away.
package lastseen

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

// Recorder stores last-seen times. Implementations must be safe for concurrent use.
type Recorder interface {
	Record(ctx context.Context, username string, at time.Time) error
	LastSeen(ctx context.Context, username string) (at time.Time, ok bool, err error)
	// Close releases connections held by the recorder.
	Close() error
}

// Loader creates a recorder from the config carried in ctx.
type Loader func(ctx context.Context) (Recorder, error)

// Plugin represents a recorder backend.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds a recorder backend.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered recorder names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named recorder.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown last-seen recorder %q; valid: %v", name, Names())
}

func init() {
	Register(Plugin{
		Name:   "none",
		Loader: func(context.Context) (Recorder, error) { return Noop{}, nil },
	})
}

// Noop only logs.
type Noop struct{}

func (Noop) Record(_ context.Context, username string, at time.Time) error {
	log.Debug("Last seen", "user", username, "at", at)
	return nil
}

func (Noop) LastSeen(context.Context, string) (time.Time, bool, error) {
	return time.Time{}, false, nil
}

func (Noop) Close() error { return nil }
