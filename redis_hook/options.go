package redishook

import "github.com/benbjohnson/clock"

// DefaultChannel is the pub/sub channel used when none is configured.
const DefaultChannel = "warden:events"

// Option configures an Extension.
type Option func(*Extension)

// WithChannel sets the pub/sub channel events are published on.
func WithChannel(channel string) Option {
	return func(h *Extension) { h.channel = channel }
}

// WithEvents restricts the extension to publish only the listed event
// types. By default every event type is published. Unknown types are
// silently ignored.
func WithEvents(events ...string) Option {
	return func(h *Extension) {
		h.enabled = make(map[string]bool, len(events))
		for _, e := range events {
			h.enabled[e] = true
		}
	}
}

// WithClock sets the clock that stamps envelopes.
func WithClock(c clock.Clock) Option {
	return func(h *Extension) { h.clock = c }
}
