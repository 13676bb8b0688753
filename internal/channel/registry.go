// Package channel provides channel management for messaging integrations.
package channel

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/soyeahso/cupid/internal/domain"
	"github.com/soyeahso/cupid/internal/logging"
	"golang.org/x/sync/errgroup"
)

// Registry manages a set of messaging channels.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]domain.Channel
	log      *logging.Logger
}

// NewRegistry creates a channel registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		channels: make(map[string]domain.Channel),
		log:      log.Sub("channels"),
	}
}

// Register adds a channel to the registry.
func (r *Registry) Register(ch domain.Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[ch.ID()] = ch
	r.log.Info().Str("channel", ch.ID()).Msg("channel registered")
}

// Get returns a channel by ID.
func (r *Registry) Get(id string) (domain.Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[id]
	return ch, ok
}

// List returns all channel IDs in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.channels))
	for id := range r.channels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Status returns the status of all registered channels.
func (r *Registry) Status() []domain.ChannelStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	statuses := make([]domain.ChannelStatus, 0, len(r.channels))
	for _, ch := range r.channels {
		if sc, ok := ch.(interface{ Status() domain.ChannelStatus }); ok {
			statuses = append(statuses, sc.Status())
		} else {
			statuses = append(statuses, domain.ChannelStatus{
				ChannelID: ch.ID(),
				Running:   true,
			})
		}
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].ChannelID < statuses[j].ChannelID })
	return statuses
}

// Run starts every channel and blocks until all of them have returned.
// Channel Start methods block for the life of the connection, so each runs in
// its own goroutine. A failing channel is logged and does not stop the others.
func (r *Registry) Run(ctx context.Context) error {
	r.mu.RLock()
	channels := make(map[string]domain.Channel, len(r.channels))
	for id, ch := range r.channels {
		channels[id] = ch
	}
	r.mu.RUnlock()

	var g errgroup.Group
	for id, ch := range channels {
		r.log.Info().Str("channel", id).Msg("starting channel")
		g.Go(func() error {
			err := ch.Start(ctx)
			switch {
			case err == nil, errors.Is(err, context.Canceled):
				r.log.Info().Str("channel", id).Msg("channel stopped")
			default:
				r.log.Error().Err(err).Str("channel", id).Msg("channel exited with error")
			}
			return nil
		})
	}
	return g.Wait()
}

// StopAll stops all registered channels.
func (r *Registry) StopAll(ctx context.Context) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for id, ch := range r.channels {
		r.log.Info().Str("channel", id).Msg("stopping channel")
		if err := ch.Stop(ctx); err != nil {
			r.log.Error().Err(err).Str("channel", id).Msg("failed to stop channel")
		}
	}
}

// Count returns the number of registered channels.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}
