package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/quietloop/murmur/pkg/audio"
	"github.com/quietloop/murmur/pkg/decoder"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for the
// decoder and audio source. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	decoder map[string]func(ProviderEntry) (decoder.Decoder, error)
	audio   map[string]func(ProviderEntry) (audio.Source, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		decoder: make(map[string]func(ProviderEntry) (decoder.Decoder, error)),
		audio:   make(map[string]func(ProviderEntry) (audio.Source, error)),
	}
}

// RegisterDecoder registers a decoder factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterDecoder(name string, factory func(ProviderEntry) (decoder.Decoder, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoder[name] = factory
}

// RegisterAudio registers an audio source factory under name.
func (r *Registry) RegisterAudio(name string, factory func(ProviderEntry) (audio.Source, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audio[name] = factory
}

// CreateDecoder instantiates a decoder using the factory registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateDecoder(entry ProviderEntry) (decoder.Decoder, error) {
	r.mu.RLock()
	factory, ok := r.decoder[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: decoder/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateAudio instantiates an audio source using the factory registered under entry.Name.
func (r *Registry) CreateAudio(entry ProviderEntry) (audio.Source, error) {
	r.mu.RLock()
	factory, ok := r.audio[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: audio/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
