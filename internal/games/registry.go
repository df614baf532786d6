// Package games holds the process-wide registry of games: the pool of
// uploaded quiz configs waiting for a host, and the live games keyed by
// token.
package games

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jacobtread/Quizler/internal/game"
	"github.com/jacobtread/Quizler/internal/logging"
	"github.com/jacobtread/Quizler/internal/types"
)

const (
	// PrepareCheckInterval is how often the sweeper looks for expired
	// prepared quizzes
	PrepareCheckInterval = 5 * time.Minute
	// PreparedExpiryTime is how long a prepared quiz may wait for a
	// host before it is discarded
	PreparedExpiryTime = 10 * time.Minute
)

// PreparedQuiz is an uploaded config waiting for a host to claim it
type PreparedQuiz struct {
	// The validated config
	Config *types.GameConfig
	// Creation time used for TTL expiry
	Created time.Time
}

// InitializedMessage carries the details of a game that was created
// from a prepared quiz
type InitializedMessage struct {
	// The uniquely allocated game token (e.g A3DLM)
	Token types.GameToken
	// The config the game runs with
	Config *types.GameConfig
	// Handle to the created game
	Game *game.Game
}

// Registry stores the prepared pool and the live games behind a single
// RW lock. Lookups take the read lock; prepare, initialize, removal and
// the sweeper take the write lock.
type Registry struct {
	mu       sync.RWMutex
	games    map[types.GameToken]*game.Game
	prepared map[uuid.UUID]PreparedQuiz
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		games:    make(map[types.GameToken]*game.Game),
		prepared: make(map[uuid.UUID]PreparedQuiz),
	}
}

// Process-wide registry instance
var defaultRegistry *Registry

// Init creates the process-wide registry and starts its sweeper. Must
// be invoked exactly once at startup before any session is accepted.
func Init(ctx context.Context) *Registry {
	defaultRegistry = NewRegistry()
	go defaultRegistry.sweepLoop(ctx)
	return defaultRegistry
}

// Default returns the process-wide registry created by Init
func Default() *Registry {
	return defaultRegistry
}

// Prepare stores an uploaded config in the prepared pool and returns
// the UUID a host uses to claim it
func (r *Registry) Prepare(config *types.GameConfig) uuid.UUID {
	id := uuid.New()

	r.mu.Lock()
	r.prepared[id] = PreparedQuiz{Config: config, Created: time.Now()}
	r.mu.Unlock()

	logging.LogRegistryEvent("quiz_prepared", map[string]interface{}{
		"uuid":      id.String(),
		"questions": len(config.Questions),
	})
	return id
}

// HasPrepared reports whether the prepared pool contains the UUID
func (r *Registry) HasPrepared(id uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.prepared[id]
	return ok
}

// Initialize consumes a prepared quiz, allocates a unique token and
// registers a new game hosted by the provided session. An unknown or
// expired UUID yields InvalidToken.
func (r *Registry) Initialize(id uuid.UUID, hostID types.SessionID, hostQueue *game.EventQueue) (*InitializedMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prepared, ok := r.prepared[id]
	if !ok {
		return nil, types.ErrInvalidToken
	}
	delete(r.prepared, id)

	// An entry past its TTL that the sweeper hasn't reached yet is
	// treated the same as an absent one
	if time.Since(prepared.Created) >= PreparedExpiryTime {
		return nil, types.ErrInvalidToken
	}

	token := types.UniqueToken(func(candidate types.GameToken) bool {
		_, taken := r.games[candidate]
		return taken
	})

	created := game.New(r, token, hostID, hostQueue, prepared.Config)
	r.games[token] = created

	logging.LogRegistryEvent("game_initialized", map[string]interface{}{
		"uuid":  id.String(),
		"token": token.String(),
		"host":  hostID,
	})

	return &InitializedMessage{Token: token, Config: prepared.Config, Game: created}, nil
}

// GetGame returns the live game registered under the token
func (r *Registry) GetGame(token types.GameToken) (*game.Game, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.games[token]
	return g, ok
}

// IsGame reports whether a live game is registered under the token
func (r *Registry) IsGame(token types.GameToken) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.games[token]
	return ok
}

// RemoveGame deletes the live game registered under the token
func (r *Registry) RemoveGame(token types.GameToken) {
	r.mu.Lock()
	delete(r.games, token)
	r.mu.Unlock()

	logging.LogRegistryEvent("game_removed", map[string]interface{}{
		"token": token.String(),
	})
}

// sweepExpired removes every prepared quiz whose TTL has passed as of
// the provided instant, returning the number removed
func (r *Registry) sweepExpired(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, prepared := range r.prepared {
		if now.Sub(prepared.Created) >= PreparedExpiryTime {
			delete(r.prepared, id)
			removed++
		}
	}
	return removed
}

// sweepLoop periodically trims the prepared pool until the context is
// cancelled. Missed ticks collapse to a single sweep.
func (r *Registry) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(PrepareCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if removed := r.sweepExpired(now); removed > 0 {
				logging.LogRegistryEvent("prepared_swept", map[string]interface{}{
					"removed": removed,
				})
			}
		}
	}
}
