package workflow

import (
	"github.com/myrjola/fsvalidator/internal/errors"
	"sync"
)

var ErrBusy = errors.NewSentinel("another request for this session is in progress")

// Gate allows one transition at a time per session.
type Gate struct {
	mu   sync.Mutex
	busy map[string]struct{}
}

func NewGate() *Gate {
	return &Gate{
		mu:   sync.Mutex{},
		busy: make(map[string]struct{}),
	}
}

// TryAcquire marks key as busy. It returns ErrBusy if key is busy already.
func (g *Gate) TryAcquire(key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.busy[key]; ok {
		return ErrBusy
	}
	g.busy[key] = struct{}{}
	return nil
}

func (g *Gate) Release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.busy, key)
}
