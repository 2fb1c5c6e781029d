// Package alloc abstracts the external game-server allocation
// collaborator. The real allocator lives outside this service; Static is
// the stand-in used in development and tests.
package alloc

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"

	"matchmaker-backend/internal/engine"
)

type Allocator interface {
	Allocate(ctx context.Context, matchID, mapID string) (engine.ConnectInfo, error)
}

// Static hands out addresses round-robin from a fixed pool with a fresh
// random password per match.
type Static struct {
	mu    sync.Mutex
	addrs []string
	next  int
}

func NewStatic(addrs []string) *Static {
	if len(addrs) == 0 {
		addrs = []string{"10.0.0.1:27015", "10.0.0.2:27015", "10.0.0.3:27015"}
	}
	return &Static{addrs: addrs}
}

func (a *Static) Allocate(ctx context.Context, matchID, mapID string) (engine.ConnectInfo, error) {
	if err := ctx.Err(); err != nil {
		return engine.ConnectInfo{}, err
	}
	password, err := randomPassword(10)
	if err != nil {
		return engine.ConnectInfo{}, fmt.Errorf("generate password: %w", err)
	}
	a.mu.Lock()
	addr := a.addrs[a.next%len(a.addrs)]
	a.next++
	a.mu.Unlock()
	return engine.ConnectInfo{Address: addr, Password: password, MapID: mapID}, nil
}

func randomPassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	pw := make([]byte, length)
	for i := range pw {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		pw[i] = charset[num.Int64()]
	}
	return string(pw), nil
}
