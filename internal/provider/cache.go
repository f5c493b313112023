package provider

import (
	"context"
	"log"
	"sync"

	"github.com/agentkb/agentkb/internal/domain"
	"golang.org/x/sync/singleflight"
)

// AgentSource supplies the current agent configuration for client
// construction.
type AgentSource interface {
	GetByID(ctx context.Context, id string) (*domain.Agent, error)
}

// clientPair is an agent's (chat, embedding) client tuple, built from one
// configuration snapshot.
type clientPair struct {
	chat  ChatClient
	embed EmbeddingClient
}

// ClientCache memoizes provider clients per agent id.
//
// Construction is serialized per agent id through singleflight so that
// concurrent callers for the same agent observe at most one construction,
// while unrelated agents never block each other. Failed constructions
// (unknown provider, missing agent) are not cached.
//
// Invalidation is explicit: every write to an agent's configuration must be
// followed by Invalidate for that agent. A stale cached client after a
// credential rotation is a correctness bug.
type ClientCache struct {
	agents AgentSource

	mu    sync.RWMutex
	pairs map[string]*clientPair
	// gens counts invalidations per agent. A build that started before an
	// invalidation must not be stored after it.
	gens  map[string]uint64
	group singleflight.Group
}

// NewClientCache creates an empty cache reading agent configuration from src.
func NewClientCache(src AgentSource) *ClientCache {
	return &ClientCache{
		agents: src,
		pairs:  make(map[string]*clientPair),
		gens:   make(map[string]uint64),
	}
}

// ChatClient returns the cached chat client for the agent, constructing the
// agent's client pair on first access.
func (c *ClientCache) ChatClient(ctx context.Context, agentID string) (ChatClient, error) {
	pair, err := c.pair(ctx, agentID)
	if err != nil {
		return nil, err
	}
	return pair.chat, nil
}

// EmbeddingClient returns the cached embedding client for the agent,
// constructing the agent's client pair on first access.
func (c *ClientCache) EmbeddingClient(ctx context.Context, agentID string) (EmbeddingClient, error) {
	pair, err := c.pair(ctx, agentID)
	if err != nil {
		return nil, err
	}
	return pair.embed, nil
}

func (c *ClientCache) pair(ctx context.Context, agentID string) (*clientPair, error) {
	c.mu.RLock()
	pair, ok := c.pairs[agentID]
	c.mu.RUnlock()
	if ok {
		return pair, nil
	}

	v, err, _ := c.group.Do(agentID, func() (any, error) {
		// Re-check under the flight: another caller may have populated the
		// entry between the read above and this closure running. The
		// generation is recorded before the build so an Invalidate racing
		// with it can be detected afterwards.
		c.mu.Lock()
		existing, ok := c.pairs[agentID]
		gen, tracked := c.gens[agentID]
		if !tracked {
			c.gens[agentID] = 0
		}
		c.mu.Unlock()
		if ok {
			return existing, nil
		}

		built, err := c.build(ctx, agentID)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.gens[agentID] == gen {
			c.pairs[agentID] = built
		}
		c.mu.Unlock()
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*clientPair), nil
}

func (c *ClientCache) build(ctx context.Context, agentID string) (*clientPair, error) {
	agent, err := c.agents.GetByID(ctx, agentID)
	if err != nil {
		return nil, err
	}

	factory, err := FactoryFor(agent.ProviderName)
	if err != nil {
		return nil, err
	}

	chat, err := factory.BuildChatClient(agent)
	if err != nil {
		return nil, err
	}
	embed, err := factory.BuildEmbeddingClient(agent)
	if err != nil {
		return nil, err
	}

	log.Printf("provider: built %s clients for agent %s", agent.ProviderName, agentID)
	return &clientPair{chat: chat, embed: embed}, nil
}

// Invalidate drops the cached client pair for one agent. Callers must invoke
// this after any agent configuration write.
func (c *ClientCache) Invalidate(agentID string) {
	c.group.Forget(agentID)
	c.mu.Lock()
	c.gens[agentID]++
	_, existed := c.pairs[agentID]
	delete(c.pairs, agentID)
	c.mu.Unlock()
	if existed {
		log.Printf("provider: invalidated cached clients for agent %s", agentID)
	}
}

// InvalidateAll drops every cached client pair.
func (c *ClientCache) InvalidateAll() {
	c.mu.Lock()
	n := len(c.pairs)
	for id := range c.gens {
		c.gens[id]++
	}
	c.pairs = make(map[string]*clientPair)
	c.mu.Unlock()
	log.Printf("provider: invalidated all cached clients (%d)", n)
}

// Size reports the number of cached client pairs (for monitoring).
func (c *ClientCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pairs)
}
