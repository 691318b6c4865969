package feed

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/amacivic/engagement/internal/engagement"
)

// MemorySource holds feed content in process memory for the memory storage
// driver. It also receives recounted counters so ranking sees fresh votes.
type MemorySource struct {
	mu      sync.RWMutex
	posts   map[string]Post
	quests  []Quest
	updates []AccountabilityUpdate
	viewers map[string]Viewer
}

// NewMemorySource creates an empty source
func NewMemorySource() *MemorySource {
	return &MemorySource{
		posts:   make(map[string]Post),
		viewers: make(map[string]Viewer),
	}
}

// AddPosts inserts or replaces posts
func (m *MemorySource) AddPosts(posts ...Post) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range posts {
		m.posts[p.ID] = p
	}
}

// AddQuests appends quests
func (m *MemorySource) AddQuests(quests ...Quest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quests = append(m.quests, quests...)
}

// AddAccountabilityUpdates appends updates
func (m *MemorySource) AddAccountabilityUpdates(updates ...AccountabilityUpdate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, updates...)
}

// SetViewer stores what is known about a user
func (m *MemorySource) SetViewer(v Viewer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.viewers[v.UserID] = v
}

// ListPosts implements Source, newest first
func (m *MemorySource) ListPosts(ctx context.Context, q PostQuery) ([]Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Post, 0, len(m.posts))
	for _, p := range m.posts {
		if q.CommunityID == "" || p.CommunityID == q.CommunityID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// ListQuests implements Source. Progress is not tracked in memory.
func (m *MemorySource) ListQuests(ctx context.Context, userID string) ([]Quest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Quest(nil), m.quests...), nil
}

// ListAccountabilityUpdates implements Source
func (m *MemorySource) ListAccountabilityUpdates(ctx context.Context) ([]AccountabilityUpdate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]AccountabilityUpdate(nil), m.updates...), nil
}

// LoadViewer implements Source
func (m *MemorySource) LoadViewer(ctx context.Context, userID string) (Viewer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.viewers[userID]; ok {
		return v, nil
	}
	return Viewer{UserID: userID}, nil
}

// StoreCounters implements engagement.CounterSink for posts
func (m *MemorySource) StoreCounters(ctx context.Context, targetID string, tt engagement.TargetType, c engagement.Counters) error {
	if tt != engagement.TargetPost {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[targetID]
	if !ok {
		return fmt.Errorf("post %s not found", targetID)
	}
	p.Upvotes, p.Downvotes = c.Upvotes, c.Downvotes
	m.posts[targetID] = p
	return nil
}

// AuthoredCounters implements engagement.KarmaReader. Comments are not held
// in memory so they contribute nothing.
func (m *MemorySource) AuthoredCounters(ctx context.Context, userID string, tt engagement.TargetType) ([]engagement.Counters, error) {
	if tt != engagement.TargetPost {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []engagement.Counters
	for _, p := range m.posts {
		if p.AuthorID == userID {
			out = append(out, engagement.Counters{Upvotes: p.Upvotes, Downvotes: p.Downvotes})
		}
	}
	return out, nil
}
