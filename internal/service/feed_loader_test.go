package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/memefeed/internal/domain"
)

// gatedAggregator blocks each page until its gate is released.
type gatedAggregator struct {
	mu      sync.Mutex
	gates   map[int]chan struct{}
	started chan int
	err     error
}

func newGatedAggregator(pages ...int) *gatedAggregator {
	g := &gatedAggregator{gates: map[int]chan struct{}{}, started: make(chan int, 8)}
	for _, p := range pages {
		g.gates[p] = make(chan struct{})
	}
	return g
}

func (g *gatedAggregator) Aggregate(ctx context.Context, token string, page int) (*FeedPage, error) {
	g.mu.Lock()
	gate := g.gates[page]
	g.mu.Unlock()
	g.started <- page
	if gate != nil {
		<-gate
	}
	if g.err != nil {
		return nil, g.err
	}
	return &FeedPage{
		Page:     page,
		PageSize: 10,
		Total:    1,
		Memes:    []domain.MemeWithDetails{{Meme: domain.Meme{ID: fmt.Sprintf("page-%d", page)}}},
	}, nil
}

func TestFeedLoader_Load(t *testing.T) {
	agg := newGatedAggregator()
	loader := NewFeedLoader(agg)

	var seen []FeedState
	var mu sync.Mutex
	unsubscribe := loader.Subscribe(func(s FeedState) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})
	defer unsubscribe()

	state, applied := loader.Load(context.Background(), "token", 1)
	require.True(t, applied)
	assert.False(t, state.Loading)
	require.Len(t, state.Memes, 1)
	assert.Equal(t, "page-1", state.Memes[0].ID)
	assert.Equal(t, state.Memes, loader.State().Memes)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.True(t, seen[0].Loading)
	assert.False(t, seen[1].Loading)
}

func TestFeedLoader_LastRequestWins(t *testing.T) {
	agg := newGatedAggregator(1, 2)
	loader := NewFeedLoader(agg)

	type result struct {
		state   FeedState
		applied bool
	}
	first := make(chan result, 1)
	go func() {
		s, ok := loader.Load(context.Background(), "token", 1)
		first <- result{s, ok}
	}()
	require.Equal(t, 1, <-agg.started)

	second := make(chan result, 1)
	go func() {
		s, ok := loader.Load(context.Background(), "token", 2)
		second <- result{s, ok}
	}()
	require.Equal(t, 2, <-agg.started)

	// The newer load finishes first; the older one must not overwrite it.
	close(agg.gates[2])
	r2 := <-second
	assert.True(t, r2.applied)

	close(agg.gates[1])
	r1 := <-first
	assert.False(t, r1.applied)

	final := loader.State()
	assert.Equal(t, 2, final.Page)
	require.Len(t, final.Memes, 1)
	assert.Equal(t, "page-2", final.Memes[0].ID)
}

func TestFeedLoader_Error(t *testing.T) {
	agg := newGatedAggregator()
	agg.err = domain.NewNetworkError("fake", errors.New("down"))
	loader := NewFeedLoader(agg)

	state, applied := loader.Load(context.Background(), "token", 3)
	assert.True(t, applied)
	assert.False(t, state.Loading)
	assert.True(t, errors.Is(loader.State().Err, domain.ErrNetwork))
	assert.Empty(t, loader.State().Memes)
}

func TestFeedLoader_Unsubscribe(t *testing.T) {
	loader := NewFeedLoader(newGatedAggregator())
	calls := 0
	unsubscribe := loader.Subscribe(func(FeedState) { calls++ })
	unsubscribe()

	loader.Load(context.Background(), "token", 1)
	assert.Zero(t, calls)
}
