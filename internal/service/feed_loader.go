package service

import (
	"context"
	"sync"

	"github.com/timmy/memefeed/internal/domain"
)

// FeedAggregator produces assembled feed pages.
type FeedAggregator interface {
	Aggregate(ctx context.Context, token string, page int) (*FeedPage, error)
}

// FeedState is the observable state of a feed view.
// Memes is only meaningful when Loading is false and Err is nil.
type FeedState struct {
	Loading  bool
	Page     int
	PageSize int
	Total    int
	Memes    []domain.MemeWithDetails
	Err      error
}

// FeedLoader holds the current feed state for a UI layer.
// When loads overlap, the most recently started one wins and older results are dropped.
type FeedLoader struct {
	feed FeedAggregator

	// notifyMu serializes apply+notify so subscribers see transitions in order.
	notifyMu sync.Mutex

	mu      sync.Mutex
	gen     uint64
	state   FeedState
	subs    map[int]func(FeedState)
	nextSub int
}

// NewFeedLoader creates a loader in the not-loaded state.
func NewFeedLoader(feed FeedAggregator) *FeedLoader {
	return &FeedLoader{
		feed: feed,
		subs: make(map[int]func(FeedState)),
	}
}

// State returns a snapshot of the current state.
func (l *FeedLoader) State() FeedState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Subscribe registers fn to be called after every state transition.
// fn must not call Load. The returned function removes the subscription.
func (l *FeedLoader) Subscribe(fn func(FeedState)) (unsubscribe func()) {
	l.mu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = fn
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.subs, id)
		l.mu.Unlock()
	}
}

// Load fetches page and makes it the current state unless a newer Load started meanwhile.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - token: bearer credential.
//   - page: 1-based page number.
//
// Returns:
//   - FeedState: the state this load produced.
//   - bool: true if the result became current, false if it was superseded.
func (l *FeedLoader) Load(ctx context.Context, token string, page int) (FeedState, bool) {
	gen := l.apply(func(s *FeedState) {
		*s = FeedState{Loading: true, Page: page}
	}, 0)

	result, err := l.feed.Aggregate(ctx, token, page)

	next := FeedState{Page: page, Err: err}
	if err == nil {
		next.PageSize = result.PageSize
		next.Total = result.Total
		next.Memes = result.Memes
	}

	applied := l.apply(func(s *FeedState) { *s = next }, gen) != 0
	return next, applied
}

// apply sets the state and notifies subscribers. A zero want starts a new generation;
// otherwise the update is dropped unless want is still current. It returns the
// generation that was applied, or zero when the update was dropped.
func (l *FeedLoader) apply(update func(*FeedState), want uint64) uint64 {
	l.notifyMu.Lock()
	defer l.notifyMu.Unlock()

	l.mu.Lock()
	if want == 0 {
		l.gen++
		want = l.gen
	} else if want != l.gen {
		l.mu.Unlock()
		return 0
	}
	update(&l.state)
	snapshot := l.state
	subs := make([]func(FeedState), 0, len(l.subs))
	for _, fn := range l.subs {
		subs = append(subs, fn)
	}
	l.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}
	return want
}
