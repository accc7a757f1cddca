package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/timmy/memefeed/internal/domain"
)

// fakeAPI is an in-memory meme service.
type fakeAPI struct {
	mu sync.Mutex

	memes    []domain.Meme
	users    map[string]domain.User
	comments map[string][]domain.Comment

	listErr        error
	failUsers      map[string]bool
	failComments   map[string]bool
	createErr      error
	userDelay      time.Duration
	userCalls      map[string]int
	commentCalls   map[string]int
	createdContent []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		users:        map[string]domain.User{},
		comments:     map[string][]domain.Comment{},
		failUsers:    map[string]bool{},
		failComments: map[string]bool{},
		userCalls:    map[string]int{},
		commentCalls: map[string]int{},
	}
}

// aliceAndBob is the two-meme feed where alice comments on bob's meme.
func aliceAndBob() *fakeAPI {
	api := newFakeAPI()
	api.users["u-alice"] = domain.User{ID: "u-alice", Username: "alice"}
	api.users["u-bob"] = domain.User{ID: "u-bob", Username: "bob"}
	api.memes = []domain.Meme{
		{ID: "m-1", AuthorID: "u-alice", Description: "first"},
		{ID: "m-2", AuthorID: "u-bob", Description: "second"},
	}
	api.comments["m-2"] = []domain.Comment{
		{ID: "c-1", MemeID: "m-2", AuthorID: "u-alice", Content: "lol"},
	}
	return api
}

func (f *fakeAPI) ListMemes(ctx context.Context, token string, page int) (*domain.Page[domain.Meme], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.Meme, len(f.memes))
	copy(out, f.memes)
	return &domain.Page[domain.Meme]{Results: out, Total: len(out), PageSize: 10, Page: page}, nil
}

func (f *fakeAPI) GetUser(ctx context.Context, token, id string) (*domain.User, error) {
	f.mu.Lock()
	f.userCalls[id]++
	delay := f.userDelay
	fail := f.failUsers[id]
	user, ok := f.users[id]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, domain.NewNetworkError("fake.GetUser", errors.New("connection refused"))
	}
	if !ok {
		return nil, domain.NewNotFoundError("fake.GetUser", "user not found")
	}
	return &user, nil
}

func (f *fakeAPI) ListComments(ctx context.Context, token, memeID string, page int) (*domain.Page[domain.Comment], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commentCalls[memeID]++
	if f.failComments[memeID] {
		return nil, domain.NewNetworkError("fake.ListComments", errors.New("timeout"))
	}
	src := f.comments[memeID]
	out := make([]domain.Comment, len(src))
	copy(out, src)
	return &domain.Page[domain.Comment]{Results: out, Total: len(out), PageSize: 10, Page: page}, nil
}

func (f *fakeAPI) CreateComment(ctx context.Context, token, memeID, content string) (*domain.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createdContent = append(f.createdContent, content)
	if f.createErr != nil {
		return nil, f.createErr
	}
	c := domain.Comment{ID: "c-new", MemeID: memeID, Content: content}
	f.comments[memeID] = append(f.comments[memeID], c)
	return &c, nil
}

func (f *fakeAPI) calls(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.userCalls[id]
}
