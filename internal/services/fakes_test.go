package services

import (
	"context"
	"time"

	"github.com/forumboard/server/internal/store"
	"github.com/forumboard/server/types"
)

// fakeUserRepo is an in-memory UserRepository honoring the same sentinel
// errors as the Postgres-backed one.
type fakeUserRepo struct {
	users   map[string]types.User
	nextID  int
	creates int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]types.User), nextID: 1}
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, username string) (types.User, error) {
	user, ok := f.users[username]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	f.creates++
	if _, ok := f.users[user.Username]; ok {
		return types.User{}, store.ErrUsernameTaken
	}
	user.ID = f.nextID
	f.nextID++
	user.CreatedAt = time.Now()
	f.users[user.Username] = user
	return user, nil
}

// racingUserRepo simulates losing a registration race: the lookup misses,
// but by the time the insert runs another request has claimed the username.
type racingUserRepo struct {
	inner     *fakeUserRepo
	winner    types.User
	planted   bool
	lookedUp  int
	conflicts int
}

func (f *racingUserRepo) GetByUsername(ctx context.Context, username string) (types.User, error) {
	f.lookedUp++
	if !f.planted {
		return types.User{}, store.ErrNotFound
	}
	return f.inner.GetByUsername(ctx, username)
}

func (f *racingUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	if !f.planted {
		// The concurrent winner commits first.
		f.inner.users[f.winner.Username] = f.winner
		f.planted = true
		f.conflicts++
		return types.User{}, store.ErrUsernameTaken
	}
	return f.inner.Create(ctx, user)
}

// fakeConvoRepo is an in-memory ConvoRepository with unique titles.
type fakeConvoRepo struct {
	convos []types.Convo
	nextID int
}

func newFakeConvoRepo() *fakeConvoRepo {
	return &fakeConvoRepo{nextID: 1}
}

func (f *fakeConvoRepo) List(_ context.Context) ([]types.Convo, error) {
	out := make([]types.Convo, len(f.convos))
	copy(out, f.convos)
	return out, nil
}

func (f *fakeConvoRepo) GetByID(_ context.Context, id int) (types.Convo, error) {
	for _, convo := range f.convos {
		if convo.ID == id {
			return convo, nil
		}
	}
	return types.Convo{}, store.ErrNotFound
}

func (f *fakeConvoRepo) GetByTitle(_ context.Context, title string) (types.Convo, error) {
	for _, convo := range f.convos {
		if convo.Title == title {
			return convo, nil
		}
	}
	return types.Convo{}, store.ErrNotFound
}

func (f *fakeConvoRepo) Create(_ context.Context, title string) (types.Convo, error) {
	for _, convo := range f.convos {
		if convo.Title == title {
			return types.Convo{}, store.ErrTitleTaken
		}
	}
	convo := types.Convo{ID: f.nextID, Title: title, CreatedAt: time.Now()}
	f.nextID++
	f.convos = append(f.convos, convo)
	return convo, nil
}

// fakePostRepo is an in-memory PostRepository bound to a fakeConvoRepo
// for referential integrity.
type fakePostRepo struct {
	convos *fakeConvoRepo
	posts  []types.Post
	nextID int
}

func newFakePostRepo(convos *fakeConvoRepo) *fakePostRepo {
	return &fakePostRepo{convos: convos, nextID: 1}
}

func (f *fakePostRepo) Create(ctx context.Context, post types.Post) (types.Post, error) {
	if _, err := f.convos.GetByID(ctx, post.ConvoID); err != nil {
		return types.Post{}, store.ErrConvoNotFound
	}
	post.ID = f.nextID
	f.nextID++
	post.CreatedAt = time.Now()
	f.posts = append(f.posts, post)
	return post, nil
}

func (f *fakePostRepo) ListByConvo(ctx context.Context, convoID int) ([]types.Post, error) {
	if _, err := f.convos.GetByID(ctx, convoID); err != nil {
		return nil, store.ErrConvoNotFound
	}
	out := make([]types.Post, 0)
	for _, post := range f.posts {
		if post.ConvoID == convoID {
			out = append(out, post)
		}
	}
	return out, nil
}

func (f *fakePostRepo) CountByConvo(_ context.Context, convoID int) (int, error) {
	total := 0
	for _, post := range f.posts {
		if post.ConvoID == convoID {
			total++
		}
	}
	return total, nil
}
