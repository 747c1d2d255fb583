package storefakes

import (
	"sync"

	"github.com/internhub/go-portal-gate/session"
)

var _ session.Store = (*FakeStore)(nil)

// FakeStore is an in-memory session.Store for tests. Error fields, when set,
// are returned by the corresponding operation. Call counts are recorded so
// tests can assert on store interactions.
type FakeStore struct {
	lock sync.Mutex

	token string
	user  *session.User

	SaveErr  error
	LoadErr  error
	ClearErr error

	SaveCallCount  int
	LoadCallCount  int
	ClearCallCount int
}

func NewFakeStore() *FakeStore {
	return &FakeStore{}
}

// Seed places a session in the store without counting as a Save call.
func (fs *FakeStore) Seed(token string, user *session.User) {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.token = token
	fs.user = user
}

func (fs *FakeStore) Save(token string, user *session.User) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	fs.SaveCallCount++
	if fs.SaveErr != nil {
		return fs.SaveErr
	}
	fs.token = token
	if user != nil {
		u := *user
		fs.user = &u
	} else {
		fs.user = nil
	}
	return nil
}

func (fs *FakeStore) Load() (string, *session.User, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	fs.LoadCallCount++
	if fs.LoadErr != nil {
		return "", nil, fs.LoadErr
	}
	if fs.user == nil {
		return fs.token, nil, nil
	}
	u := *fs.user
	return fs.token, &u, nil
}

func (fs *FakeStore) Clear() error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	fs.ClearCallCount++
	if fs.ClearErr != nil {
		return fs.ClearErr
	}
	fs.token = ""
	fs.user = nil
	return nil
}
