package fakeuserrepo

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-grant-server/users"
)

var _ users.UserRepo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	byEmail map[string]*users.User
	lock    sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		byEmail: make(map[string]*users.User),
	}
}

func (r *FakeUserRepo) Upsert(user *users.User) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	r.byEmail[user.Email] = user
	return nil
}

func (r *FakeUserRepo) Delete(email string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.byEmail, email)
	return nil
}

func (r *FakeUserRepo) GetByEmail(email string) (*users.User, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	user, ok := r.byEmail[email]
	if !ok {
		return nil, users.ErrUserNotFound
	}
	return user, nil
}

func (r *FakeUserRepo) GetByUsername(username string) (*users.User, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	for _, user := range r.byEmail {
		if user.Username == username {
			return user, nil
		}
	}
	return nil, users.ErrUserNotFound
}

func (r *FakeUserRepo) GetByID(id string) (*users.User, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	for _, user := range r.byEmail {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, users.ErrUserNotFound
}

func (r *FakeUserRepo) List(offset, limit int) ([]*users.User, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	emails := make([]string, 0, len(r.byEmail))
	for email := range r.byEmail {
		emails = append(emails, email)
	}
	sort.Strings(emails)

	result := make([]*users.User, 0, limit)
	for i := offset; i < len(emails) && len(result) < limit; i++ {
		result = append(result, r.byEmail[emails[i]])
	}
	return result, nil
}

func (r *FakeUserRepo) SetBlocked(email string, blocked bool) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	user, ok := r.byEmail[email]
	if !ok {
		return users.ErrUserNotFound
	}
	user.Blocked = blocked
	return nil
}

func (r *FakeUserRepo) SetVerified(email string, verified bool) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	user, ok := r.byEmail[email]
	if !ok {
		return users.ErrUserNotFound
	}
	user.Verified = verified
	return nil
}
