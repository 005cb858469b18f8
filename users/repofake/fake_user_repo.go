package fakeuserrepo

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/hosilim/dashboard-session/users"
)

var _ users.UserRepo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	users    map[string]*users.Profile
	phoneIds map[string]string // phone to user id
	lock     sync.RWMutex
}

func NewFakeUserRepo() users.UserRepo {
	return &FakeUserRepo{
		users:    make(map[string]*users.Profile),
		phoneIds: make(map[string]string),
	}
}

func (ur *FakeUserRepo) Upsert(user *users.Profile) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	ur.users[user.ID] = copyProfile(user)
	ur.phoneIds[user.Phone] = user.ID
	return nil
}

func (ur *FakeUserRepo) Delete(phone string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	userID, ok := ur.phoneIds[phone]
	if !ok {
		return errors.New("not found")
	}
	delete(ur.phoneIds, phone)
	delete(ur.users, userID)
	return nil
}

func (ur *FakeUserRepo) GetByPhone(phone string) (*users.Profile, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.phoneIds[phone]
	if !ok {
		return nil, errors.New("not found")
	}
	return copyProfile(ur.users[id]), nil
}

func (ur *FakeUserRepo) GetByID(id string) (*users.Profile, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	u, ok := ur.users[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return copyProfile(u), nil
}

func (ur *FakeUserRepo) SetStatus(phone string, status users.Status) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	id, ok := ur.phoneIds[phone]
	if !ok {
		return errors.New("not found")
	}
	ur.users[id].Status = status
	return nil
}

func copyProfile(p *users.Profile) *users.Profile {
	c := *p
	c.Roles = append(users.Roles(nil), p.Roles...)
	return &c
}
