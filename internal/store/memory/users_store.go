package memory

import (
	"context"
	"sync"

	"github.com/geocoder89/userhub/internal/domain/user"
	"github.com/geocoder89/userhub/internal/store"
)

// UsersStore keeps the whole directory in process memory behind one mutex.
// Every read-modify-write sequence (create, update, delete) runs under the
// lock, so the uniqueness check and the insert are a single atomic step.
type UsersStore struct {
	mu      sync.RWMutex
	byID    map[int64]user.User
	byEmail map[string]int64
	order   []int64 // insertion order for List
	nextID  int64
}

func New(seed store.SeedAdmin) *UsersStore {
	s := &UsersStore{
		byID:    make(map[int64]user.User),
		byEmail: make(map[string]int64),
		nextID:  1,
	}

	admin := user.User{
		ID:         s.nextID,
		Name:       seed.Name,
		Email:      seed.Email,
		Role:       user.RoleSuperAdmin,
		Credential: seed.Credential,
	}
	s.nextID++
	s.byID[admin.ID] = admin
	s.byEmail[admin.Email] = admin.ID
	s.order = append(s.order, admin.ID)

	return s
}

func (s *UsersStore) FindByEmail(_ context.Context, email string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]

	if !ok {
		return user.User{}, store.ErrNotFound
	}

	return s.byID[id], nil
}

func (s *UsersStore) FindByID(_ context.Context, id int64) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]

	if !ok {
		return user.User{}, store.ErrNotFound
	}

	return u, nil
}

func (s *UsersStore) List(_ context.Context) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]user.User, 0, len(s.order))

	for _, id := range s.order {
		out = append(out, s.byID[id])
	}

	return out, nil
}

func (s *UsersStore) Create(_ context.Context, params user.CreateUserParams) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[params.Email]; exists {
		return user.User{}, store.ErrDuplicateEmail
	}

	u := user.User{
		ID:         s.nextID,
		Name:       params.Name,
		Email:      params.Email,
		Role:       params.Role,
		Credential: params.Credential,
		Avatar:     params.Avatar,
	}
	s.nextID++

	s.byID[u.ID] = u
	s.byEmail[u.Email] = u.ID
	s.order = append(s.order, u.ID)

	return u, nil
}

func (s *UsersStore) Update(_ context.Context, id int64, patch user.UpdateUserParams) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]

	if !ok {
		return user.User{}, store.ErrNotFound
	}

	if patch.Email != nil && *patch.Email != u.Email {
		if _, taken := s.byEmail[*patch.Email]; taken {
			return user.User{}, store.ErrDuplicateEmail
		}
		delete(s.byEmail, u.Email)
		s.byEmail[*patch.Email] = id
	}

	patch.Apply(&u)
	s.byID[id] = u

	return u, nil
}

func (s *UsersStore) Delete(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]

	if !ok {
		return false, nil
	}

	delete(s.byID, id)
	delete(s.byEmail, u.Email)

	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	return true, nil
}

func (s *UsersStore) Ping(context.Context) error { return nil }

func (s *UsersStore) Close() error { return nil }
