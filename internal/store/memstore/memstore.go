// Package memstore keeps users and hackathons in process memory. It backs
// the "memory" database driver used for demos and handler tests; nothing
// survives a restart.
package memstore

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/htverse/apiserver/internal/store"
	"github.com/htverse/apiserver/types"
)

// Store holds both collections behind one lock.
type Store struct {
	mu         sync.RWMutex
	users      map[string]types.User
	hackathons map[string]types.Hackathon
	now        func() time.Time
}

func New() *Store {
	return &Store{
		users:      map[string]types.User{},
		hackathons: map[string]types.Hackathon{},
		now:        time.Now,
	}
}

// Users returns the user repository view of s.
func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }

// Hackathons returns the hackathon repository view of s.
func (s *Store) Hackathons() *HackathonRepository { return &HackathonRepository{s: s} }

func cloneUser(u types.User) types.User {
	u.Skills = slices.Clone(u.Skills)
	return u
}

func cloneHackathon(h types.Hackathon) types.Hackathon {
	h.Categories = slices.Clone(h.Categories)
	h.Participants = slices.Clone(h.Participants)
	h.Rules = slices.Clone(h.Rules)
	h.JudgesCriteria = slices.Clone(h.JudgesCriteria)
	return h
}

type UserRepository struct {
	s *Store
}

func (r *UserRepository) GetByID(_ context.Context, id string) (types.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	email = strings.ToLower(email)
	for _, u := range r.s.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *UserRepository) GetByIDs(_ context.Context, ids []string) ([]types.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	users := make([]types.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := r.s.users[id]; ok {
			users = append(users, cloneUser(u))
		}
	}
	return users, nil
}

func (r *UserRepository) List(_ context.Context, offset, limit int) ([]types.User, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	users := make([]types.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		users = append(users, cloneUser(u))
	}
	sort.SliceStable(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })
	return page(users, offset, limit), len(users), nil
}

func (r *UserRepository) Count(_ context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.users), nil
}

func (r *UserRepository) Create(_ context.Context, user types.User) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return types.User{}, store.ErrDuplicate
		}
	}
	now := r.s.now().UTC()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.s.users[user.ID] = cloneUser(user)
	return cloneUser(user), nil
}

func (r *UserRepository) Update(_ context.Context, user types.User) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.users[user.ID]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	for id, u := range r.s.users {
		if id != user.ID && u.Email == user.Email {
			return types.User{}, store.ErrDuplicate
		}
	}
	user.CreatedAt = current.CreatedAt
	user.UpdatedAt = r.s.now().UTC()
	r.s.users[user.ID] = cloneUser(user)
	return cloneUser(user), nil
}

type HackathonRepository struct {
	s *Store
}

func matches(h types.Hackathon, q store.HackathonQuery) bool {
	if q.Category != nil && !slices.Contains(h.Categories, *q.Category) {
		return false
	}
	if q.Status != nil && h.Status != *q.Status {
		return false
	}
	if q.IsActive != nil && h.IsActive != *q.IsActive {
		return false
	}
	return true
}

var hackathonLess = map[store.HackathonSort]func(a, b types.Hackathon) bool{
	store.SortNewest:   func(a, b types.Hackathon) bool { return a.CreatedAt.After(b.CreatedAt) },
	store.SortOldest:   func(a, b types.Hackathon) bool { return a.CreatedAt.Before(b.CreatedAt) },
	store.SortPrize:    func(a, b types.Hackathon) bool { return a.PrizePool > b.PrizePool },
	store.SortDeadline: func(a, b types.Hackathon) bool { return a.RegistrationDeadline.Before(b.RegistrationDeadline) },
}

func (r *HackathonRepository) List(_ context.Context, q store.HackathonQuery) ([]types.Hackathon, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	items := make([]types.Hackathon, 0)
	for _, h := range r.s.hackathons {
		if matches(h, q) {
			items = append(items, cloneHackathon(h))
		}
	}
	less, ok := hackathonLess[q.Sort]
	if !ok {
		less = hackathonLess[store.SortNewest]
	}
	sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })

	limit := q.Limit
	if limit < 1 {
		limit = 10
	}
	return page(items, q.Offset, limit), len(items), nil
}

func (r *HackathonRepository) Count(_ context.Context, q store.HackathonQuery) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n := 0
	for _, h := range r.s.hackathons {
		if matches(h, q) {
			n++
		}
	}
	return n, nil
}

func (r *HackathonRepository) Get(_ context.Context, id string) (types.Hackathon, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	h, ok := r.s.hackathons[id]
	if !ok {
		return types.Hackathon{}, store.ErrNotFound
	}
	return cloneHackathon(h), nil
}

func (r *HackathonRepository) Create(_ context.Context, h types.Hackathon) (types.Hackathon, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.now().UTC()
	h.ID = uuid.NewString()
	if h.Participants == nil {
		h.Participants = []string{}
	}
	h.CreatedAt = now
	h.UpdatedAt = now
	r.s.hackathons[h.ID] = cloneHackathon(h)
	return cloneHackathon(h), nil
}

// Update replaces the editable fields of h. Organizer, participants, banner
// and creation time are kept from the stored record.
func (r *HackathonRepository) Update(_ context.Context, h types.Hackathon, guard store.UpdateGuard) (types.Hackathon, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.hackathons[h.ID]
	if !ok {
		return types.Hackathon{}, store.ErrNotFound
	}
	if len(current.Participants) > h.MaxParticipants {
		return types.Hackathon{}, store.ErrConditionFailed
	}
	if !guard.SetStatus {
		h.Status = current.Status
	} else if h.Status != types.StatusCancelled && current.Status == types.StatusCancelled {
		return types.Hackathon{}, store.ErrConditionFailed
	}
	h.BannerImage = current.BannerImage
	h.Organizer = current.Organizer
	h.Participants = current.Participants
	h.CreatedAt = current.CreatedAt
	h.UpdatedAt = r.s.now().UTC()
	r.s.hackathons[h.ID] = cloneHackathon(h)
	return cloneHackathon(h), nil
}

func (r *HackathonRepository) SetStatus(_ context.Context, id string, status types.Status) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	h, ok := r.s.hackathons[id]
	if !ok {
		return store.ErrNotFound
	}
	if h.Status != types.StatusCancelled {
		h.Status = status
		r.s.hackathons[id] = h
	}
	return nil
}

func (r *HackathonRepository) SetBanner(_ context.Context, id, key string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	h, ok := r.s.hackathons[id]
	if !ok {
		return store.ErrNotFound
	}
	h.BannerImage = key
	h.UpdatedAt = r.s.now().UTC()
	r.s.hackathons[id] = h
	return nil
}

func (r *HackathonRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.hackathons[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.hackathons, id)
	return nil
}

func (r *HackathonRepository) AddParticipant(_ context.Context, id string, guard store.RegisterGuard) (types.Hackathon, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	h, ok := r.s.hackathons[id]
	if !ok {
		return types.Hackathon{}, store.ErrNotFound
	}
	if !h.IsActive || guard.Now.After(h.RegistrationDeadline) ||
		h.HasParticipant(guard.UserID) || len(h.Participants) >= h.MaxParticipants {
		return types.Hackathon{}, store.ErrConditionFailed
	}
	h = cloneHackathon(h)
	h.Participants = append(h.Participants, guard.UserID)
	h.UpdatedAt = r.s.now().UTC()
	r.s.hackathons[id] = h
	return cloneHackathon(h), nil
}

func (r *HackathonRepository) RemoveParticipant(_ context.Context, id string, guard store.UnregisterGuard) (types.Hackathon, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	h, ok := r.s.hackathons[id]
	if !ok {
		return types.Hackathon{}, store.ErrNotFound
	}
	if !h.HasParticipant(guard.UserID) || !guard.Now.Before(h.StartDate) {
		return types.Hackathon{}, store.ErrConditionFailed
	}
	h = cloneHackathon(h)
	h.Participants = slices.DeleteFunc(h.Participants, func(p string) bool { return p == guard.UserID })
	h.UpdatedAt = r.s.now().UTC()
	r.s.hackathons[id] = h
	return cloneHackathon(h), nil
}

func page[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
