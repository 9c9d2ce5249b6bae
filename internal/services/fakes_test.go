package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"slices"
	"sort"
	"sync"

	"github.com/htverse/apiserver/internal/mq"
	"github.com/htverse/apiserver/internal/storage"
	"github.com/htverse/apiserver/internal/store"
	"github.com/htverse/apiserver/types"
)

type fakeHackathonRepo struct {
	mu       sync.Mutex
	items    map[string]types.Hackathon
	seq      int
	statuses map[string]types.Status
	lastQ    store.HackathonQuery

	// beforeAdd runs inside AddParticipant before the guard is evaluated.
	beforeAdd func(h *types.Hackathon)

	// beforeUpdate runs once inside Update before the guard is evaluated.
	beforeUpdate func(h *types.Hackathon)
	updates      int
}

func newFakeHackathonRepo() *fakeHackathonRepo {
	return &fakeHackathonRepo{items: map[string]types.Hackathon{}, statuses: map[string]types.Status{}}
}

func clone(h types.Hackathon) types.Hackathon {
	h.Participants = slices.Clone(h.Participants)
	h.Categories = slices.Clone(h.Categories)
	h.Rules = slices.Clone(h.Rules)
	h.JudgesCriteria = slices.Clone(h.JudgesCriteria)
	return h
}

func (r *fakeHackathonRepo) put(h types.Hackathon) types.Hackathon {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h.ID == "" {
		r.seq++
		h.ID = fmt.Sprintf("h%d", r.seq)
	}
	if h.Participants == nil {
		h.Participants = []string{}
	}
	r.items[h.ID] = clone(h)
	return h
}

func (r *fakeHackathonRepo) matches(h types.Hackathon, q store.HackathonQuery) bool {
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

func (r *fakeHackathonRepo) List(_ context.Context, q store.HackathonQuery) ([]types.Hackathon, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastQ = q

	var out []types.Hackathon
	for _, h := range r.items {
		if r.matches(h, q) {
			out = append(out, clone(h))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		switch q.Sort {
		case store.SortOldest:
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		case store.SortPrize:
			return out[i].PrizePool > out[j].PrizePool
		case store.SortDeadline:
			return out[i].RegistrationDeadline.Before(out[j].RegistrationDeadline)
		default:
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
	})
	total := len(out)
	if q.Offset >= len(out) {
		return []types.Hackathon{}, total, nil
	}
	out = out[q.Offset:]
	if len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, total, nil
}

func (r *fakeHackathonRepo) Count(_ context.Context, q store.HackathonQuery) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, h := range r.items {
		if r.matches(h, q) {
			n++
		}
	}
	return n, nil
}

func (r *fakeHackathonRepo) Get(_ context.Context, id string) (types.Hackathon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.items[id]
	if !ok {
		return types.Hackathon{}, store.ErrNotFound
	}
	return clone(h), nil
}

func (r *fakeHackathonRepo) Create(_ context.Context, h types.Hackathon) (types.Hackathon, error) {
	return r.put(h), nil
}

func (r *fakeHackathonRepo) Update(_ context.Context, h types.Hackathon, guard store.UpdateGuard) (types.Hackathon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates++
	current, ok := r.items[h.ID]
	if !ok {
		return types.Hackathon{}, store.ErrNotFound
	}
	if r.beforeUpdate != nil {
		r.beforeUpdate(&current)
		r.beforeUpdate = nil
		r.items[h.ID] = clone(current)
	}
	if len(current.Participants) > h.MaxParticipants {
		return types.Hackathon{}, store.ErrConditionFailed
	}
	if !guard.SetStatus {
		h.Status = current.Status
	} else if h.Status != types.StatusCancelled && current.Status == types.StatusCancelled {
		return types.Hackathon{}, store.ErrConditionFailed
	}
	h.Participants = current.Participants
	h.Organizer = current.Organizer
	h.BannerImage = current.BannerImage
	r.items[h.ID] = clone(h)
	return clone(h), nil
}

func (r *fakeHackathonRepo) SetStatus(_ context.Context, id string, status types.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.items[id]
	if !ok {
		return store.ErrNotFound
	}
	if h.Status == types.StatusCancelled {
		return nil
	}
	h.Status = status
	r.items[id] = h
	r.statuses[id] = status
	return nil
}

func (r *fakeHackathonRepo) SetBanner(_ context.Context, id, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.items[id]
	if !ok {
		return store.ErrNotFound
	}
	h.BannerImage = key
	r.items[id] = h
	return nil
}

func (r *fakeHackathonRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *fakeHackathonRepo) AddParticipant(_ context.Context, id string, guard store.RegisterGuard) (types.Hackathon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.items[id]
	if !ok {
		return types.Hackathon{}, store.ErrConditionFailed
	}
	if r.beforeAdd != nil {
		r.beforeAdd(&h)
		r.beforeAdd = nil
		r.items[id] = clone(h)
	}
	if !h.IsActive || guard.Now.After(h.RegistrationDeadline) ||
		h.HasParticipant(guard.UserID) || len(h.Participants) >= h.MaxParticipants {
		return types.Hackathon{}, store.ErrConditionFailed
	}
	h.Participants = append(h.Participants, guard.UserID)
	r.items[id] = clone(h)
	return clone(h), nil
}

func (r *fakeHackathonRepo) RemoveParticipant(_ context.Context, id string, guard store.UnregisterGuard) (types.Hackathon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.items[id]
	if !ok || !h.HasParticipant(guard.UserID) || !guard.Now.Before(h.StartDate) {
		return types.Hackathon{}, store.ErrConditionFailed
	}
	h.Participants = slices.DeleteFunc(h.Participants, func(p string) bool { return p == guard.UserID })
	r.items[id] = clone(h)
	return clone(h), nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]types.User
	seq   int
}

func newFakeUserRepo(users ...types.User) *fakeUserRepo {
	r := &fakeUserRepo{users: map[string]types.User{}}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *fakeUserRepo) GetByIDs(_ context.Context, ids []string) ([]types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.User
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) List(_ context.Context, offset, limit int) ([]types.User, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.User
	for _, u := range r.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := len(out)
	if offset >= len(out) {
		return []types.User{}, total, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func (r *fakeUserRepo) Count(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users), nil
}

func (r *fakeUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return types.User{}, store.ErrDuplicate
		}
	}
	r.seq++
	user.ID = fmt.Sprintf("u%d", r.seq)
	r.users[user.ID] = user
	return user, nil
}

func (r *fakeUserRepo) Update(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	r.users[user.ID] = user
	return user, nil
}

type recordingEvents struct {
	mu     sync.Mutex
	events []mq.Event
}

func (e *recordingEvents) Publish(_ context.Context, event mq.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return nil
}

func (e *recordingEvents) kinds() []mq.EventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]mq.EventType, 0, len(e.events))
	for _, ev := range e.events {
		out = append(out, ev.Type)
	}
	return out
}

type memoryBanners struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemoryBanners() *memoryBanners {
	return &memoryBanners{objects: map[string][]byte{}}
}

func (m *memoryBanners) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memoryBanners) Get(_ context.Context, key string) (*storage.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return &storage.Object{ReadCloser: io.NopCloser(bytes.NewReader(data)), Size: int64(len(data))}, nil
}

func (m *memoryBanners) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}
