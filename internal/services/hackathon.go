package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/htverse/apiserver/internal/clock"
	apperrors "github.com/htverse/apiserver/internal/errors"
	"github.com/htverse/apiserver/internal/mq"
	"github.com/htverse/apiserver/internal/policy"
	"github.com/htverse/apiserver/internal/storage"
	"github.com/htverse/apiserver/internal/store"
	"github.com/htverse/apiserver/types"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100

	// MaxBannerBytes bounds banner uploads.
	MaxBannerBytes = 5 << 20

	guardedAttempts       = 3
	defaultRefreshTimeout = 5 * time.Second
)

var bannerExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// HackathonRepository defines persistence operations for hackathons.
type HackathonRepository interface {
	List(ctx context.Context, q store.HackathonQuery) ([]types.Hackathon, int, error)
	Count(ctx context.Context, q store.HackathonQuery) (int, error)
	Get(ctx context.Context, id string) (types.Hackathon, error)
	Create(ctx context.Context, h types.Hackathon) (types.Hackathon, error)
	Update(ctx context.Context, h types.Hackathon, guard store.UpdateGuard) (types.Hackathon, error)
	SetStatus(ctx context.Context, id string, status types.Status) error
	SetBanner(ctx context.Context, id, key string) error
	Delete(ctx context.Context, id string) error
	AddParticipant(ctx context.Context, id string, guard store.RegisterGuard) (types.Hackathon, error)
	RemoveParticipant(ctx context.Context, id string, guard store.UnregisterGuard) (types.Hackathon, error)
}

// UserLookup resolves user ids for populated hackathon payloads.
type UserLookup interface {
	GetByIDs(ctx context.Context, ids []string) ([]types.User, error)
}

// EventPublisher delivers hackathon domain events.
type EventPublisher interface {
	Publish(ctx context.Context, event mq.Event) error
}

// BannerStore holds banner image objects.
type BannerStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (*storage.Object, error)
	Delete(ctx context.Context, key string) error
}

// HackathonInput carries the fields of a new hackathon.
type HackathonInput struct {
	Title                string
	Description          string
	StartDate            time.Time
	EndDate              time.Time
	RegistrationDeadline time.Time
	MaxTeamSize          int
	PrizePool            float64
	Categories           []types.Category
	MaxParticipants      int
	IsActive             *bool
	Rules                []string
	JudgesCriteria       []types.JudgingCriterion
}

// HackathonPatch carries the fields of a partial update. Nil fields are left
// unchanged.
type HackathonPatch struct {
	Title                *string
	Description          *string
	StartDate            *time.Time
	EndDate              *time.Time
	RegistrationDeadline *time.Time
	MaxTeamSize          *int
	PrizePool            *float64
	Categories           *[]types.Category
	MaxParticipants      *int
	IsActive             *bool
	Rules                *[]string
	JudgesCriteria       *[]types.JudgingCriterion
	Status               *types.Status
}

// ListParams are the raw listing filters as received from a client.
type ListParams struct {
	Category string
	Status   string
	Sort     string
	Page     int
	Limit    int
}

// ListResult is one page of hackathons.
type ListResult struct {
	Items []types.HackathonDetail
	Total int
	Page  int
	Pages int
	Limit int
}

// RegistrationReceipt summarizes a successful registration.
type RegistrationReceipt struct {
	HackathonID          string    `json:"hackathonId"`
	HackathonTitle       string    `json:"hackathonTitle"`
	RegistrationCount    int       `json:"registrationCount"`
	SpotsRemaining       int       `json:"spotsRemaining"`
	RegistrationDeadline time.Time `json:"registrationDeadline"`
}

// UnregistrationReceipt summarizes a successful unregistration.
type UnregistrationReceipt struct {
	HackathonID           string `json:"hackathonId"`
	HackathonTitle        string `json:"hackathonTitle"`
	RemainingParticipants int    `json:"remainingParticipants"`
}

// HackathonOption configures a HackathonService.
type HackathonOption func(*HackathonService)

// WithClock sets the time source used for every status and deadline check.
func WithClock(c clock.Clock) HackathonOption {
	return func(s *HackathonService) { s.clock = c }
}

// WithUsers enables organizer and participant population.
func WithUsers(users UserLookup) HackathonOption {
	return func(s *HackathonService) { s.users = users }
}

// WithEvents publishes domain events after each change.
func WithEvents(events EventPublisher) HackathonOption {
	return func(s *HackathonService) { s.events = events }
}

// WithBanners enables banner uploads.
func WithBanners(banners BannerStore) HackathonOption {
	return func(s *HackathonService) { s.banners = banners }
}

// WithLogger sets the logger for best-effort background work.
func WithLogger(logger *slog.Logger) HackathonOption {
	return func(s *HackathonService) { s.logger = logger }
}

// HackathonService encapsulates hackathon use-cases.
type HackathonService struct {
	repo    HackathonRepository
	users   UserLookup
	events  EventPublisher
	banners BannerStore
	clock   clock.Clock
	logger  *slog.Logger

	refreshTimeout time.Duration
	background     sync.WaitGroup
}

func NewHackathonService(repo HackathonRepository, opts ...HackathonOption) *HackathonService {
	s := &HackathonService{
		repo:           repo,
		clock:          clock.Real{},
		logger:         slog.Default(),
		refreshTimeout: defaultRefreshTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BannersEnabled reports whether banner storage is configured.
func (s *HackathonService) BannersEnabled() bool {
	return s.banners != nil
}

// Wait blocks until background status refreshes have finished.
func (s *HackathonService) Wait() {
	s.background.Wait()
}

// Create validates and stores a new hackathon owned by actor.
func (s *HackathonService) Create(ctx context.Context, actor policy.Actor, in HackathonInput) (types.HackathonView, error) {
	if err := policy.Authorize(policy.OpCreate, actor, ""); err != nil {
		return types.HackathonView{}, err
	}

	now := s.clock.Now()
	if err := checkDatesPresent(in.StartDate, in.EndDate, in.RegistrationDeadline); err != nil {
		return types.HackathonView{}, err
	}
	if err := checkDateOrder(in.StartDate, in.EndDate, in.RegistrationDeadline); err != nil {
		return types.HackathonView{}, err
	}
	if !in.RegistrationDeadline.After(now) {
		return types.HackathonView{}, apperrors.New(apperrors.KindValidation, apperrors.CodeDeadlineInPast,
			"Registration deadline must be in the future")
	}

	h := types.Hackathon{
		Title:                strings.TrimSpace(in.Title),
		Description:          in.Description,
		StartDate:            in.StartDate,
		EndDate:              in.EndDate,
		RegistrationDeadline: in.RegistrationDeadline,
		MaxTeamSize:          in.MaxTeamSize,
		PrizePool:            in.PrizePool,
		Categories:           in.Categories,
		Organizer:            actor.ID,
		Participants:         []string{},
		MaxParticipants:      in.MaxParticipants,
		IsActive:             true,
		Rules:                cleanRules(in.Rules),
		JudgesCriteria:       in.JudgesCriteria,
		Status:               types.StatusUpcoming,
	}
	if h.MaxParticipants == 0 {
		h.MaxParticipants = types.DefaultMaxParticipants
	}
	if in.IsActive != nil {
		h.IsActive = *in.IsActive
	}
	if h.JudgesCriteria == nil {
		h.JudgesCriteria = []types.JudgingCriterion{}
	}
	if err := validateHackathon(h); err != nil {
		return types.HackathonView{}, err
	}

	created, err := s.repo.Create(ctx, h)
	if err != nil {
		return types.HackathonView{}, apperrors.Internal("Error creating hackathon", err)
	}

	s.publish(ctx, mq.Event{
		Type:        mq.EventHackathonCreated,
		HackathonID: created.ID,
		ActorID:     actor.ID,
		Data:        map[string]any{"title": created.Title},
	})
	return created.View(now), nil
}

// List returns one page of hackathons matching params. Without a status
// filter only active hackathons are listed.
func (s *HackathonService) List(ctx context.Context, params ListParams) (ListResult, error) {
	q := store.HackathonQuery{Sort: store.SortNewest}

	if strings.TrimSpace(params.Category) != "" {
		category, err := ResolveCategory(params.Category)
		if err != nil {
			return ListResult{}, err
		}
		q.Category = &category
	}
	if raw := strings.TrimSpace(params.Status); raw != "" {
		status := types.Status(strings.ToLower(raw))
		if !status.Valid() {
			return ListResult{}, apperrors.Validationf("Unknown status %q", raw)
		}
		q.Status = &status
	} else {
		active := true
		q.IsActive = &active
	}
	if raw := strings.TrimSpace(params.Sort); raw != "" {
		sort := store.HackathonSort(strings.ToLower(raw))
		if !sort.Valid() {
			return ListResult{}, apperrors.Validationf("Unknown sort %q", raw)
		}
		q.Sort = sort
	}

	page, limit := normalizePage(params.Page, params.Limit)
	if page > math.MaxInt/limit {
		return ListResult{}, apperrors.Validationf("Page %d is out of range", page)
	}
	q.Offset = (page - 1) * limit
	q.Limit = limit

	items, total, err := s.repo.List(ctx, q)
	if err != nil {
		return ListResult{}, apperrors.Internal("Error fetching hackathons", err)
	}

	now := s.clock.Now()
	s.refreshStatuses(ctx, items, now)

	details, err := s.populate(ctx, items, now, false)
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{
		Items: details,
		Total: total,
		Page:  page,
		Pages: int(math.Ceil(float64(total) / float64(limit))),
		Limit: limit,
	}, nil
}

// Get returns one hackathon with organizer and participants populated.
func (s *HackathonService) Get(ctx context.Context, id string) (types.HackathonDetail, error) {
	h, err := s.load(ctx, id)
	if err != nil {
		return types.HackathonDetail{}, err
	}

	now := s.clock.Now()
	items := []types.Hackathon{h}
	s.refreshStatuses(ctx, items, now)

	details, err := s.populate(ctx, items, now, true)
	if err != nil {
		return types.HackathonDetail{}, err
	}
	return details[0], nil
}

// Update merges patch into the hackathon. Only the organizer or an admin may
// update, and a cancelled hackathon cannot be un-cancelled.
func (s *HackathonService) Update(ctx context.Context, actor policy.Actor, id string, patch HackathonPatch) (types.HackathonDetail, error) {
	for attempt := 0; attempt < guardedAttempts; attempt++ {
		current, err := s.load(ctx, id)
		if err != nil {
			return types.HackathonDetail{}, err
		}
		if err := policy.Authorize(policy.OpUpdate, actor, current.Organizer); err != nil {
			return types.HackathonDetail{}, err
		}

		merged, err := applyPatch(current, patch)
		if err != nil {
			return types.HackathonDetail{}, err
		}
		if err := checkDateOrder(merged.StartDate, merged.EndDate, merged.RegistrationDeadline); err != nil {
			return types.HackathonDetail{}, err
		}
		if err := validateHackathon(merged); err != nil {
			return types.HackathonDetail{}, err
		}
		if merged.MaxParticipants < current.RegistrationCount() {
			return types.HackathonDetail{}, apperrors.Validationf(
				"Max participants cannot be lower than the %d already registered", current.RegistrationCount()).
				WithMetadata("currentParticipants", fmt.Sprint(current.RegistrationCount()))
		}

		updated, err := s.repo.Update(ctx, merged, store.UpdateGuard{SetStatus: patch.Status != nil})
		if errors.Is(err, store.ErrConditionFailed) {
			// Registrations or status moved since the read; re-check against the new state.
			continue
		}
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return types.HackathonDetail{}, apperrors.NotFound("Hackathon")
			}
			return types.HackathonDetail{}, apperrors.Internal("Error updating hackathon", err)
		}

		s.publish(ctx, mq.Event{
			Type:        mq.EventHackathonUpdated,
			HackathonID: updated.ID,
			ActorID:     actor.ID,
			Data:        map[string]any{"status": string(updated.Status)},
		})

		now := s.clock.Now()
		updated.Status = DeriveStatus(updated, now)
		details, err := s.populate(ctx, []types.Hackathon{updated}, now, false)
		if err != nil {
			return types.HackathonDetail{}, err
		}
		return details[0], nil
	}
	return types.HackathonDetail{}, apperrors.Internal("Error updating hackathon",
		errors.New("update kept conflicting with concurrent changes"))
}

// Delete removes a hackathon. Only the organizer or an admin may delete.
func (s *HackathonService) Delete(ctx context.Context, actor policy.Actor, id string) error {
	h, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := policy.Authorize(policy.OpDelete, actor, h.Organizer); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperrors.NotFound("Hackathon")
		}
		return apperrors.Internal("Error deleting hackathon", err)
	}

	if h.BannerImage != "" {
		s.removeBanner(ctx, h.BannerImage)
	}
	s.publish(ctx, mq.Event{
		Type:        mq.EventHackathonDeleted,
		HackathonID: h.ID,
		ActorID:     actor.ID,
	})
	return nil
}

// Register adds actor to the participants of hackathon id.
func (s *HackathonService) Register(ctx context.Context, actor policy.Actor, id string) (RegistrationReceipt, error) {
	if err := policy.Authorize(policy.OpRegister, actor, ""); err != nil {
		return RegistrationReceipt{}, err
	}

	for attempt := 0; attempt < guardedAttempts; attempt++ {
		h, err := s.load(ctx, id)
		if err != nil {
			return RegistrationReceipt{}, err
		}
		now := s.clock.Now()
		if err := checkRegistration(h, actor.ID, now); err != nil {
			return RegistrationReceipt{}, err
		}

		updated, err := s.repo.AddParticipant(ctx, id, store.RegisterGuard{UserID: actor.ID, Now: now})
		if errors.Is(err, store.ErrConditionFailed) {
			// Lost a race; re-read and report the precise reason.
			continue
		}
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return RegistrationReceipt{}, apperrors.NotFound("Hackathon")
			}
			return RegistrationReceipt{}, apperrors.Internal("Error registering for hackathon", err)
		}

		receipt := RegistrationReceipt{
			HackathonID:          updated.ID,
			HackathonTitle:       updated.Title,
			RegistrationCount:    updated.RegistrationCount(),
			SpotsRemaining:       updated.SpotsRemaining(),
			RegistrationDeadline: updated.RegistrationDeadline,
		}
		s.publish(ctx, mq.Event{
			Type:        mq.EventHackathonRegistered,
			HackathonID: updated.ID,
			ActorID:     actor.ID,
			Data: map[string]any{
				"registrationCount": receipt.RegistrationCount,
				"spotsRemaining":    receipt.SpotsRemaining,
			},
		})
		return receipt, nil
	}
	return RegistrationReceipt{}, apperrors.Internal("Error registering for hackathon",
		errors.New("registration kept conflicting with concurrent updates"))
}

// Unregister removes actor from the participants of hackathon id.
func (s *HackathonService) Unregister(ctx context.Context, actor policy.Actor, id string) (UnregistrationReceipt, error) {
	if err := policy.Authorize(policy.OpUnregister, actor, ""); err != nil {
		return UnregistrationReceipt{}, err
	}

	for attempt := 0; attempt < guardedAttempts; attempt++ {
		h, err := s.load(ctx, id)
		if err != nil {
			return UnregistrationReceipt{}, err
		}
		now := s.clock.Now()
		if err := checkUnregistration(h, actor.ID, now); err != nil {
			return UnregistrationReceipt{}, err
		}

		updated, err := s.repo.RemoveParticipant(ctx, id, store.UnregisterGuard{UserID: actor.ID, Now: now})
		if errors.Is(err, store.ErrConditionFailed) {
			continue
		}
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return UnregistrationReceipt{}, apperrors.NotFound("Hackathon")
			}
			return UnregistrationReceipt{}, apperrors.Internal("Error unregistering from hackathon", err)
		}

		receipt := UnregistrationReceipt{
			HackathonID:           updated.ID,
			HackathonTitle:        updated.Title,
			RemainingParticipants: updated.RegistrationCount(),
		}
		s.publish(ctx, mq.Event{
			Type:        mq.EventHackathonUnregistered,
			HackathonID: updated.ID,
			ActorID:     actor.ID,
			Data:        map[string]any{"remainingParticipants": receipt.RemainingParticipants},
		})
		return receipt, nil
	}
	return UnregistrationReceipt{}, apperrors.Internal("Error unregistering from hackathon",
		errors.New("unregistration kept conflicting with concurrent updates"))
}

// UploadBanner stores data as the banner image of hackathon id and replaces
// any previous banner.
func (s *HackathonService) UploadBanner(ctx context.Context, actor policy.Actor, id string, data []byte) (types.HackathonView, error) {
	if s.banners == nil {
		return types.HackathonView{}, apperrors.Internal("Banner storage is not configured", nil)
	}
	h, err := s.load(ctx, id)
	if err != nil {
		return types.HackathonView{}, err
	}
	if err := policy.Authorize(policy.OpUpdate, actor, h.Organizer); err != nil {
		return types.HackathonView{}, err
	}

	if len(data) == 0 {
		return types.HackathonView{}, apperrors.Validation("Banner image is required")
	}
	if len(data) > MaxBannerBytes {
		return types.HackathonView{}, apperrors.Validationf("Banner image cannot exceed %d MB", MaxBannerBytes>>20)
	}
	contentType := http.DetectContentType(data)
	ext, ok := bannerExtensions[contentType]
	if !ok {
		return types.HackathonView{}, apperrors.Validation("Banner must be a PNG, JPEG, GIF or WebP image").
			WithMetadata("contentType", contentType)
	}

	key := fmt.Sprintf("hackathons/%s/banner-%s%s", h.ID, uuid.NewString(), ext)
	if err := s.banners.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return types.HackathonView{}, apperrors.Internal("Error uploading banner", err)
	}
	if err := s.repo.SetBanner(ctx, h.ID, key); err != nil {
		s.removeBanner(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			return types.HackathonView{}, apperrors.NotFound("Hackathon")
		}
		return types.HackathonView{}, apperrors.Internal("Error saving banner", err)
	}
	if h.BannerImage != "" && h.BannerImage != key {
		s.removeBanner(ctx, h.BannerImage)
	}

	s.publish(ctx, mq.Event{
		Type:        mq.EventHackathonUpdated,
		HackathonID: h.ID,
		ActorID:     actor.ID,
		Data:        map[string]any{"bannerImage": key},
	})

	h.BannerImage = key
	now := s.clock.Now()
	h.Status = DeriveStatus(h, now)
	return h.View(now), nil
}

// OpenBanner opens the banner image of hackathon id. The caller closes it.
func (s *HackathonService) OpenBanner(ctx context.Context, id string) (*storage.Object, error) {
	if s.banners == nil {
		return nil, apperrors.NotFound("Banner")
	}
	h, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if h.BannerImage == "" {
		return nil, apperrors.NotFound("Banner")
	}
	obj, err := s.banners.Get(ctx, h.BannerImage)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, apperrors.NotFound("Banner")
		}
		return nil, apperrors.Internal("Error fetching banner", err)
	}
	return obj, nil
}

func (s *HackathonService) load(ctx context.Context, id string) (types.Hackathon, error) {
	if strings.TrimSpace(id) == "" {
		return types.Hackathon{}, apperrors.NotFound("Hackathon")
	}
	h, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Hackathon{}, apperrors.NotFound("Hackathon")
		}
		return types.Hackathon{}, apperrors.Internal("Error fetching hackathon", err)
	}
	return h, nil
}

// refreshStatuses rewrites items with their derived status and persists the
// changed ones in the background. Failures are only logged.
func (s *HackathonService) refreshStatuses(ctx context.Context, items []types.Hackathon, now time.Time) {
	stale := map[string]types.Status{}
	for i := range items {
		derived := DeriveStatus(items[i], now)
		if derived != items[i].Status {
			stale[items[i].ID] = derived
			items[i].Status = derived
		}
	}
	if len(stale) == 0 {
		return
	}

	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.refreshTimeout)
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		defer cancel()
		for id, status := range stale {
			if err := s.repo.SetStatus(bg, id, status); err != nil {
				s.logger.Warn("refresh hackathon status", "hackathon_id", id, "status", status, "error", err)
			}
		}
	}()
}

func (s *HackathonService) populate(ctx context.Context, items []types.Hackathon, now time.Time, withSkills bool) ([]types.HackathonDetail, error) {
	byID := map[string]types.UserSummary{}
	if s.users != nil {
		ids := make([]string, 0, len(items))
		seen := map[string]bool{}
		for _, h := range items {
			for _, id := range append([]string{h.Organizer}, h.Participants...) {
				if id != "" && !seen[id] {
					seen[id] = true
					ids = append(ids, id)
				}
			}
		}
		if len(ids) > 0 {
			users, err := s.users.GetByIDs(ctx, ids)
			if err != nil {
				return nil, apperrors.Internal("Error fetching hackathon users", err)
			}
			for _, u := range users {
				summary := u.Summary()
				if !withSkills {
					summary.Skills = nil
				}
				byID[u.ID] = summary
			}
		}
	}

	summary := func(id string) types.UserSummary {
		if u, ok := byID[id]; ok {
			return u
		}
		return types.UserSummary{ID: id}
	}

	details := make([]types.HackathonDetail, 0, len(items))
	for _, h := range items {
		organizer := summary(h.Organizer)
		participants := make([]types.UserSummary, 0, len(h.Participants))
		for _, id := range h.Participants {
			participants = append(participants, summary(id))
		}
		details = append(details, types.HackathonDetail{
			HackathonView: h.View(now),
			Organizer:     &organizer,
			Participants:  participants,
		})
	}
	return details, nil
}

func (s *HackathonService) publish(ctx context.Context, event mq.Event) {
	if s.events == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.clock.Now().UTC()
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("publish hackathon event", "type", event.Type, "hackathon_id", event.HackathonID, "error", err)
	}
}

func (s *HackathonService) removeBanner(ctx context.Context, key string) {
	if s.banners == nil {
		return
	}
	if err := s.banners.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		s.logger.Warn("delete banner", "key", key, "error", err)
	}
}

func checkRegistration(h types.Hackathon, userID string, now time.Time) error {
	if h.RegistrationCount() >= h.MaxParticipants {
		return apperrors.New(apperrors.KindConflict, apperrors.CodeCapacityExceeded,
			"Hackathon is full. Registration capacity exceeded.").
			WithMetadata(
				"currentParticipants", fmt.Sprint(h.RegistrationCount()),
				"maxParticipants", fmt.Sprint(h.MaxParticipants),
			)
	}
	if now.After(h.RegistrationDeadline) {
		return apperrors.New(apperrors.KindConflict, apperrors.CodeDeadlinePassed,
			"Registration deadline has passed").
			WithMetadata(
				"deadline", h.RegistrationDeadline.UTC().Format(time.RFC3339),
				"currentTime", now.UTC().Format(time.RFC3339),
			)
	}
	if !h.IsActive {
		return apperrors.New(apperrors.KindConflict, apperrors.CodeInactive, "This hackathon is not active")
	}
	if h.HasParticipant(userID) {
		return apperrors.New(apperrors.KindConflict, apperrors.CodeAlreadyRegistered,
			"You are already registered for this hackathon")
	}
	return nil
}

func checkUnregistration(h types.Hackathon, userID string, now time.Time) error {
	if !h.HasParticipant(userID) {
		return apperrors.New(apperrors.KindConflict, apperrors.CodeNotRegistered,
			"You are not registered for this hackathon")
	}
	if !now.Before(h.StartDate) {
		return apperrors.New(apperrors.KindConflict, apperrors.CodeAlreadyStarted,
			"Cannot unregister after hackathon has started").
			WithMetadata(
				"hackathonStarted", h.StartDate.UTC().Format(time.RFC3339),
				"currentTime", now.UTC().Format(time.RFC3339),
			)
	}
	return nil
}

func checkDatesPresent(start, end, deadline time.Time) error {
	switch {
	case start.IsZero():
		return apperrors.Validation("Please provide start date")
	case end.IsZero():
		return apperrors.Validation("Please provide end date")
	case deadline.IsZero():
		return apperrors.Validation("Please provide registration deadline")
	}
	return nil
}

func checkDateOrder(start, end, deadline time.Time) error {
	if !start.Before(end) {
		return apperrors.New(apperrors.KindValidation, apperrors.CodeInvalidDateRange,
			"End date must be after start date")
	}
	if !deadline.Before(start) {
		return apperrors.New(apperrors.KindValidation, apperrors.CodeInvalidDeadlineOrdering,
			"Registration deadline must be before start date")
	}
	return nil
}

func validateHackathon(h types.Hackathon) error {
	return checkStruct(h, hackathonMessages)
}

func applyPatch(h types.Hackathon, p HackathonPatch) (types.Hackathon, error) {
	if p.Title != nil {
		h.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		h.Description = *p.Description
	}
	if p.StartDate != nil {
		h.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		h.EndDate = *p.EndDate
	}
	if p.RegistrationDeadline != nil {
		h.RegistrationDeadline = *p.RegistrationDeadline
	}
	if p.MaxTeamSize != nil {
		h.MaxTeamSize = *p.MaxTeamSize
	}
	if p.PrizePool != nil {
		h.PrizePool = *p.PrizePool
	}
	if p.Categories != nil {
		h.Categories = *p.Categories
	}
	if p.MaxParticipants != nil {
		h.MaxParticipants = *p.MaxParticipants
	}
	if p.IsActive != nil {
		h.IsActive = *p.IsActive
	}
	if p.Rules != nil {
		h.Rules = cleanRules(*p.Rules)
	}
	if p.JudgesCriteria != nil {
		h.JudgesCriteria = *p.JudgesCriteria
	}
	if p.Status != nil {
		status := *p.Status
		if !status.Valid() {
			return types.Hackathon{}, apperrors.Validationf("Unknown status %q", status)
		}
		if h.Status == types.StatusCancelled && status != types.StatusCancelled {
			return types.Hackathon{}, apperrors.New(apperrors.KindConflict, apperrors.CodeStatusLocked,
				"A cancelled hackathon cannot be reopened")
		}
		h.Status = status
	}
	return h, nil
}

func cleanRules(rules []string) []string {
	out := make([]string, 0, len(rules))
	for _, r := range rules {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = defaultPage
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}
