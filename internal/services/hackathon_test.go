package services

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/htverse/apiserver/internal/clock"
	apperrors "github.com/htverse/apiserver/internal/errors"
	"github.com/htverse/apiserver/internal/mq"
	"github.com/htverse/apiserver/internal/policy"
	"github.com/htverse/apiserver/types"
)

var (
	baseNow   = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	admin     = policy.Actor{ID: "admin", Role: types.RoleAdmin}
	organizer = policy.Actor{ID: "org", Role: types.RoleOrganizer}
	student   = policy.Actor{ID: "stu", Role: types.RoleParticipant}
)

type fixture struct {
	repo    *fakeHackathonRepo
	users   *fakeUserRepo
	events  *recordingEvents
	banners *memoryBanners
	clock   *clock.Fixed
	svc     *HackathonService
}

func newFixture() *fixture {
	f := &fixture{
		repo: newFakeHackathonRepo(),
		users: newFakeUserRepo(
			types.User{ID: "org", Name: "Olu", Email: "olu@example.com", College: "MIT", Skills: []string{"Go"}},
			types.User{ID: "stu", Name: "Sam", Email: "sam@example.com", College: "CMU", Skills: []string{"Rust"}},
		),
		events:  &recordingEvents{},
		banners: newMemoryBanners(),
		clock:   clock.NewFixed(baseNow),
	}
	f.svc = NewHackathonService(f.repo,
		WithClock(f.clock),
		WithUsers(f.users),
		WithEvents(f.events),
		WithBanners(f.banners),
	)
	return f
}

func validInput() HackathonInput {
	return HackathonInput{
		Title:                "Autumn Hack",
		Description:          "Build something",
		StartDate:            baseNow.Add(10 * 24 * time.Hour),
		EndDate:              baseNow.Add(12 * 24 * time.Hour),
		RegistrationDeadline: baseNow.Add(5 * 24 * time.Hour),
		MaxTeamSize:          4,
		PrizePool:            1000,
		Categories:           []types.Category{types.CategoryWeb},
	}
}

// seed stores a hackathon directly, bypassing creation rules.
func (f *fixture) seed(mutate func(h *types.Hackathon)) types.Hackathon {
	in := validInput()
	h := types.Hackathon{
		Title:                in.Title,
		Description:          in.Description,
		StartDate:            in.StartDate,
		EndDate:              in.EndDate,
		RegistrationDeadline: in.RegistrationDeadline,
		MaxTeamSize:          in.MaxTeamSize,
		Categories:           in.Categories,
		Organizer:            organizer.ID,
		MaxParticipants:      100,
		IsActive:             true,
		Status:               types.StatusUpcoming,
		CreatedAt:            baseNow,
	}
	if mutate != nil {
		mutate(&h)
	}
	return f.repo.put(h)
}

func TestDeriveStatus(t *testing.T) {
	h := types.Hackathon{
		StartDate: baseNow,
		EndDate:   baseNow.Add(time.Hour),
		Status:    types.StatusUpcoming,
	}

	assert.Equal(t, types.StatusUpcoming, DeriveStatus(h, baseNow.Add(-time.Second)))
	assert.Equal(t, types.StatusOngoing, DeriveStatus(h, baseNow))
	assert.Equal(t, types.StatusOngoing, DeriveStatus(h, baseNow.Add(time.Hour)))
	assert.Equal(t, types.StatusCompleted, DeriveStatus(h, baseNow.Add(time.Hour+time.Second)))

	h.Status = types.StatusCancelled
	assert.Equal(t, types.StatusCancelled, DeriveStatus(h, baseNow.Add(-time.Hour)))
	assert.Equal(t, types.StatusCancelled, DeriveStatus(h, baseNow.Add(2*time.Hour)))
}

func TestCreate(t *testing.T) {
	f := newFixture()

	view, err := f.svc.Create(context.Background(), organizer, validInput())
	require.NoError(t, err)

	assert.NotEmpty(t, view.ID)
	assert.Equal(t, organizer.ID, view.Organizer)
	assert.Equal(t, types.StatusUpcoming, view.Status)
	assert.Equal(t, types.DefaultMaxParticipants, view.MaxParticipants)
	assert.True(t, view.IsActive)
	assert.Empty(t, view.Participants)
	assert.Equal(t, 0, view.RegistrationCount)
	assert.Equal(t, 100, view.SpotsRemaining)
	assert.True(t, view.IsRegistrationOpen)
	assert.Equal(t, []mq.EventType{mq.EventHackathonCreated}, f.events.kinds())
}

func TestCreateRequiresOrganizerOrAdmin(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Create(context.Background(), student, validInput())
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))

	_, err = f.svc.Create(context.Background(), policy.Actor{}, validInput())
	assert.Equal(t, apperrors.KindUnauthorized, apperrors.KindOf(err))

	_, err = f.svc.Create(context.Background(), admin, validInput())
	assert.NoError(t, err)
}

func TestCreateDateRules(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(in *HackathonInput)
		code   apperrors.Code
	}{
		{
			name:   "end before start",
			mutate: func(in *HackathonInput) { in.EndDate = in.StartDate.Add(-time.Hour) },
			code:   apperrors.CodeInvalidDateRange,
		},
		{
			name:   "end equals start",
			mutate: func(in *HackathonInput) { in.EndDate = in.StartDate },
			code:   apperrors.CodeInvalidDateRange,
		},
		{
			name:   "deadline at start",
			mutate: func(in *HackathonInput) { in.RegistrationDeadline = in.StartDate },
			code:   apperrors.CodeInvalidDeadlineOrdering,
		},
		{
			name:   "deadline in past",
			mutate: func(in *HackathonInput) { in.RegistrationDeadline = baseNow.Add(-time.Minute) },
			code:   apperrors.CodeDeadlineInPast,
		},
		{
			name:   "deadline now",
			mutate: func(in *HackathonInput) { in.RegistrationDeadline = baseNow },
			code:   apperrors.CodeDeadlineInPast,
		},
		{
			name: "range checked before ordering",
			mutate: func(in *HackathonInput) {
				in.EndDate = in.StartDate.Add(-time.Hour)
				in.RegistrationDeadline = in.StartDate.Add(time.Hour)
			},
			code: apperrors.CodeInvalidDateRange,
		},
		{
			name: "ordering checked before past deadline",
			mutate: func(in *HackathonInput) {
				in.StartDate = baseNow.Add(-2 * time.Hour)
				in.EndDate = baseNow.Add(time.Hour)
				in.RegistrationDeadline = in.StartDate
			},
			code: apperrors.CodeInvalidDeadlineOrdering,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			in := validInput()
			tc.mutate(&in)

			_, err := f.svc.Create(context.Background(), organizer, in)
			require.Error(t, err)
			assert.Equal(t, tc.code, apperrors.CodeOf(err))
			assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
			assert.Empty(t, f.repo.items)
			assert.Empty(t, f.events.kinds())
		})
	}
}

func TestCreateSchemaValidation(t *testing.T) {
	cases := map[string]func(in *HackathonInput){
		"missing title":       func(in *HackathonInput) { in.Title = "  " },
		"long title":          func(in *HackathonInput) { in.Title = string(make([]rune, 101)) },
		"missing description": func(in *HackathonInput) { in.Description = "" },
		"team too small":      func(in *HackathonInput) { in.MaxTeamSize = 0 },
		"team too large":      func(in *HackathonInput) { in.MaxTeamSize = 11 },
		"negative prize":      func(in *HackathonInput) { in.PrizePool = -1 },
		"no categories":       func(in *HackathonInput) { in.Categories = nil },
		"unknown category":    func(in *HackathonInput) { in.Categories = []types.Category{"Knitting"} },
		"negative capacity":   func(in *HackathonInput) { in.MaxParticipants = -5 },
		"bad weightage": func(in *HackathonInput) {
			in.JudgesCriteria = []types.JudgingCriterion{{Criterion: "Impact", Weightage: 120}}
		},
		"unnamed criterion": func(in *HackathonInput) {
			in.JudgesCriteria = []types.JudgingCriterion{{Weightage: 10}}
		},
		"missing start": func(in *HackathonInput) { in.StartDate = time.Time{} },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			in := validInput()
			mutate(&in)

			_, err := f.svc.Create(context.Background(), organizer, in)
			require.Error(t, err)
			assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
			assert.Empty(t, f.repo.items)
		})
	}
}

func TestCreateHonorsIsActiveAndCapacity(t *testing.T) {
	f := newFixture()
	in := validInput()
	inactive := false
	in.IsActive = &inactive
	in.MaxParticipants = 3

	view, err := f.svc.Create(context.Background(), organizer, in)
	require.NoError(t, err)
	assert.False(t, view.IsActive)
	assert.Equal(t, 3, view.MaxParticipants)
}

func TestCreatedDatesAlwaysOrdered(t *testing.T) {
	f := newFixture()
	offsets := []time.Duration{-48, -1, 0, 1, 24, 72, 200}

	for _, s := range offsets {
		for _, e := range offsets {
			for _, d := range offsets {
				in := validInput()
				in.StartDate = baseNow.Add(s * time.Hour)
				in.EndDate = baseNow.Add(e * time.Hour)
				in.RegistrationDeadline = baseNow.Add(d * time.Hour)

				view, err := f.svc.Create(context.Background(), organizer, in)
				if err != nil {
					continue
				}
				assert.True(t, view.StartDate.Before(view.EndDate))
				assert.True(t, view.RegistrationDeadline.Before(view.StartDate))
				assert.True(t, view.RegistrationDeadline.After(baseNow))
			}
		}
	}
}

func TestListDefaultsToActive(t *testing.T) {
	f := newFixture()
	f.seed(nil)
	f.seed(func(h *types.Hackathon) { h.IsActive = false })

	res, err := f.svc.List(context.Background(), ListParams{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	require.NotNil(t, f.repo.lastQ.IsActive)
	assert.True(t, *f.repo.lastQ.IsActive)
	assert.Nil(t, f.repo.lastQ.Status)

	res, err = f.svc.List(context.Background(), ListParams{Status: "upcoming"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.Nil(t, f.repo.lastQ.IsActive)
}

func TestListPagination(t *testing.T) {
	f := newFixture()
	for i := 0; i < 25; i++ {
		offset := time.Duration(i) * time.Minute
		f.seed(func(h *types.Hackathon) { h.CreatedAt = baseNow.Add(offset) })
	}

	res, err := f.svc.List(context.Background(), ListParams{Page: 3, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 25, res.Total)
	assert.Equal(t, 3, res.Page)
	assert.Equal(t, 3, res.Pages)
	assert.Len(t, res.Items, 5)
	assert.Equal(t, 20, f.repo.lastQ.Offset)

	_, err = f.svc.List(context.Background(), ListParams{Page: math.MaxInt, Limit: 10})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	res, err = f.svc.List(context.Background(), ListParams{Page: math.MaxInt / 10, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.GreaterOrEqual(t, f.repo.lastQ.Offset, 0)

	res, err = f.svc.List(context.Background(), ListParams{Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, 100, res.Limit)
	assert.Equal(t, 1, res.Page)

	res, err = f.svc.List(context.Background(), ListParams{})
	require.NoError(t, err)
	assert.Equal(t, 10, res.Limit)
	assert.Len(t, res.Items, 10)
	assert.True(t, res.Items[0].CreatedAt.After(res.Items[1].CreatedAt))
}

func TestListFilters(t *testing.T) {
	f := newFixture()
	f.seed(func(h *types.Hackathon) { h.Categories = []types.Category{types.CategoryAIML}; h.PrizePool = 10 })
	f.seed(func(h *types.Hackathon) { h.PrizePool = 500 })

	res, err := f.svc.List(context.Background(), ListParams{Category: "ai/ml"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)

	res, err = f.svc.List(context.Background(), ListParams{Category: "web"})
	require.NoError(t, err)
	assert.Equal(t, types.CategoryWeb, *f.repo.lastQ.Category)
	assert.Equal(t, 1, res.Total)

	res, err = f.svc.List(context.Background(), ListParams{Sort: "prize"})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Equal(t, 500.0, res.Items[0].PrizePool)

	_, err = f.svc.List(context.Background(), ListParams{Category: "xyzzy"})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	_, err = f.svc.List(context.Background(), ListParams{Status: "paused"})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	_, err = f.svc.List(context.Background(), ListParams{Sort: "random"})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestListRefreshesStaleStatus(t *testing.T) {
	f := newFixture()
	running := f.seed(func(h *types.Hackathon) {
		h.StartDate = baseNow.Add(-time.Hour)
		h.EndDate = baseNow.Add(time.Hour)
		h.RegistrationDeadline = baseNow.Add(-2 * time.Hour)
	})
	cancelled := f.seed(func(h *types.Hackathon) {
		h.Status = types.StatusCancelled
		h.EndDate = baseNow.Add(-time.Hour)
		h.StartDate = baseNow.Add(-2 * time.Hour)
	})

	res, err := f.svc.List(context.Background(), ListParams{})
	require.NoError(t, err)
	f.svc.Wait()

	byID := map[string]types.Status{}
	for _, item := range res.Items {
		byID[item.ID] = item.Status
	}
	assert.Equal(t, types.StatusOngoing, byID[running.ID])
	assert.Equal(t, types.StatusCancelled, byID[cancelled.ID])

	assert.Equal(t, types.StatusOngoing, f.repo.statuses[running.ID])
	_, touched := f.repo.statuses[cancelled.ID]
	assert.False(t, touched)
}

func TestGetPopulatesUsers(t *testing.T) {
	f := newFixture()
	h := f.seed(func(h *types.Hackathon) { h.Participants = []string{"stu", "ghost"} })

	detail, err := f.svc.Get(context.Background(), h.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.Organizer)
	assert.Equal(t, "Olu", detail.Organizer.Name)
	require.Len(t, detail.Participants, 2)
	assert.Equal(t, "Sam", detail.Participants[0].Name)
	assert.Equal(t, []string{"Rust"}, detail.Participants[0].Skills)
	assert.Equal(t, "ghost", detail.Participants[1].ID)
	assert.Equal(t, 2, detail.RegistrationCount)

	list, err := f.svc.List(context.Background(), ListParams{})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Nil(t, list.Items[0].Participants[0].Skills)
}

func TestGetNotFound(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Get(context.Background(), "missing")
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	assert.Equal(t, "Hackathon not found", err.(*apperrors.Error).Message)

	_, err = f.svc.Get(context.Background(), "")
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func ptr[T any](v T) *T { return &v }

func TestUpdate(t *testing.T) {
	f := newFixture()
	h := f.seed(nil)

	detail, err := f.svc.Update(context.Background(), organizer, h.ID, HackathonPatch{
		Title:     ptr("Renamed"),
		PrizePool: ptr(2500.0),
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", detail.Title)
	assert.Equal(t, 2500.0, detail.PrizePool)
	assert.Equal(t, h.Description, detail.Description)
	assert.Equal(t, []mq.EventType{mq.EventHackathonUpdated}, f.events.kinds())

	_, err = f.svc.Update(context.Background(), admin, h.ID, HackathonPatch{Title: ptr("By admin")})
	assert.NoError(t, err)
}

func TestUpdateAuthorization(t *testing.T) {
	f := newFixture()
	h := f.seed(nil)

	_, err := f.svc.Update(context.Background(), student, h.ID, HackathonPatch{Title: ptr("Mine now")})
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))

	other := policy.Actor{ID: "org-2", Role: types.RoleOrganizer}
	_, err = f.svc.Update(context.Background(), other, h.ID, HackathonPatch{Title: ptr("Mine now")})
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))

	_, err = f.svc.Update(context.Background(), organizer, "missing", HackathonPatch{})
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestUpdateRevalidates(t *testing.T) {
	f := newFixture()
	h := f.seed(func(h *types.Hackathon) { h.Participants = []string{"a", "b", "c"} })

	_, err := f.svc.Update(context.Background(), organizer, h.ID, HackathonPatch{EndDate: ptr(h.StartDate.Add(-time.Hour))})
	assert.Equal(t, apperrors.CodeInvalidDateRange, apperrors.CodeOf(err))

	_, err = f.svc.Update(context.Background(), organizer, h.ID, HackathonPatch{RegistrationDeadline: ptr(h.StartDate.Add(time.Hour))})
	assert.Equal(t, apperrors.CodeInvalidDeadlineOrdering, apperrors.CodeOf(err))

	_, err = f.svc.Update(context.Background(), organizer, h.ID, HackathonPatch{MaxParticipants: ptr(2)})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	_, err = f.svc.Update(context.Background(), organizer, h.ID, HackathonPatch{MaxTeamSize: ptr(20)})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	// A past deadline is fine on update.
	f.clock.Set(h.RegistrationDeadline.Add(time.Hour))
	_, err = f.svc.Update(context.Background(), organizer, h.ID, HackathonPatch{MaxParticipants: ptr(3)})
	assert.NoError(t, err)
}

func TestCancellationIsSticky(t *testing.T) {
	f := newFixture()
	h := f.seed(nil)

	detail, err := f.svc.Update(context.Background(), organizer, h.ID, HackathonPatch{Status: ptr(types.StatusCancelled)})
	require.NoError(t, err)
	assert.Equal(t, types.StatusCancelled, detail.Status)

	_, err = f.svc.Update(context.Background(), organizer, h.ID, HackathonPatch{Status: ptr(types.StatusUpcoming)})
	assert.Equal(t, apperrors.CodeStatusLocked, apperrors.CodeOf(err))

	f.clock.Set(h.EndDate.Add(time.Hour))
	got, err := f.svc.Get(context.Background(), h.ID)
	require.NoError(t, err)
	f.svc.Wait()
	assert.Equal(t, types.StatusCancelled, got.Status)

	_, err = f.svc.Update(context.Background(), organizer, h.ID, HackathonPatch{Status: ptr(types.Status("paused"))})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestUpdateKeepsConcurrentCancel(t *testing.T) {
	f := newFixture()
	h := f.seed(nil)
	f.repo.beforeUpdate = func(h *types.Hackathon) { h.Status = types.StatusCancelled }

	detail, err := f.svc.Update(context.Background(), organizer, h.ID, HackathonPatch{Title: ptr("Renamed")})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", detail.Title)
	assert.Equal(t, types.StatusCancelled, detail.Status)

	stored, err := f.repo.Get(context.Background(), h.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCancelled, stored.Status)
}

func TestUpdateReopenLosesToConcurrentCancel(t *testing.T) {
	f := newFixture()
	h := f.seed(nil)
	f.repo.beforeUpdate = func(h *types.Hackathon) { h.Status = types.StatusCancelled }

	_, err := f.svc.Update(context.Background(), organizer, h.ID, HackathonPatch{Status: ptr(types.StatusUpcoming)})
	assert.Equal(t, apperrors.CodeStatusLocked, apperrors.CodeOf(err))
	assert.Equal(t, 1, f.repo.updates)
	assert.Empty(t, f.events.kinds())

	stored, err := f.repo.Get(context.Background(), h.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCancelled, stored.Status)
}

func TestUpdateCapacityRaceWithRegistration(t *testing.T) {
	f := newFixture()
	h := f.seed(func(h *types.Hackathon) { h.Participants = []string{"a", "b"} })
	f.repo.beforeUpdate = func(h *types.Hackathon) { h.Participants = append(h.Participants, "c") }

	_, err := f.svc.Update(context.Background(), organizer, h.ID, HackathonPatch{MaxParticipants: ptr(2)})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "3", appErr.Metadata["currentParticipants"])

	stored, err := f.repo.Get(context.Background(), h.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, stored.MaxParticipants)
	assert.LessOrEqual(t, stored.RegistrationCount(), stored.MaxParticipants)
}

func TestUpdateLeavesBannerToUpload(t *testing.T) {
	f := newFixture()
	h := f.seed(nil)
	f.repo.beforeUpdate = func(h *types.Hackathon) { h.BannerImage = "hackathons/x/banner-2.png" }

	_, err := f.svc.Update(context.Background(), organizer, h.ID, HackathonPatch{Title: ptr("Renamed")})
	require.NoError(t, err)

	stored, err := f.repo.Get(context.Background(), h.ID)
	require.NoError(t, err)
	assert.Equal(t, "hackathons/x/banner-2.png", stored.BannerImage)
	assert.Equal(t, "Renamed", stored.Title)
}

func TestDelete(t *testing.T) {
	f := newFixture()
	h := f.seed(func(h *types.Hackathon) { h.BannerImage = "hackathons/x/banner-1.png" })
	f.banners.objects[h.BannerImage] = []byte("img")

	err := f.svc.Delete(context.Background(), student, h.ID)
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))

	require.NoError(t, f.svc.Delete(context.Background(), organizer, h.ID))
	assert.Empty(t, f.repo.items)
	assert.Empty(t, f.banners.objects)
	assert.Equal(t, []mq.EventType{mq.EventHackathonDeleted}, f.events.kinds())

	err = f.svc.Delete(context.Background(), organizer, h.ID)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestRegister(t *testing.T) {
	f := newFixture()
	h := f.seed(nil)

	receipt, err := f.svc.Register(context.Background(), student, h.ID)
	require.NoError(t, err)
	assert.Equal(t, h.ID, receipt.HackathonID)
	assert.Equal(t, h.Title, receipt.HackathonTitle)
	assert.Equal(t, 1, receipt.RegistrationCount)
	assert.Equal(t, 99, receipt.SpotsRemaining)
	assert.Equal(t, h.RegistrationDeadline, receipt.RegistrationDeadline)

	_, err = f.svc.Register(context.Background(), student, h.ID)
	assert.Equal(t, apperrors.CodeAlreadyRegistered, apperrors.CodeOf(err))

	stored, _ := f.repo.Get(context.Background(), h.ID)
	assert.Equal(t, []string{student.ID}, stored.Participants)
	assert.Equal(t, []mq.EventType{mq.EventHackathonRegistered}, f.events.kinds())
}

func TestRegisterCheckOrder(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(h *types.Hackathon)
		now    func(h types.Hackathon) time.Time
		code   apperrors.Code
	}{
		{
			name: "full beats deadline and inactive",
			mutate: func(h *types.Hackathon) {
				h.MaxParticipants = 1
				h.Participants = []string{"someone"}
				h.IsActive = false
			},
			now:  func(h types.Hackathon) time.Time { return h.RegistrationDeadline.Add(time.Hour) },
			code: apperrors.CodeCapacityExceeded,
		},
		{
			name:   "deadline beats inactive",
			mutate: func(h *types.Hackathon) { h.IsActive = false },
			now:    func(h types.Hackathon) time.Time { return h.RegistrationDeadline.Add(time.Second) },
			code:   apperrors.CodeDeadlinePassed,
		},
		{
			name: "inactive beats already registered",
			mutate: func(h *types.Hackathon) {
				h.IsActive = false
				h.Participants = []string{"stu"}
			},
			code: apperrors.CodeInactive,
		},
		{
			name:   "already registered",
			mutate: func(h *types.Hackathon) { h.Participants = []string{"stu"} },
			code:   apperrors.CodeAlreadyRegistered,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			h := f.seed(tc.mutate)
			if tc.now != nil {
				f.clock.Set(tc.now(h))
			}

			_, err := f.svc.Register(context.Background(), student, h.ID)
			assert.Equal(t, tc.code, apperrors.CodeOf(err))
			assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
			assert.Empty(t, f.events.kinds())
		})
	}

	f := newFixture()
	_, err := f.svc.Register(context.Background(), student, "missing")
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestRegisterDeadlineBoundary(t *testing.T) {
	f := newFixture()
	h := f.seed(nil)

	f.clock.Set(h.RegistrationDeadline)
	_, err := f.svc.Register(context.Background(), student, h.ID)
	assert.NoError(t, err)

	f.clock.Set(h.RegistrationDeadline.Add(time.Millisecond))
	_, err = f.svc.Register(context.Background(), policy.Actor{ID: "late", Role: types.RoleParticipant}, h.ID)
	assert.Equal(t, apperrors.CodeDeadlinePassed, apperrors.CodeOf(err))
}

func TestRegisterSingleSeat(t *testing.T) {
	f := newFixture()
	h := f.seed(func(h *types.Hackathon) { h.MaxParticipants = 1 })

	_, err := f.svc.Register(context.Background(), student, h.ID)
	require.NoError(t, err)

	_, err = f.svc.Register(context.Background(), policy.Actor{ID: "second", Role: types.RoleParticipant}, h.ID)
	assert.Equal(t, apperrors.CodeCapacityExceeded, apperrors.CodeOf(err))
	meta := err.(*apperrors.Error).Metadata
	assert.Equal(t, "1", meta["currentParticipants"])
	assert.Equal(t, "1", meta["maxParticipants"])
}

func TestRegisterLostRaceReportsPreciseError(t *testing.T) {
	f := newFixture()
	h := f.seed(func(h *types.Hackathon) { h.MaxParticipants = 1 })
	f.repo.beforeAdd = func(h *types.Hackathon) {
		h.Participants = append(h.Participants, "racer")
	}

	_, err := f.svc.Register(context.Background(), student, h.ID)
	assert.Equal(t, apperrors.CodeCapacityExceeded, apperrors.CodeOf(err))
}

func TestConcurrentRegistrationsNeverExceedCapacity(t *testing.T) {
	f := newFixture()
	h := f.seed(func(h *types.Hackathon) { h.MaxParticipants = 5 })

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			actor := policy.Actor{ID: fmt.Sprintf("user-%d", i), Role: types.RoleParticipant}
			if _, err := f.svc.Register(context.Background(), actor, h.ID); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	stored, _ := f.repo.Get(context.Background(), h.ID)
	assert.Equal(t, 5, succeeded)
	assert.Len(t, stored.Participants, 5)
}

func TestUnregister(t *testing.T) {
	f := newFixture()
	h := f.seed(func(h *types.Hackathon) { h.Participants = []string{"stu", "other"} })

	receipt, err := f.svc.Unregister(context.Background(), student, h.ID)
	require.NoError(t, err)
	assert.Equal(t, h.ID, receipt.HackathonID)
	assert.Equal(t, 1, receipt.RemainingParticipants)
	assert.Equal(t, []mq.EventType{mq.EventHackathonUnregistered}, f.events.kinds())

	_, err = f.svc.Unregister(context.Background(), student, h.ID)
	assert.Equal(t, apperrors.CodeNotRegistered, apperrors.CodeOf(err))
}

func TestUnregisterAfterStart(t *testing.T) {
	f := newFixture()
	h := f.seed(func(h *types.Hackathon) { h.Participants = []string{"stu"} })

	f.clock.Set(h.StartDate)
	_, err := f.svc.Unregister(context.Background(), student, h.ID)
	assert.Equal(t, apperrors.CodeAlreadyStarted, apperrors.CodeOf(err))

	_, err = f.svc.Unregister(context.Background(), policy.Actor{ID: "stranger", Role: types.RoleParticipant}, h.ID)
	assert.Equal(t, apperrors.CodeNotRegistered, apperrors.CodeOf(err))

	stored, _ := f.repo.Get(context.Background(), h.ID)
	assert.Equal(t, []string{"stu"}, stored.Participants)
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestUploadBanner(t *testing.T) {
	f := newFixture()
	h := f.seed(func(h *types.Hackathon) { h.BannerImage = "hackathons/old.png" })
	f.banners.objects["hackathons/old.png"] = []byte("old")

	view, err := f.svc.UploadBanner(context.Background(), organizer, h.ID, pngHeader)
	require.NoError(t, err)
	assert.Regexp(t, `^hackathons/`+h.ID+`/banner-[0-9a-f-]{36}\.png$`, view.BannerImage)
	assert.Contains(t, f.banners.objects, view.BannerImage)
	assert.NotContains(t, f.banners.objects, "hackathons/old.png")

	obj, err := f.svc.OpenBanner(context.Background(), h.ID)
	require.NoError(t, err)
	defer obj.Close()
	data, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)
}

func TestUploadBannerRejects(t *testing.T) {
	f := newFixture()
	h := f.seed(nil)

	_, err := f.svc.UploadBanner(context.Background(), student, h.ID, pngHeader)
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))

	_, err = f.svc.UploadBanner(context.Background(), organizer, h.ID, []byte("plain text"))
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	big := append(append([]byte{}, pngHeader...), make([]byte, MaxBannerBytes)...)
	_, err = f.svc.UploadBanner(context.Background(), organizer, h.ID, big)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	_, err = f.svc.OpenBanner(context.Background(), h.ID)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	assert.Empty(t, f.banners.objects)
}

func TestBannersDisabled(t *testing.T) {
	svc := NewHackathonService(newFakeHackathonRepo(), WithClock(clock.NewFixed(baseNow)))
	assert.False(t, svc.BannersEnabled())

	_, err := svc.UploadBanner(context.Background(), organizer, "h1", pngHeader)
	assert.Error(t, err)
	_, err = svc.OpenBanner(context.Background(), "h1")
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestResolveCategory(t *testing.T) {
	cases := map[string]types.Category{
		"AI/ML":          types.CategoryAIML,
		"ai/ml":          types.CategoryAIML,
		"  iot ":         types.CategoryIoT,
		"web":            types.CategoryWeb,
		"cyber":          types.CategorySecurity,
		"Cloud":          types.CategoryCloud,
		"game dev":       types.CategoryGameDev,
		"Data Science":   types.CategoryDataSci,
		"mobile develop": types.CategoryMobile,
	}
	for raw, want := range cases {
		got, err := ResolveCategory(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := ResolveCategory("quantum knitting")
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	_, err = ResolveCategory("")
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}
