package services

import (
	"context"
	"math"

	apperrors "github.com/htverse/apiserver/internal/errors"
	"github.com/htverse/apiserver/internal/policy"
	"github.com/htverse/apiserver/internal/store"
	"github.com/htverse/apiserver/types"
)

// DashboardStats are the platform totals shown to administrators.
type DashboardStats struct {
	TotalUsers       int `json:"totalUsers"`
	ActiveHackathons int `json:"activeHackathons"`
	TotalHackathons  int `json:"totalHackathons"`
}

// UserPage is one page of users.
type UserPage struct {
	Items []types.User
	Total int
	Page  int
	Pages int
}

// AdminService serves the administration endpoints.
type AdminService struct {
	users      UserRepository
	hackathons HackathonRepository
}

func NewAdminService(users UserRepository, hackathons HackathonRepository) *AdminService {
	return &AdminService{users: users, hackathons: hackathons}
}

func (s *AdminService) Dashboard(ctx context.Context, actor policy.Actor) (DashboardStats, error) {
	if err := policy.Authorize(policy.OpAdmin, actor, ""); err != nil {
		return DashboardStats{}, err
	}

	totalUsers, err := s.users.Count(ctx)
	if err != nil {
		return DashboardStats{}, apperrors.Internal("Error fetching dashboard", err)
	}
	totalHackathons, err := s.hackathons.Count(ctx, store.HackathonQuery{})
	if err != nil {
		return DashboardStats{}, apperrors.Internal("Error fetching dashboard", err)
	}
	active := true
	activeHackathons, err := s.hackathons.Count(ctx, store.HackathonQuery{IsActive: &active})
	if err != nil {
		return DashboardStats{}, apperrors.Internal("Error fetching dashboard", err)
	}

	return DashboardStats{
		TotalUsers:       totalUsers,
		ActiveHackathons: activeHackathons,
		TotalHackathons:  totalHackathons,
	}, nil
}

func (s *AdminService) ListUsers(ctx context.Context, actor policy.Actor, page, limit int) (UserPage, error) {
	if err := policy.Authorize(policy.OpAdmin, actor, ""); err != nil {
		return UserPage{}, err
	}

	page, limit = normalizePage(page, limit)
	users, total, err := s.users.List(ctx, (page-1)*limit, limit)
	if err != nil {
		return UserPage{}, apperrors.Internal("Error fetching users", err)
	}
	return UserPage{
		Items: users,
		Total: total,
		Page:  page,
		Pages: int(math.Ceil(float64(total) / float64(limit))),
	}, nil
}
