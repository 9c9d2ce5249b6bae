package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/htverse/apiserver/internal/errors"
	"github.com/htverse/apiserver/internal/store"
	"github.com/htverse/apiserver/types"
)

// PasswordCost is the bcrypt cost for stored passwords.
const PasswordCost = 12

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]types.User, error)
	List(ctx context.Context, offset, limit int) ([]types.User, int, error)
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
}

// RegisterInput carries a signup request.
type RegisterInput struct {
	Name     string `validate:"notblank,max=50"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
	College  string `validate:"notblank"`
	Phone    string `validate:"required,len=10,number"`
	Skills   []string
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo   UserRepository
	logger *slog.Logger
}

func NewUserService(repo UserRepository, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{repo: repo, logger: logger}
}

func (s *UserService) GetByID(ctx context.Context, id string) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, apperrors.NotFound("User")
		}
		return types.User{}, apperrors.Internal("Error fetching user data", err)
	}
	return user, nil
}

// GetByIDs resolves a batch of users; unknown ids are skipped.
func (s *UserService) GetByIDs(ctx context.Context, ids []string) ([]types.User, error) {
	return s.repo.GetByIDs(ctx, ids)
}

// Register validates in and creates a participant account.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (types.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.College = strings.TrimSpace(in.College)
	in.Phone = strings.TrimSpace(in.Phone)
	if err := checkStruct(in, userMessages); err != nil {
		return types.User{}, err
	}

	user := types.User{
		Name:    in.Name,
		Email:   in.Email,
		Role:    types.RoleParticipant,
		College: in.College,
		Phone:   in.Phone,
		Skills:  normalizeSkills(in.Skills),
	}

	if _, err := s.repo.GetByEmail(ctx, user.Email); err == nil {
		return types.User{}, emailTaken()
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, apperrors.Internal("Error in user registration", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), PasswordCost)
	if err != nil {
		return types.User{}, apperrors.Internal("Error in user registration", err)
	}
	user.PasswordHash = string(hashed)

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return types.User{}, emailTaken()
		}
		return types.User{}, apperrors.Internal("Error in user registration", err)
	}
	return created, nil
}

// Authenticate verifies an email and password pair.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (types.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return types.User{}, apperrors.Validation("Please provide email and password")
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, invalidCredentials()
		}
		return types.User{}, apperrors.Internal("Error in user login", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, invalidCredentials()
	}
	return user, nil
}

// DemoAccount is a well-known account created for local testing.
type DemoAccount struct {
	User     types.User
	Password string
}

// DemoAccounts are the accounts installed by SeedDemoAccounts.
var DemoAccounts = []DemoAccount{
	{
		User: types.User{
			Name:       "Admin User",
			Email:      "admin@hackathon.com",
			Role:       types.RoleAdmin,
			College:    "Demo University",
			Phone:      "1234567890",
			Skills:     []string{"Management", "Organization"},
			IsVerified: true,
		},
		Password: "admin123",
	},
	{
		User: types.User{
			Name:       "John Doe",
			Email:      "john@student.com",
			Role:       types.RoleParticipant,
			College:    "Demo College",
			Phone:      "9876543210",
			Skills:     []string{"Web Development", "JavaScript"},
			IsVerified: true,
		},
		Password: "john123",
	},
}

// SeedDemoAccounts creates the demo accounts that are missing and repairs
// the password hash of existing ones when it no longer verifies.
func (s *UserService) SeedDemoAccounts(ctx context.Context) error {
	for _, account := range DemoAccounts {
		existing, err := s.repo.GetByEmail(ctx, account.User.Email)
		switch {
		case err == nil:
			if bcrypt.CompareHashAndPassword([]byte(existing.PasswordHash), []byte(account.Password)) == nil {
				s.logger.Debug("demo account ok", "email", existing.Email)
				continue
			}
			hashed, err := bcrypt.GenerateFromPassword([]byte(account.Password), PasswordCost)
			if err != nil {
				return err
			}
			existing.PasswordHash = string(hashed)
			if _, err := s.repo.Update(ctx, existing); err != nil {
				return err
			}
			s.logger.Info("repaired demo account password", "email", existing.Email)
		case errors.Is(err, store.ErrNotFound):
			hashed, err := bcrypt.GenerateFromPassword([]byte(account.Password), PasswordCost)
			if err != nil {
				return err
			}
			user := account.User
			user.Skills = append([]string{}, account.User.Skills...)
			user.PasswordHash = string(hashed)
			if _, err := s.repo.Create(ctx, user); err != nil && !errors.Is(err, store.ErrDuplicate) {
				return err
			}
			s.logger.Info("created demo account", "email", user.Email, "role", user.Role)
		default:
			return err
		}
	}
	return nil
}

func normalizeSkills(skills []string) []string {
	out := make([]string, 0, len(skills))
	seen := map[string]bool{}
	for _, skill := range skills {
		skill = strings.TrimSpace(skill)
		key := strings.ToLower(skill)
		if skill == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, skill)
	}
	return out
}

func emailTaken() error {
	return apperrors.New(apperrors.KindConflict, apperrors.CodeEmailTaken, "User already exists with this email")
}

func invalidCredentials() error {
	return apperrors.New(apperrors.KindUnauthorized, apperrors.CodeInvalidCredentials, "Invalid credentials")
}
