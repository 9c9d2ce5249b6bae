package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/htverse/apiserver/internal/store"
	"github.com/htverse/apiserver/types"
)

const uniqueViolation = "23505"

const userColumns = `id, name, email, password_hash, role, college, phone, skills, is_verified, profile_picture, created_at, updated_at`

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (types.User, error) {
	var user types.User
	var role string
	var skillsJSON []byte
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&role,
		&user.College,
		&user.Phone,
		&skillsJSON,
		&user.IsVerified,
		&user.ProfilePicture,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return types.User{}, err
	}
	user.Role = types.Role(role)
	if err := json.Unmarshal(skillsJSON, &user.Skills); err != nil {
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return types.User{}, store.ErrNotFound
	}
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, store.ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, store.ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) GetByIDs(ctx context.Context, ids []string) ([]types.User, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return nil, nil
	}

	const query = `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1::uuid[])`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(valid))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]types.User, 0, len(valid))
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *UserRepository) List(ctx context.Context, offset, limit int) ([]types.User, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	total, err := r.Count(ctx)
	if err != nil {
		return nil, 0, err
	}

	const query = `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC, id OFFSET $1 LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := make([]types.User, 0, limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM users`).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now().UTC()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Skills == nil {
		user.Skills = []string{}
	}

	skillsJSON, err := json.Marshal(user.Skills)
	if err != nil {
		return types.User{}, err
	}

	const query = `
		INSERT INTO users (id, name, email, password_hash, role, college, phone, skills, is_verified, profile_picture, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		user.College,
		user.Phone,
		skillsJSON,
		user.IsVerified,
		user.ProfilePicture,
		user.CreatedAt,
		user.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return types.User{}, store.ErrDuplicate
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	if _, err := uuid.Parse(user.ID); err != nil {
		return types.User{}, store.ErrNotFound
	}
	user.UpdatedAt = time.Now().UTC()

	skillsJSON, err := json.Marshal(user.Skills)
	if err != nil {
		return types.User{}, err
	}

	const query = `
		UPDATE users
		SET name = $1,
			email = $2,
			password_hash = $3,
			role = $4,
			college = $5,
			phone = $6,
			skills = $7,
			is_verified = $8,
			profile_picture = $9,
			updated_at = $10
		WHERE id = $11`
	result, err := r.db.ExecContext(
		ctx,
		query,
		user.Name,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		user.College,
		user.Phone,
		skillsJSON,
		user.IsVerified,
		user.ProfilePicture,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.User{}, store.ErrDuplicate
		}
		return types.User{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.User{}, err
	}
	if affected == 0 {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
