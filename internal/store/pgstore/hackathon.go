package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/htverse/apiserver/internal/store"
	"github.com/htverse/apiserver/types"
)

const hackathonColumns = `
	h.id, h.title, h.description, h.start_date, h.end_date, h.registration_deadline,
	h.max_team_size, h.prize_pool, h.categories, h.organizer,
	COALESCE((SELECT json_agg(p.user_id ORDER BY p.seq) FROM hackathon_participants p WHERE p.hackathon_id = h.id), '[]'::json),
	h.max_participants, h.is_active, h.banner_image, h.rules, h.judges_criteria, h.status,
	h.created_at, h.updated_at`

var hackathonOrderBy = map[store.HackathonSort]string{
	store.SortNewest:   `h.created_at DESC, h.id`,
	store.SortOldest:   `h.created_at ASC, h.id`,
	store.SortPrize:    `h.prize_pool DESC, h.created_at DESC`,
	store.SortDeadline: `h.registration_deadline ASC, h.created_at DESC`,
}

// HackathonRepository handles persistence for hackathons. Participants live
// in their own table so registration can be guarded by a row lock.
type HackathonRepository struct {
	db *sql.DB
}

func NewHackathonRepository(db *sql.DB) *HackathonRepository {
	return &HackathonRepository{db: db}
}

func scanHackathon(row rowScanner) (types.Hackathon, error) {
	var h types.Hackathon
	var status string
	var categoriesJSON, participantsJSON, rulesJSON, criteriaJSON []byte
	if err := row.Scan(
		&h.ID,
		&h.Title,
		&h.Description,
		&h.StartDate,
		&h.EndDate,
		&h.RegistrationDeadline,
		&h.MaxTeamSize,
		&h.PrizePool,
		&categoriesJSON,
		&h.Organizer,
		&participantsJSON,
		&h.MaxParticipants,
		&h.IsActive,
		&h.BannerImage,
		&rulesJSON,
		&criteriaJSON,
		&status,
		&h.CreatedAt,
		&h.UpdatedAt,
	); err != nil {
		return types.Hackathon{}, err
	}
	h.Status = types.Status(status)

	for _, field := range []struct {
		raw  []byte
		dest any
	}{
		{categoriesJSON, &h.Categories},
		{participantsJSON, &h.Participants},
		{rulesJSON, &h.Rules},
		{criteriaJSON, &h.JudgesCriteria},
	} {
		if err := json.Unmarshal(field.raw, field.dest); err != nil {
			return types.Hackathon{}, fmt.Errorf("decode hackathon %s: %w", h.ID, err)
		}
	}
	return h, nil
}

type whereBuilder struct {
	clauses []string
	args    []any
}

func (w *whereBuilder) add(clause string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, fmt.Sprintf(clause, len(w.args)))
}

func (w *whereBuilder) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func buildWhere(q store.HackathonQuery) (*whereBuilder, error) {
	w := &whereBuilder{}
	if q.Category != nil {
		raw, err := json.Marshal([]types.Category{*q.Category})
		if err != nil {
			return nil, err
		}
		w.add("h.categories @> $%d::jsonb", string(raw))
	}
	if q.Status != nil {
		w.add("h.status = $%d", string(*q.Status))
	}
	if q.IsActive != nil {
		w.add("h.is_active = $%d", *q.IsActive)
	}
	return w, nil
}

func (r *HackathonRepository) List(ctx context.Context, q store.HackathonQuery) ([]types.Hackathon, int, error) {
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.Limit < 1 {
		q.Limit = 10
	}
	orderBy, ok := hackathonOrderBy[q.Sort]
	if !ok {
		orderBy = hackathonOrderBy[store.SortNewest]
	}

	where, err := buildWhere(q)
	if err != nil {
		return nil, 0, err
	}

	var total int
	countQuery := `SELECT COUNT(1) FROM hackathons h` + where.String()
	if err := r.db.QueryRowContext(ctx, countQuery, where.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args := append(append([]any{}, where.args...), q.Offset, q.Limit)
	listQuery := fmt.Sprintf(`SELECT %s FROM hackathons h%s ORDER BY %s OFFSET $%d LIMIT $%d`,
		hackathonColumns, where.String(), orderBy, len(args)-1, len(args))
	rows, err := r.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	hackathons := make([]types.Hackathon, 0, q.Limit)
	for rows.Next() {
		h, err := scanHackathon(rows)
		if err != nil {
			return nil, 0, err
		}
		hackathons = append(hackathons, h)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return hackathons, total, nil
}

func (r *HackathonRepository) Count(ctx context.Context, q store.HackathonQuery) (int, error) {
	where, err := buildWhere(q)
	if err != nil {
		return 0, err
	}
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM hackathons h`+where.String(), where.args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *HackathonRepository) Get(ctx context.Context, id string) (types.Hackathon, error) {
	return r.get(ctx, r.db, id)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *HackathonRepository) get(ctx context.Context, q queryer, id string) (types.Hackathon, error) {
	if _, err := uuid.Parse(id); err != nil {
		return types.Hackathon{}, store.ErrNotFound
	}
	query := `SELECT ` + hackathonColumns + ` FROM hackathons h WHERE h.id = $1`
	h, err := scanHackathon(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Hackathon{}, store.ErrNotFound
		}
		return types.Hackathon{}, err
	}
	return h, nil
}

type hackathonJSON struct {
	categories []byte
	rules      []byte
	criteria   []byte
}

func encodeHackathonJSON(h types.Hackathon) (hackathonJSON, error) {
	var out hackathonJSON
	var err error
	if out.categories, err = json.Marshal(nonNil(h.Categories)); err != nil {
		return out, err
	}
	if out.rules, err = json.Marshal(nonNil(h.Rules)); err != nil {
		return out, err
	}
	if out.criteria, err = json.Marshal(nonNil(h.JudgesCriteria)); err != nil {
		return out, err
	}
	return out, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func (r *HackathonRepository) Create(ctx context.Context, h types.Hackathon) (types.Hackathon, error) {
	now := time.Now().UTC()
	h.ID = uuid.NewString()
	h.CreatedAt = now
	h.UpdatedAt = now
	h.Participants = []string{}

	encoded, err := encodeHackathonJSON(h)
	if err != nil {
		return types.Hackathon{}, err
	}

	const query = `
		INSERT INTO hackathons (
			id, title, description, start_date, end_date, registration_deadline,
			max_team_size, prize_pool, categories, organizer, max_participants,
			is_active, banner_image, rules, judges_criteria, status, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		h.ID,
		h.Title,
		h.Description,
		h.StartDate,
		h.EndDate,
		h.RegistrationDeadline,
		h.MaxTeamSize,
		h.PrizePool,
		encoded.categories,
		h.Organizer,
		h.MaxParticipants,
		h.IsActive,
		h.BannerImage,
		encoded.rules,
		encoded.criteria,
		string(h.Status),
		h.CreatedAt,
		h.UpdatedAt,
	); err != nil {
		return types.Hackathon{}, err
	}
	return h, nil
}

// Update persists every editable column under a row lock on the hackathon,
// the same lock AddParticipant takes, so the participant count and stored
// status checked by the guard cannot change before the write. Participants
// and banner are left untouched.
func (r *HackathonRepository) Update(ctx context.Context, h types.Hackathon, guard store.UpdateGuard) (types.Hackathon, error) {
	if _, err := uuid.Parse(h.ID); err != nil {
		return types.Hackathon{}, store.ErrNotFound
	}
	h.UpdatedAt = time.Now().UTC()

	encoded, err := encodeHackathonJSON(h)
	if err != nil {
		return types.Hackathon{}, err
	}

	err = r.withTx(ctx, func(tx *sql.Tx) error {
		var status string
		const lockQuery = `SELECT status FROM hackathons WHERE id = $1 FOR UPDATE`
		if err := tx.QueryRowContext(ctx, lockQuery, h.ID).Scan(&status); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrNotFound
			}
			return err
		}
		if !guard.SetStatus {
			h.Status = types.Status(status)
		} else if h.Status != types.StatusCancelled && types.Status(status) == types.StatusCancelled {
			return store.ErrConditionFailed
		}

		var count int
		const countQuery = `SELECT COUNT(1) FROM hackathon_participants WHERE hackathon_id = $1`
		if err := tx.QueryRowContext(ctx, countQuery, h.ID).Scan(&count); err != nil {
			return err
		}
		if count > h.MaxParticipants {
			return store.ErrConditionFailed
		}

		const query = `
			UPDATE hackathons
			SET title = $1,
				description = $2,
				start_date = $3,
				end_date = $4,
				registration_deadline = $5,
				max_team_size = $6,
				prize_pool = $7,
				categories = $8,
				max_participants = $9,
				is_active = $10,
				rules = $11,
				judges_criteria = $12,
				status = $13,
				updated_at = $14
			WHERE id = $15`
		_, err := tx.ExecContext(
			ctx,
			query,
			h.Title,
			h.Description,
			h.StartDate,
			h.EndDate,
			h.RegistrationDeadline,
			h.MaxTeamSize,
			h.PrizePool,
			encoded.categories,
			h.MaxParticipants,
			h.IsActive,
			encoded.rules,
			encoded.criteria,
			string(h.Status),
			h.UpdatedAt,
			h.ID,
		)
		return err
	})
	if err != nil {
		return types.Hackathon{}, err
	}
	return r.Get(ctx, h.ID)
}

// SetStatus stores a derived status. Cancelled records are never touched.
func (r *HackathonRepository) SetStatus(ctx context.Context, id string, status types.Status) error {
	if _, err := uuid.Parse(id); err != nil {
		return store.ErrNotFound
	}
	const query = `UPDATE hackathons SET status = $1 WHERE id = $2 AND status <> 'cancelled'`
	_, err := r.db.ExecContext(ctx, query, string(status), id)
	return err
}

func (r *HackathonRepository) SetBanner(ctx context.Context, id, key string) error {
	if _, err := uuid.Parse(id); err != nil {
		return store.ErrNotFound
	}
	const query = `UPDATE hackathons SET banner_image = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, key, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *HackathonRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return store.ErrNotFound
	}
	const query = `DELETE FROM hackathons WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// AddParticipant appends guard.UserID under a row lock on the hackathon so
// capacity, activity, deadline and uniqueness are checked atomically.
func (r *HackathonRepository) AddParticipant(ctx context.Context, id string, guard store.RegisterGuard) (types.Hackathon, error) {
	if _, err := uuid.Parse(id); err != nil {
		return types.Hackathon{}, store.ErrNotFound
	}

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var maxParticipants int
		var isActive bool
		var deadline time.Time
		const lockQuery = `SELECT max_participants, is_active, registration_deadline FROM hackathons WHERE id = $1 FOR UPDATE`
		if err := tx.QueryRowContext(ctx, lockQuery, id).Scan(&maxParticipants, &isActive, &deadline); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrNotFound
			}
			return err
		}
		if !isActive || guard.Now.After(deadline) {
			return store.ErrConditionFailed
		}

		var count, existing int
		const countQuery = `
			SELECT COUNT(1), COUNT(1) FILTER (WHERE user_id = $2)
			FROM hackathon_participants
			WHERE hackathon_id = $1`
		if err := tx.QueryRowContext(ctx, countQuery, id, guard.UserID).Scan(&count, &existing); err != nil {
			return err
		}
		if count >= maxParticipants || existing > 0 {
			return store.ErrConditionFailed
		}

		const insertQuery = `INSERT INTO hackathon_participants (hackathon_id, user_id, registered_at) VALUES ($1, $2, $3)`
		if _, err := tx.ExecContext(ctx, insertQuery, id, guard.UserID, guard.Now); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `UPDATE hackathons SET updated_at = $1 WHERE id = $2`, time.Now().UTC(), id)
		return err
	})
	if err != nil {
		return types.Hackathon{}, err
	}
	return r.Get(ctx, id)
}

// RemoveParticipant deletes guard.UserID if the hackathon has not started.
func (r *HackathonRepository) RemoveParticipant(ctx context.Context, id string, guard store.UnregisterGuard) (types.Hackathon, error) {
	if _, err := uuid.Parse(id); err != nil {
		return types.Hackathon{}, store.ErrNotFound
	}

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var startDate time.Time
		const lockQuery = `SELECT start_date FROM hackathons WHERE id = $1 FOR UPDATE`
		if err := tx.QueryRowContext(ctx, lockQuery, id).Scan(&startDate); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrNotFound
			}
			return err
		}
		if !guard.Now.Before(startDate) {
			return store.ErrConditionFailed
		}

		const deleteQuery = `DELETE FROM hackathon_participants WHERE hackathon_id = $1 AND user_id = $2`
		result, err := tx.ExecContext(ctx, deleteQuery, id, guard.UserID)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return store.ErrConditionFailed
		}
		_, err = tx.ExecContext(ctx, `UPDATE hackathons SET updated_at = $1 WHERE id = $2`, time.Now().UTC(), id)
		return err
	})
	if err != nil {
		return types.Hackathon{}, err
	}
	return r.Get(ctx, id)
}

func (r *HackathonRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
