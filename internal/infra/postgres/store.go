package postgres

import (
	"context"
	"errors"
	"fmt"

	"aula-live-service/internal/domain"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Store is the postgres implementation of app.Store. The find-or-create for
// word-cloud entries and the vote increment are single statements, so
// concurrent submissions against the same room can never race into duplicate
// rows or lost updates.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const contributionColumns = `id, session_id, parent_id, kind, text, votes, correct`

func (s *Store) CreateSession(ctx context.Context, session *domain.Session) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO sessions (pin, type, host_user_id, current_slide) VALUES ($1, $2, $3, $4) RETURNING id`,
		session.PIN, session.Activity, session.HostUserID, session.CurrentSlide,
	).Scan(&session.ID)
	if isUniqueViolation(err) {
		return domain.Validationf("pin %s already in use", session.PIN)
	}
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a postgres unique constraint
// violation (SQLSTATE 23505), which CreateSession maps to the validation
// class so PIN collisions are retryable by the caller.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *Store) SessionByPIN(ctx context.Context, pin string) (domain.Session, error) {
	var session domain.Session
	err := s.pool.QueryRow(ctx,
		`SELECT id, pin, type, host_user_id, current_slide FROM sessions WHERE pin = $1`, pin,
	).Scan(&session.ID, &session.PIN, &session.Activity, &session.HostUserID, &session.CurrentSlide)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("session by pin: %w", err)
	}
	return session, nil
}

func (s *Store) UpdateSession(ctx context.Context, session *domain.Session) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET type = $2, current_slide = $3 WHERE id = $1`,
		session.ID, session.Activity, session.CurrentSlide,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (s *Store) CreateParticipant(ctx context.Context, p *domain.Participant) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO participants (session_id, name) VALUES ($1, $2) RETURNING id`,
		p.SessionID, p.Name,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("create participant: %w", err)
	}
	return nil
}

func (s *Store) ParticipantsBySession(ctx context.Context, sessionID int64) ([]domain.Participant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, name FROM participants WHERE session_id = $1 ORDER BY id`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("participants by session: %w", err)
	}
	defer rows.Close()

	roster := make([]domain.Participant, 0)
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.ID, &p.SessionID, &p.Name); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		roster = append(roster, p)
	}
	return roster, rows.Err()
}

func (s *Store) DeleteParticipant(ctx context.Context, id int64) error {
	// idempotent: deleting an absent participant is fine
	if _, err := s.pool.Exec(ctx, `DELETE FROM participants WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete participant: %w", err)
	}
	return nil
}

func (s *Store) CreateContribution(ctx context.Context, c *domain.Contribution) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO contributions (session_id, parent_id, kind, text, votes, correct)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		c.SessionID, c.ParentID, c.Kind, c.Text, c.Votes, c.Correct,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("create contribution: %w", err)
	}
	return nil
}

func (s *Store) ContributionsBySession(ctx context.Context, sessionID int64, kinds ...domain.ContributionKind) ([]domain.Contribution, error) {
	query := `SELECT ` + contributionColumns + ` FROM contributions WHERE session_id = $1`
	args := []any{sessionID}
	if len(kinds) > 0 {
		names := make([]string, 0, len(kinds))
		for _, kind := range kinds {
			names = append(names, string(kind))
		}
		query += ` AND kind = ANY($2)`
		args = append(args, names)
	}
	query += ` ORDER BY id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("contributions by session: %w", err)
	}
	defer rows.Close()
	return scanContributions(rows)
}

func (s *Store) OptionsByParent(ctx context.Context, parentID int64) ([]domain.Contribution, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+contributionColumns+` FROM contributions WHERE parent_id = $1 AND kind = $2 ORDER BY id`,
		parentID, domain.KindOption,
	)
	if err != nil {
		return nil, fmt.Errorf("options by parent: %w", err)
	}
	defer rows.Close()
	return scanContributions(rows)
}

func (s *Store) AssignOrphans(ctx context.Context, sessionID int64) error {
	if _, err := s.pool.Exec(ctx,
		`UPDATE contributions SET session_id = $1 WHERE session_id IS NULL`, sessionID,
	); err != nil {
		return fmt.Errorf("assign orphans: %w", err)
	}
	return nil
}

func (s *Store) AssignContributions(ctx context.Context, sessionID int64, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.pool.Exec(ctx,
		`UPDATE contributions SET session_id = $1 WHERE id = ANY($2)`, sessionID, ids,
	); err != nil {
		return fmt.Errorf("assign contributions: %w", err)
	}
	return nil
}

// UpsertWordEntry relies on the partial unique index over
// (session_id, norm_text) for wordcloud rows: the conditional insert either
// creates the entry with votes=1 or bumps the existing counter, atomically.
func (s *Store) UpsertWordEntry(ctx context.Context, sessionID int64, text string) (domain.Contribution, error) {
	var c domain.Contribution
	err := s.pool.QueryRow(ctx,
		`INSERT INTO contributions (session_id, kind, text, votes)
		 VALUES ($1, $2, $3, 1)
		 ON CONFLICT (session_id, norm_text) WHERE kind = 'wordcloud' AND session_id IS NOT NULL
		 DO UPDATE SET votes = contributions.votes + 1
		 RETURNING `+contributionColumns,
		sessionID, domain.KindWordCloud, text,
	).Scan(&c.ID, &c.SessionID, &c.ParentID, &c.Kind, &c.Text, &c.Votes, &c.Correct)
	if err != nil {
		return domain.Contribution{}, fmt.Errorf("upsert word entry: %w", err)
	}
	return c, nil
}

func (s *Store) IncrementVotes(ctx context.Context, id, sessionID int64, kind domain.ContributionKind) (domain.Contribution, error) {
	var c domain.Contribution
	err := s.pool.QueryRow(ctx,
		`UPDATE contributions SET votes = votes + 1
		 WHERE id = $1 AND session_id = $2 AND kind = $3
		 RETURNING `+contributionColumns,
		id, sessionID, kind,
	).Scan(&c.ID, &c.SessionID, &c.ParentID, &c.Kind, &c.Text, &c.Votes, &c.Correct)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Contribution{}, domain.ErrContributionNotFound
	}
	if err != nil {
		return domain.Contribution{}, fmt.Errorf("increment votes: %w", err)
	}
	return c, nil
}

func scanContributions(rows pgx.Rows) ([]domain.Contribution, error) {
	contributions := make([]domain.Contribution, 0)
	for rows.Next() {
		var c domain.Contribution
		if err := rows.Scan(&c.ID, &c.SessionID, &c.ParentID, &c.Kind, &c.Text, &c.Votes, &c.Correct); err != nil {
			return nil, fmt.Errorf("scan contribution: %w", err)
		}
		contributions = append(contributions, c)
	}
	return contributions, rows.Err()
}
