package app

import (
	"context"

	"aula-live-service/internal/domain"
)

// Store abstracts the persistent record store (postgres in production,
// in-memory for tests and the no-database dev mode). It is the authority for
// session, participant and contribution state; the broker's room map is only
// a cache of who is listening.
type Store interface {
	CreateSession(ctx context.Context, s *domain.Session) error
	SessionByPIN(ctx context.Context, pin string) (domain.Session, error)
	UpdateSession(ctx context.Context, s *domain.Session) error

	CreateParticipant(ctx context.Context, p *domain.Participant) error
	ParticipantsBySession(ctx context.Context, sessionID int64) ([]domain.Participant, error)
	// DeleteParticipant is idempotent: deleting an absent row is not an error.
	DeleteParticipant(ctx context.Context, id int64) error

	CreateContribution(ctx context.Context, c *domain.Contribution) error
	// ContributionsBySession returns the session's contributions, optionally
	// restricted to the given kinds.
	ContributionsBySession(ctx context.Context, sessionID int64, kinds ...domain.ContributionKind) ([]domain.Contribution, error)
	OptionsByParent(ctx context.Context, parentID int64) ([]domain.Contribution, error)
	// AssignOrphans attaches contributions created before a session existed
	// (session_id NULL) to the given session.
	AssignOrphans(ctx context.Context, sessionID int64) error
	AssignContributions(ctx context.Context, sessionID int64, ids []int64) error

	// UpsertWordEntry is the atomic find-or-create for word-cloud submissions:
	// if a wordcloud contribution with the same normalized text (trimmed,
	// case-folded) exists for the session its counter is incremented by one,
	// otherwise a new row with votes=1 is created. Concurrent calls with equal
	// normalized text must never produce two rows.
	UpsertWordEntry(ctx context.Context, sessionID int64, text string) (domain.Contribution, error)
	// IncrementVotes atomically bumps the counter of the contribution matching
	// id, session and kind, returning domain.ErrContributionNotFound when no
	// row matches.
	IncrementVotes(ctx context.Context, id, sessionID int64, kind domain.ContributionKind) (domain.Contribution, error)
}

// QuestionLoader assembles question+option trees from a backing store.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, sessionID int64, kind domain.ContributionKind) ([]domain.Question, error)
}

// QuestionSource serves question sets to the scoring engine, typically through
// a TTL cache in front of a QuestionLoader.
type QuestionSource interface {
	Questions(ctx context.Context, sessionID int64, kind domain.ContributionKind) ([]domain.Question, error)
	// Invalidate drops any cached set so freshly ingested questions become
	// visible immediately.
	Invalidate(ctx context.Context, sessionID int64, kind domain.ContributionKind) error
}

// StoreQuestionLoader loads questions straight from the contribution store.
type StoreQuestionLoader struct {
	store Store
}

func NewStoreQuestionLoader(store Store) *StoreQuestionLoader {
	return &StoreQuestionLoader{store: store}
}

func (l *StoreQuestionLoader) LoadQuestions(ctx context.Context, sessionID int64, kind domain.ContributionKind) ([]domain.Question, error) {
	rows, err := l.store.ContributionsBySession(ctx, sessionID, kind)
	if err != nil {
		return nil, err
	}
	questions := make([]domain.Question, 0, len(rows))
	for _, row := range rows {
		opts, err := l.store.OptionsByParent(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		q := domain.Question{ID: row.ID, Text: row.Text, Options: make([]domain.Option, 0, len(opts))}
		for _, opt := range opts {
			q.Options = append(q.Options, domain.Option{ID: opt.ID, Text: opt.Text, Correct: opt.Correct})
		}
		questions = append(questions, q)
	}
	return questions, nil
}
