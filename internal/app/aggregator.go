package app

import (
	"context"
	"strings"

	"aula-live-service/internal/domain"
)

// SubmitText records one word-cloud submission. Text matching is
// case-insensitive and whitespace-trimmed: a repeated word increments the
// existing entry's counter instead of creating a duplicate row, and the
// find-or-create is pushed down to the store as a single atomic primitive so
// concurrent equal submissions never race into two rows.
func (e *Engine) SubmitText(ctx context.Context, pin, raw string) error {
	text := strings.TrimSpace(raw)
	if text == "" {
		return domain.Validationf("empty submission")
	}

	session, err := e.store.SessionByPIN(ctx, pin)
	if err != nil {
		return err
	}
	if _, err := e.store.UpsertWordEntry(ctx, session.ID, text); err != nil {
		return err
	}

	words, err := e.store.ContributionsBySession(ctx, session.ID, domain.KindWordCloud)
	if err != nil {
		return err
	}
	e.broker.Broadcast(pin, EventWordCloudUpdate, words)
	return nil
}

// CastVote bumps the counter of one contribution. kind selects the dynamic
// being voted on (wordcloud or ranking) and scopes the target lookup; a miss
// on room or target is NotFound and produces no broadcast. Votes are not
// deduplicated by voter.
func (e *Engine) CastVote(ctx context.Context, pin string, targetID int64, kind domain.ContributionKind) error {
	if !kind.VotableKind() {
		return domain.Validationf("kind %q does not accept votes", kind)
	}

	session, err := e.store.SessionByPIN(ctx, pin)
	if err != nil {
		return err
	}
	if _, err := e.store.IncrementVotes(ctx, targetID, session.ID, kind); err != nil {
		return err
	}

	set, err := e.store.ContributionsBySession(ctx, session.ID, kind)
	if err != nil {
		return err
	}
	event := EventVoteUpdate
	if kind == domain.KindWordCloud {
		event = EventWordCloudUpdate
	}
	e.broker.Broadcast(pin, event, set)
	return nil
}

// Ranking returns every contribution in the room for presenter-side display.
// An unknown PIN yields an empty set, not an error.
func (e *Engine) Ranking(ctx context.Context, pin string) ([]domain.Contribution, error) {
	session, err := e.store.SessionByPIN(ctx, pin)
	if err != nil {
		if domain.IsNotFound(err) {
			return []domain.Contribution{}, nil
		}
		return nil, err
	}
	return e.store.ContributionsBySession(ctx, session.ID)
}

// Ideas returns the room's contributions of one votable kind.
func (e *Engine) Ideas(ctx context.Context, pin string, kind domain.ContributionKind) ([]domain.Contribution, error) {
	if !kind.VotableKind() {
		return nil, domain.Validationf("kind %q has no idea set", kind)
	}
	session, err := e.store.SessionByPIN(ctx, pin)
	if err != nil {
		return nil, err
	}
	return e.store.ContributionsBySession(ctx, session.ID, kind)
}
