package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"aula-live-service/internal/app"
	"aula-live-service/internal/domain"
)

func TestConcurrentSubmissionsConvergeToOneEntry(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	session := createSession(t, store, "123456", domain.ActivityWordCloud)

	variants := []string{"Hola", "hola", "  HOLA  ", "hola ", "HoLa"}
	const rounds = 10

	var wg sync.WaitGroup
	for i := 0; i < rounds; i++ {
		for _, variant := range variants {
			wg.Add(1)
			go func(text string) {
				defer wg.Done()
				if err := engine.SubmitText(ctx, session.PIN, text); err != nil {
					t.Errorf("submit %q: %v", text, err)
				}
			}(variant)
		}
	}
	wg.Wait()

	words, err := store.ContributionsBySession(ctx, session.ID, domain.KindWordCloud)
	if err != nil {
		t.Fatalf("read words: %v", err)
	}
	if len(words) != 1 {
		t.Fatalf("expected exactly one entry, got %d", len(words))
	}
	if want := rounds * len(variants); words[0].Votes != want {
		t.Fatalf("expected counter %d, got %d", want, words[0].Votes)
	}
}

func TestSubmitTextBroadcastsUpdatedSet(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	session := createSession(t, store, "123456", domain.ActivityWordCloud)
	_, out := joinParticipant(t, engine, store, session, "Alice")

	if err := engine.SubmitText(ctx, session.PIN, "ecología"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	payload, ok := out.last(app.EventWordCloudUpdate)
	if !ok {
		t.Fatalf("expected wordcloud-update broadcast")
	}
	set := payload.([]domain.Contribution)
	if len(set) != 1 || set[0].Text != "ecología" || set[0].Votes != 1 {
		t.Fatalf("unexpected set %v", set)
	}
}

func TestSubmitTextRejectsEmpty(t *testing.T) {
	engine, store := newTestEngine(t)
	session := createSession(t, store, "123456", domain.ActivityWordCloud)

	err := engine.SubmitText(context.Background(), session.PIN, "   ")
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCastVoteIncrementsAndBroadcasts(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	session := createSession(t, store, "123456", domain.ActivityRanking)
	_, out := joinParticipant(t, engine, store, session, "Alice")

	sid := session.ID
	idea := domain.Contribution{SessionID: &sid, Kind: domain.KindRanking, Text: "reciclaje"}
	if err := store.CreateContribution(ctx, &idea); err != nil {
		t.Fatalf("create idea: %v", err)
	}

	if err := engine.CastVote(ctx, session.PIN, idea.ID, domain.KindRanking); err != nil {
		t.Fatalf("vote: %v", err)
	}

	payload, ok := out.last(app.EventVoteUpdate)
	if !ok {
		t.Fatalf("expected vote-update broadcast")
	}
	set := payload.([]domain.Contribution)
	if len(set) != 1 || set[0].Votes != 1 {
		t.Fatalf("unexpected set %v", set)
	}
}

func TestCastVoteUnknownTargetProducesNoBroadcast(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	session := createSession(t, store, "123456", domain.ActivityRanking)
	_, out := joinParticipant(t, engine, store, session, "Alice")
	before := len(out.events)

	err := engine.CastVote(ctx, session.PIN, 9999, domain.KindRanking)
	if !errors.Is(err, domain.ErrContributionNotFound) {
		t.Fatalf("expected contribution not found, got %v", err)
	}
	if len(out.events) != before {
		t.Fatalf("expected no broadcast after failed vote, got %v", out.events[before:])
	}
}

func TestCastVoteScopedByKind(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	session := createSession(t, store, "123456", domain.ActivityRanking)

	sid := session.ID
	word := domain.Contribution{SessionID: &sid, Kind: domain.KindWordCloud, Text: "agua"}
	if err := store.CreateContribution(ctx, &word); err != nil {
		t.Fatalf("create word: %v", err)
	}

	// the word exists, but not as a ranking entry
	err := engine.CastVote(ctx, session.PIN, word.ID, domain.KindRanking)
	if !errors.Is(err, domain.ErrContributionNotFound) {
		t.Fatalf("expected kind-scoped lookup to miss, got %v", err)
	}

	if err := engine.CastVote(ctx, session.PIN, word.ID, domain.KindWordCloud); err != nil {
		t.Fatalf("wordcloud vote: %v", err)
	}
}

func TestCastVoteRejectsNonVotableKind(t *testing.T) {
	engine, store := newTestEngine(t)
	session := createSession(t, store, "123456", domain.ActivityRanking)

	err := engine.CastVote(context.Background(), session.PIN, 1, domain.KindOption)
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRankingUnknownRoomIsEmptyNotError(t *testing.T) {
	engine, _ := newTestEngine(t)

	set, err := engine.Ranking(context.Background(), "000000")
	if err != nil {
		t.Fatalf("expected empty result, got error %v", err)
	}
	if len(set) != 0 {
		t.Fatalf("expected empty set, got %v", set)
	}
}

func TestRankingReturnsAllKinds(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	session := createSession(t, store, "123456", domain.ActivityRanking)

	sid := session.ID
	for _, c := range []domain.Contribution{
		{SessionID: &sid, Kind: domain.KindRanking, Text: "idea"},
		{SessionID: &sid, Kind: domain.KindWordCloud, Text: "palabra"},
	} {
		c := c
		if err := store.CreateContribution(ctx, &c); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	set, err := engine.Ranking(ctx, session.PIN)
	if err != nil {
		t.Fatalf("ranking: %v", err)
	}
	if len(set) != 2 {
		t.Fatalf("expected both kinds in ranking snapshot, got %v", set)
	}
}
