package genai_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"aula-live-service/internal/app"
	"aula-live-service/internal/domain"
	"aula-live-service/internal/genai"
	"aula-live-service/internal/infra/memory"
)

type stubClient struct {
	text string
	err  error
}

func (c *stubClient) Generate(_ context.Context, _, _ string) (string, error) {
	return c.text, c.err
}

func newIngestor(t *testing.T, client genai.Client) (*genai.Ingestor, *memory.Store, app.QuestionSource) {
	t.Helper()
	store := memory.NewStore()
	cache := memory.NewQuestionCache(app.NewStoreQuestionLoader(store), time.Minute)
	return genai.NewIngestor(store, client, cache), store, cache
}

func TestGenerateQuestionsPersistsTreeAndInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	client := &stubClient{text: "Pregunta: ¿2+2?\na) 3\nb) 4 (Correcta)\nc) 5"}
	ingestor, store, cache := newIngestor(t, client)

	session := domain.Session{PIN: "123456", Activity: domain.ActivitySingleQuiz, HostUserID: 1}
	if err := store.CreateSession(ctx, &session); err != nil {
		t.Fatalf("create session: %v", err)
	}

	// warm the cache with the empty set so staleness would be visible
	if _, err := cache.Questions(ctx, session.ID, domain.KindSingleQuestion); err != nil {
		t.Fatalf("warm cache: %v", err)
	}

	questions, err := ingestor.GenerateQuestions(ctx, "aritmética", domain.KindSingleQuestion, &session.ID)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(questions) != 1 || len(questions[0].Options) != 3 {
		t.Fatalf("unexpected questions %+v", questions)
	}

	stored, err := store.ContributionsBySession(ctx, session.ID, domain.KindSingleQuestion)
	if err != nil {
		t.Fatalf("read questions: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected 1 stored question, got %d", len(stored))
	}
	options, err := store.OptionsByParent(ctx, stored[0].ID)
	if err != nil {
		t.Fatalf("read options: %v", err)
	}
	if len(options) != 3 {
		t.Fatalf("expected 3 stored options, got %d", len(options))
	}
	correct := 0
	for _, o := range options {
		if o.Correct {
			correct++
		}
	}
	if correct != 1 {
		t.Fatalf("expected exactly one correct option, got %d", correct)
	}

	// cache must serve the fresh set, not the warmed empty one
	cached, err := cache.Questions(ctx, session.ID, domain.KindSingleQuestion)
	if err != nil {
		t.Fatalf("cached questions: %v", err)
	}
	if len(cached) != 1 {
		t.Fatalf("expected cache invalidated after ingestion, got %d questions", len(cached))
	}
}

func TestGenerateQuestionsRejectsEmptySubtopic(t *testing.T) {
	ingestor, _, _ := newIngestor(t, &stubClient{text: "x"})
	if _, err := ingestor.GenerateQuestions(context.Background(), "  ", domain.KindSingleQuestion, nil); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGenerateQuestionsEmptyCompletionIsHardFailure(t *testing.T) {
	ingestor, _, _ := newIngestor(t, &stubClient{err: genai.ErrEmptyCompletion})
	_, err := ingestor.GenerateQuestions(context.Background(), "tema", domain.KindSingleQuestion, nil)
	if !errors.Is(err, genai.ErrEmptyCompletion) {
		t.Fatalf("expected empty completion error, got %v", err)
	}
}

func TestGenerateIdeasPersistsUnassignedLines(t *testing.T) {
	ctx := context.Background()
	ingestor, store, _ := newIngestor(t, &stubClient{text: "reciclaje\nenergía solar\n\ncompostaje"})

	ideas, err := ingestor.GenerateIdeas(ctx, "ecología", domain.KindRanking)
	if err != nil {
		t.Fatalf("generate ideas: %v", err)
	}
	if len(ideas) != 3 {
		t.Fatalf("expected 3 ideas, got %d", len(ideas))
	}
	for _, idea := range ideas {
		if idea.SessionID != nil {
			t.Fatalf("expected unassigned idea, got session %d", *idea.SessionID)
		}
		if idea.Kind != domain.KindRanking {
			t.Fatalf("expected ranking kind, got %s", idea.Kind)
		}
	}

	// unassigned rows are picked up on the next session creation
	session := domain.Session{PIN: "123456", Activity: domain.ActivityRanking, HostUserID: 1}
	if err := store.CreateSession(ctx, &session); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := store.AssignOrphans(ctx, session.ID); err != nil {
		t.Fatalf("assign orphans: %v", err)
	}
	assigned, err := store.ContributionsBySession(ctx, session.ID, domain.KindRanking)
	if err != nil {
		t.Fatalf("read assigned: %v", err)
	}
	if len(assigned) != 3 {
		t.Fatalf("expected 3 assigned ideas, got %d", len(assigned))
	}
}

func TestGenerateSubtopics(t *testing.T) {
	ingestor, _, _ := newIngestor(t, &stubClient{text: "uno\ndos"})
	subtopics, err := ingestor.GenerateSubtopics(context.Background(), "historia")
	if err != nil {
		t.Fatalf("generate subtopics: %v", err)
	}
	if len(subtopics) != 2 || subtopics[0].Kind != domain.KindSubtopic {
		t.Fatalf("unexpected subtopics %+v", subtopics)
	}
}
