package genai

import (
	"context"
	"fmt"
	"strings"

	"aula-live-service/internal/app"
	"aula-live-service/internal/domain"
)

// Ingestor turns generated text into contribution records: question+option
// trees for quizzes, flat idea lists for word-cloud/ranking/subtopics.
type Ingestor struct {
	store  app.Store
	client Client
	cache  app.QuestionSource
}

func NewIngestor(store app.Store, client Client, cache app.QuestionSource) *Ingestor {
	return &Ingestor{store: store, client: client, cache: cache}
}

const questionSystemPrompt = "Eres un asistente que genera preguntas cerradas educativas."

// GenerateQuestions produces and persists quiz questions for the subtopic.
// kind selects single-answer (exactly one correct option) or multi-answer
// (one or more correct options). When sessionID is non-nil the questions are
// attached to that session and its cached question set is invalidated.
func (g *Ingestor) GenerateQuestions(ctx context.Context, subtopic string, kind domain.ContributionKind, sessionID *int64) ([]domain.Question, error) {
	if strings.TrimSpace(subtopic) == "" {
		return nil, domain.Validationf("empty subtopic")
	}
	if !kind.QuestionKind() {
		return nil, domain.Validationf("kind %q is not a quiz kind", kind)
	}

	raw, err := g.client.Generate(ctx, questionSystemPrompt, questionPrompt(subtopic, kind))
	if err != nil {
		return nil, err
	}
	parsed, err := ParseQuestions(raw)
	if err != nil {
		return nil, fmt.Errorf("parse generated questions: %w", err)
	}

	questions := make([]domain.Question, 0, len(parsed))
	for _, pq := range parsed {
		contribution := domain.Contribution{SessionID: sessionID, Kind: kind, Text: pq.Text}
		if err := g.store.CreateContribution(ctx, &contribution); err != nil {
			return nil, err
		}

		question := domain.Question{ID: contribution.ID, Text: contribution.Text}
		for _, po := range pq.Options {
			option := domain.Contribution{
				SessionID: sessionID,
				ParentID:  &contribution.ID,
				Kind:      domain.KindOption,
				Text:      po.Text,
				Correct:   po.Correct,
			}
			if err := g.store.CreateContribution(ctx, &option); err != nil {
				return nil, err
			}
			question.Options = append(question.Options, domain.Option{ID: option.ID, Text: option.Text, Correct: option.Correct})
		}
		questions = append(questions, question)
	}

	if sessionID != nil {
		if err := g.cache.Invalidate(ctx, *sessionID, kind); err != nil {
			return nil, err
		}
	}
	return questions, nil
}

// GenerateIdeas produces and persists a flat idea list of the given kind
// (wordcloud or ranking), unattached to any session until assignment.
func (g *Ingestor) GenerateIdeas(ctx context.Context, subtopic string, kind domain.ContributionKind) ([]domain.Contribution, error) {
	if strings.TrimSpace(subtopic) == "" {
		return nil, domain.Validationf("empty subtopic")
	}
	if !kind.VotableKind() {
		return nil, domain.Validationf("kind %q is not an idea kind", kind)
	}

	raw, err := g.client.Generate(ctx, "Eres un asistente que genera ideas educativas.", ideaPrompt(subtopic, kind))
	if err != nil {
		return nil, err
	}
	return g.persistLines(ctx, raw, kind)
}

// GenerateSubtopics produces and persists subtopic suggestions for a topic.
func (g *Ingestor) GenerateSubtopics(ctx context.Context, topic string) ([]domain.Contribution, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, domain.Validationf("empty topic")
	}

	raw, err := g.client.Generate(ctx, "Eres un asistente que genera subtemas.", subtopicPrompt(topic))
	if err != nil {
		return nil, err
	}
	return g.persistLines(ctx, raw, domain.KindSubtopic)
}

func (g *Ingestor) persistLines(ctx context.Context, raw string, kind domain.ContributionKind) ([]domain.Contribution, error) {
	lines := ParseLines(raw)
	if len(lines) == 0 {
		return nil, ErrEmptyCompletion
	}

	contributions := make([]domain.Contribution, 0, len(lines))
	for _, line := range lines {
		c := domain.Contribution{Kind: kind, Text: line}
		if err := g.store.CreateContribution(ctx, &c); err != nil {
			return nil, err
		}
		contributions = append(contributions, c)
	}
	return contributions, nil
}

func questionPrompt(subtopic string, kind domain.ContributionKind) string {
	if kind == domain.KindMultiQuestion {
		return fmt.Sprintf(`Genera 3 preguntas cerradas en español basadas en el subtema: %q.
Cada pregunta debe incluir 3 o más opciones de respuesta, con algunas de ellas correctas.
Las respuestas correctas deben estar marcadas con "(Correcta)" al final de la opción.
Formato:
Pregunta 1: Texto de la pregunta
a) Opción 1
b) Opción 2 (Correcta)
c) Opción 3 (Correcta)
d) Opción 4`, subtopic)
	}
	return fmt.Sprintf(`Genera 3 preguntas cerradas en español basadas en el subtema: %q.
Cada pregunta debe incluir 3 opciones de respuesta, con solo una opción correcta.
Formato:
Pregunta 1: Texto de la pregunta
a) Opción 1
b) Opción 2 (Correcta)
c) Opción 3`, subtopic)
}

func ideaPrompt(subtopic string, kind domain.ContributionKind) string {
	if kind == domain.KindWordCloud {
		return fmt.Sprintf(`Genera 10 palabras clave (no más de 2 palabras por idea) en español relacionadas con el subtema: %q.
Las palabras deben ser claras, relacionadas con el subtema, y adecuadas para un entorno educativo.
Una por línea, sin numeración ni prefijos.`, subtopic)
	}
	return fmt.Sprintf(`Genera 5 ideas (no más de 10 palabras) en español basadas en el subtema: %q.
Las ideas deben ser claras, relacionadas con el subtema, y adecuadas para un entorno educativo.
Una por línea, sin numeración ni prefijos.`, subtopic)
}

func subtopicPrompt(topic string) string {
	return fmt.Sprintf(`Genera una lista de 7 subtemas (no más de 10 palabras) en español basados en el tema: %q.
Los subtemas deben ser claros, relevantes y relacionados con el tema.
Uno por línea, sin numeración ni prefijos.`, topic)
}
