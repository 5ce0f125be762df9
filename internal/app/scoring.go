package app

import (
	"context"
	"sort"
	"strings"

	"aula-live-service/internal/domain"
)

// Questions returns the room's questions of the given quiz kind with their
// options, served through the question cache. No questions is NotFound, per
// the request-questions contract.
func (e *Engine) Questions(ctx context.Context, pin string, kind domain.ContributionKind) ([]domain.Question, error) {
	if !kind.QuestionKind() {
		return nil, domain.Validationf("kind %q is not a quiz kind", kind)
	}
	session, err := e.store.SessionByPIN(ctx, pin)
	if err != nil {
		return nil, err
	}
	questions, err := e.questions.Questions(ctx, session.ID, kind)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, domain.ErrQuestionNotFound
	}
	return questions, nil
}

// Feedback markers for entries that cannot be resolved. A missing question or
// option fails that entry only, never the whole submission.
const (
	feedbackQuestionNotFound = "question not found"
	feedbackInvalidOption    = "invalid option"
)

// ScoreSingle scores a single-answer quiz submission: one selected option per
// question, one point per correct answer. participantID is kept for
// traceability and plays no part in scoring.
//
// The CorrectAnswer field deliberately reproduces the legacy behavior of
// echoing the selected option's text even when the selection was wrong.
func (e *Engine) ScoreSingle(ctx context.Context, pin string, participantID int64, answers map[int64]int64) (domain.ScoreResult, error) {
	_ = participantID

	session, err := e.store.SessionByPIN(ctx, pin)
	if err != nil {
		return domain.ScoreResult{}, err
	}
	questions, err := e.questions.Questions(ctx, session.ID, domain.KindSingleQuestion)
	if err != nil {
		return domain.ScoreResult{}, err
	}
	byID := indexQuestions(questions)

	result := domain.ScoreResult{Feedback: make([]domain.AnswerFeedback, 0, len(answers))}
	for _, questionID := range sortedKeys(answers) {
		question, ok := byID[questionID]
		if !ok {
			result.Feedback = append(result.Feedback, domain.AnswerFeedback{
				QuestionID:    questionID,
				CorrectAnswer: feedbackQuestionNotFound,
			})
			continue
		}

		selected, ok := findOption(question, answers[questionID])
		if !ok {
			result.Feedback = append(result.Feedback, domain.AnswerFeedback{
				QuestionID:    questionID,
				CorrectAnswer: feedbackInvalidOption,
			})
			continue
		}

		if selected.Correct {
			result.Score++
		}
		result.Feedback = append(result.Feedback, domain.AnswerFeedback{
			QuestionID:    questionID,
			Correct:       selected.Correct,
			CorrectAnswer: selected.Text,
		})
	}
	return result, nil
}

// ScoreMulti scores a multi-answer quiz submission. Per question, in order:
// any incorrect selection voids the question; selecting every correct option
// earns 1; exactly one of two correct options earns 0.5; anything else earns
// 0. The 0.5 rule is defined only for questions with exactly two correct
// options, so partial selections on questions with three or more correct
// options fall through to 0. That gap is inherited behavior; do not
// generalize the branch.
func (e *Engine) ScoreMulti(ctx context.Context, pin string, participantID int64, answers map[int64][]int64) (domain.MultiScoreResult, error) {
	_ = participantID

	session, err := e.store.SessionByPIN(ctx, pin)
	if err != nil {
		return domain.MultiScoreResult{}, err
	}
	questions, err := e.questions.Questions(ctx, session.ID, domain.KindMultiQuestion)
	if err != nil {
		return domain.MultiScoreResult{}, err
	}
	byID := indexQuestions(questions)

	result := domain.MultiScoreResult{Feedback: make([]domain.MultiAnswerFeedback, 0, len(answers))}
	for _, questionID := range sortedKeys(answers) {
		question, ok := byID[questionID]
		if !ok {
			result.Feedback = append(result.Feedback, domain.MultiAnswerFeedback{
				QuestionID:    questionID,
				CorrectAnswer: feedbackQuestionNotFound,
			})
			continue
		}

		correctIDs := make(map[int64]struct{})
		correctTexts := make([]string, 0)
		for _, option := range question.Options {
			if option.Correct {
				correctIDs[option.ID] = struct{}{}
				correctTexts = append(correctTexts, option.Text)
			}
		}

		correctCount, incorrectCount := 0, 0
		for _, selectedID := range answers[questionID] {
			if _, ok := correctIDs[selectedID]; ok {
				correctCount++
			} else {
				incorrectCount++
			}
		}

		if incorrectCount == 0 {
			if correctCount == len(correctIDs) {
				result.Score += 1
			} else if correctCount == 1 && len(correctIDs) == 2 {
				result.Score += 0.5
			}
		}

		result.Feedback = append(result.Feedback, domain.MultiAnswerFeedback{
			QuestionID:     questionID,
			CorrectCount:   correctCount,
			IncorrectCount: incorrectCount,
			CorrectAnswer:  strings.Join(correctTexts, ", "),
		})
	}
	return result, nil
}

func indexQuestions(questions []domain.Question) map[int64]domain.Question {
	byID := make(map[int64]domain.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	return byID
}

func findOption(q domain.Question, optionID int64) (domain.Option, bool) {
	for _, option := range q.Options {
		if option.ID == optionID {
			return option, true
		}
	}
	return domain.Option{}, false
}

// sortedKeys keeps feedback order deterministic regardless of map iteration.
func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
