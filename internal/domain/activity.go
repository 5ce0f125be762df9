package domain

import "fmt"

// ActivityType is the closed set of dynamics a presenter can run. The wire
// values match what clients send in change-dynamic and slide-update events.
type ActivityType string

const (
	ActivityIdle      ActivityType = "idle"
	ActivityWordCloud ActivityType = "wordcloud"
	ActivityRanking   ActivityType = "ranking"
	// ActivitySingleQuiz is the single-answer quiz dynamic.
	ActivitySingleQuiz ActivityType = "close-question"
	// ActivityMultiQuiz is the multi-answer quiz dynamic.
	ActivityMultiQuiz ActivityType = "multiple-choice"
)

// ParseActivityType rejects unknown dynamic names instead of storing them as
// free-form strings.
func ParseActivityType(raw string) (ActivityType, error) {
	switch ActivityType(raw) {
	case ActivityIdle, ActivityWordCloud, ActivityRanking, ActivitySingleQuiz, ActivityMultiQuiz:
		return ActivityType(raw), nil
	}
	return "", Validationf("unknown activity type %q", raw)
}

// ContributionKind distinguishes the record shapes stored in the contributions
// table. Questions reuse the activity type name of the quiz they belong to;
// options always hang off a question via ParentID.
type ContributionKind string

const (
	KindWordCloud      ContributionKind = "wordcloud"
	KindRanking        ContributionKind = "ranking"
	KindSingleQuestion ContributionKind = "close-question"
	KindMultiQuestion  ContributionKind = "multiple-choice"
	KindOption         ContributionKind = "option"
	KindSubtopic       ContributionKind = "subtopic"
)

// ParseContributionKind rejects unknown kinds.
func ParseContributionKind(raw string) (ContributionKind, error) {
	switch ContributionKind(raw) {
	case KindWordCloud, KindRanking, KindSingleQuestion, KindMultiQuestion, KindOption, KindSubtopic:
		return ContributionKind(raw), nil
	}
	return "", Validationf("unknown contribution kind %q", raw)
}

// QuestionKind reports whether kind identifies a quiz question record.
func (k ContributionKind) QuestionKind() bool {
	return k == KindSingleQuestion || k == KindMultiQuestion
}

// VotableKind reports whether kind accepts votes from participants.
func (k ContributionKind) VotableKind() bool {
	return k == KindWordCloud || k == KindRanking
}

func (k ContributionKind) String() string { return string(k) }

// UpdateEvent is the room event name carrying dynamic data pushes for the
// given activity, e.g. "update-ranking".
func (a ActivityType) UpdateEvent() string {
	return fmt.Sprintf("update-%s", string(a))
}
