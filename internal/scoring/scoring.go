// Package scoring evaluates submitted answers against the answer key.
// Everything here is a pure function over the attempt's frozen question
// set; persistence and lifecycle live in the services layer.
package scoring

import (
	"math"
	"strings"

	"github.com/coursekit/quiz-engine/internal/models"
)

// QuestionResult is the scoring outcome for a single question of an
// attempt. IsCorrect and PointsEarned stay nil for essays awaiting a
// manual grade.
type QuestionResult struct {
	QuestionID   uint
	IsCorrect    *bool
	PointsEarned *int
	Graded       bool
}

// Result is the aggregated outcome of one scoring pass.
//
// While any essay is ungraded the score is provisional: computed over the
// graded subset only, with FullyGraded false and Passed nil. Once every
// question has points assigned, Passed = Score >= passingScore.
type Result struct {
	TotalPoints  int
	EarnedPoints int
	Score        *int
	Passed       *bool
	FullyGraded  bool
	PerQuestion  []QuestionResult
}

// Grade scores an attempt: every question in the frozen set is evaluated
// against its answer record (nil record = unanswered = 0 points, never an
// error). Existing manual grades on essay records are folded in as-is.
func Grade(questions []*models.Question, answers map[uint]*models.AnswerRecord, passingScore int) *Result {
	result := &Result{
		FullyGraded: true,
		PerQuestion: make([]QuestionResult, 0, len(questions)),
	}

	gradedPoints := 0
	for _, q := range questions {
		result.TotalPoints += q.Points

		rec := answers[q.ID]
		qr := QuestionResult{QuestionID: q.ID}

		if q.Type == models.Essay {
			// Manual grades are supplied externally; keep whatever has
			// been recorded so far.
			if rec != nil && rec.Graded() {
				qr.IsCorrect = rec.IsCorrect
				qr.PointsEarned = rec.PointsEarned
				qr.Graded = true
			} else {
				result.FullyGraded = false
			}
		} else {
			correct, earned := Evaluate(q, rec)
			qr.IsCorrect = &correct
			qr.PointsEarned = &earned
			qr.Graded = true
		}

		if qr.Graded {
			gradedPoints += q.Points
			result.EarnedPoints += *qr.PointsEarned
		}

		result.PerQuestion = append(result.PerQuestion, qr)
	}

	// A provisional score is computed over the graded subset only, so an
	// ungraded essay does not drag the percentage down.
	denominator := result.TotalPoints
	if !result.FullyGraded {
		denominator = gradedPoints
	}

	if denominator > 0 {
		score := RoundHalfUp(100 * float64(result.EarnedPoints) / float64(denominator))
		result.Score = &score

		if result.FullyGraded {
			passed := score >= passingScore
			result.Passed = &passed
		}
	}

	return result
}

// Evaluate scores one auto-gradable question. Unanswered questions score
// zero. Essays must not be passed here.
func Evaluate(q *models.Question, rec *models.AnswerRecord) (isCorrect bool, pointsEarned int) {
	switch q.Type {
	case models.MultipleChoice, models.TrueFalse:
		if rec == nil || rec.SelectedOptionID == nil {
			return false, 0
		}
		correct := q.CorrectOption()
		if correct != nil && *rec.SelectedOptionID == correct.ID {
			return true, q.Points
		}
		return false, 0

	case models.ShortAnswer:
		if rec == nil || rec.AnswerText == nil {
			return false, 0
		}
		accepted, err := q.AcceptedAnswerList()
		if err != nil {
			return false, 0
		}
		if MatchShortAnswer(accepted, *rec.AnswerText) {
			return true, q.Points
		}
		return false, 0
	}

	return false, 0
}

// MatchShortAnswer reports whether the submitted text matches any
// accepted answer, compared case-insensitively after trimming whitespace.
func MatchShortAnswer(accepted []string, text string) bool {
	submitted := strings.TrimSpace(text)
	if submitted == "" {
		return false
	}

	for _, answer := range accepted {
		if strings.EqualFold(strings.TrimSpace(answer), submitted) {
			return true
		}
	}
	return false
}

// RoundHalfUp rounds to the nearest integer with ties away from zero's
// lower neighbor (0.5 rounds up).
func RoundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}
