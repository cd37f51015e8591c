// Package sequencer computes the presentation order of questions and
// options for an attempt. All permutations are seeded from the attempt's
// own identifier, never from the clock, so re-fetching an in-progress
// attempt always reproduces the same order.
package sequencer

import (
	"encoding/binary"
	"hash/fnv"
	"math/rand"

	"github.com/coursekit/quiz-engine/internal/models"
)

// QuestionOrder returns the order in which question IDs are presented for
// the attempt: the given order when shuffle is false, a seeded
// Fisher-Yates permutation otherwise.
func QuestionOrder(attemptID uint, questionIDs []uint, shuffle bool) []uint {
	ordered := make([]uint, len(questionIDs))
	copy(ordered, questionIDs)

	if !shuffle {
		return ordered
	}

	r := rand.New(rand.NewSource(questionSeed(attemptID)))
	r.Shuffle(len(ordered), func(i, j int) {
		ordered[i], ordered[j] = ordered[j], ordered[i]
	})

	return ordered
}

// OptionOrder returns the per-attempt presentation order of a multiple
// choice question's option IDs. The seed mixes the attempt and question
// identifiers so questions within one attempt do not share a shuffle
// pattern.
func OptionOrder(attemptID, questionID uint, optionIDs []uint) []uint {
	ordered := make([]uint, len(optionIDs))
	copy(ordered, optionIDs)

	r := rand.New(rand.NewSource(optionSeed(attemptID, questionID)))
	r.Shuffle(len(ordered), func(i, j int) {
		ordered[i], ordered[j] = ordered[j], ordered[i]
	})

	return ordered
}

// BuildSnapshot freezes the question order and, for multiple choice
// questions, the option order for an attempt. True/false options keep
// their authored order so the same label always comes first.
func BuildSnapshot(attemptID uint, questions []*models.Question, shuffleQuestions bool) models.AttemptSnapshot {
	questionIDs := make([]uint, len(questions))
	byID := make(map[uint]*models.Question, len(questions))
	for i, q := range questions {
		questionIDs[i] = q.ID
		byID[q.ID] = q
	}

	snap := models.AttemptSnapshot{
		QuestionIDs: QuestionOrder(attemptID, questionIDs, shuffleQuestions),
		OptionOrder: make(map[uint][]uint),
	}

	for _, id := range snap.QuestionIDs {
		q := byID[id]
		if !q.Type.HasOptions() {
			continue
		}

		optionIDs := make([]uint, len(q.Options))
		for i, opt := range q.Options {
			optionIDs[i] = opt.ID
		}

		if q.Type == models.MultipleChoice {
			snap.OptionOrder[id] = OptionOrder(attemptID, id, optionIDs)
		} else {
			snap.OptionOrder[id] = optionIDs
		}
	}

	return snap
}

func questionSeed(attemptID uint) int64 {
	return int64(attemptID)
}

func optionSeed(attemptID, questionID uint) int64 {
	h := fnv.New64a()
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], uint64(attemptID))
	binary.LittleEndian.PutUint64(buf[8:], uint64(questionID))
	h.Write(buf[:])
	return int64(h.Sum64())
}
