package attempt

import (
	"math/rand"

	"quizhub/internal/quiz"
)

// Question and option permutations use the process-global source, which is
// randomly seeded: every attempt gets its own draw and no ordering can be
// replayed across attempts.

func shuffleQuestions(questions []quiz.Question) []quiz.Question {
	out := make([]quiz.Question, len(questions))
	copy(out, questions)
	rand.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

func shuffleOptions(options []quiz.Option) []quiz.Option {
	out := make([]quiz.Option, len(options))
	copy(out, options)
	rand.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}
