package engine

import "math/rand"

// TimeoutMessage is shown when the countdown runs out.
const TimeoutMessage = "Time's up! Let's try the next one."

var correctMessages = []string{
	"Great job!",
	"Excellent!",
	"Perfect!",
	"Well done!",
	"Amazing!",
	"You got it!",
	"Fantastic!",
	"Outstanding!",
}

var incorrectMessages = []string{
	"Good try! Keep going!",
	"Nice effort! You're learning!",
	"Keep it up!",
	"You're doing great!",
	"Almost there!",
}

func feedbackMessage(rnd *rand.Rand, timedOut, correct bool) string {
	switch {
	case timedOut:
		return TimeoutMessage
	case correct:
		return correctMessages[rnd.Intn(len(correctMessages))]
	default:
		return incorrectMessages[rnd.Intn(len(incorrectMessages))]
	}
}
