package utils

// Quiz experience formula: a flat base for finishing, a bonus scaling earned
// points to 0-50 XP, and fixed bonuses for passing and for a perfect score.
const (
	quizBaseExperience = 20
	quizPointsScale    = 50
	quizPerfectBonus   = 30
	quizPassBonus      = 10
)

// QuizExperienceBreakdown itemizes how a quiz XP award was computed.
type QuizExperienceBreakdown struct {
	Base         int `json:"base"`
	PointsBonus  int `json:"points_bonus"`
	PerfectBonus int `json:"perfect_bonus"`
	PassBonus    int `json:"pass_bonus"`
}

func (b QuizExperienceBreakdown) Total() int {
	return b.Base + b.PointsBonus + b.PerfectBonus + b.PassBonus
}

// QuizExperience computes the experience award for a completed quiz from the
// external scorer's output.
func QuizExperience(earnedPoints, totalPoints int, passed, perfect bool) QuizExperienceBreakdown {
	b := QuizExperienceBreakdown{Base: quizBaseExperience}

	denom := totalPoints
	if denom < 1 {
		denom = 1
	}
	b.PointsBonus = earnedPoints * quizPointsScale / denom

	if perfect {
		b.PerfectBonus = quizPerfectBonus
	}
	if passed {
		b.PassBonus = quizPassBonus
	}
	return b
}
