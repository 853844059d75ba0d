package progression

import "math"

// The level curve: level = floor(sqrt(experience/100)) + 1, so reaching
// level L takes (L-1)^2 * 100 total experience. ExperienceForLevel(L) is the
// boundary at which level L+1 begins; crossing it is exact:
// LevelForExperience(ExperienceForLevel(L)) == L+1 for all L >= 1.

// ExperienceForLevel returns the total experience threshold of a level.
func ExperienceForLevel(level int) int {
	if level < 0 {
		return 0
	}
	return level * level * 100
}

// LevelForExperience derives the level for an experience total.
func LevelForExperience(experience int) int {
	if experience < 0 {
		return 1
	}
	level := int(math.Floor(math.Sqrt(float64(experience)/100))) + 1
	if level < 1 {
		return 1
	}
	return level
}
