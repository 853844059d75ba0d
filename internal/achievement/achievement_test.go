package achievement

import (
	"testing"
	"time"
)

func TestParseCriteria(t *testing.T) {
	cases := []struct {
		name       string
		raw        string
		wantType   CriteriaType
		wantTarget int
	}{
		{"min count", `{"type":"collection_count","minCount":10}`, CriteriaCollectionCount, 10},
		{"min wins", `{"type":"debate_wins","minWins":5}`, CriteriaDebateWins, 5},
		{"min days", `{"type":"daily_streak","minDays":7}`, CriteriaDailyStreak, 7},
		{"max time", `{"type":"lesson_speedrun","maxTime":120}`, CriteriaLessonSpeedrun, 120},
		{"no threshold defaults to one", `{"type":"perfect_score"}`, CriteriaPerfectScore, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := ParseCriteria([]byte(tc.raw))
			if err != nil {
				t.Fatalf("failed to parse: %v", err)
			}
			if c.Type != tc.wantType {
				t.Errorf("type = %s, want %s", c.Type, tc.wantType)
			}
			if got := c.Target(); got != tc.wantTarget {
				t.Errorf("target = %d, want %d", got, tc.wantTarget)
			}
		})
	}
}

func TestParseCriteriaEmpty(t *testing.T) {
	c, err := ParseCriteria(nil)
	if err != nil {
		t.Fatalf("nil criteria should parse: %v", err)
	}
	if c.Target() != 1 {
		t.Errorf("empty criteria target = %d, want 1", c.Target())
	}
}

func TestParseCriteriaMalformed(t *testing.T) {
	if _, err := ParseCriteria([]byte(`{not json`)); err == nil {
		t.Error("expected error for malformed criteria")
	}
}

func TestProgressPercent(t *testing.T) {
	cases := []struct {
		current, target int
		want            float64
	}{
		{0, 10, 0},
		{5, 10, 50},
		{10, 10, 100},
		{25, 10, 100}, // capped
		{3, 0, 0},     // degenerate target
	}
	for _, tc := range cases {
		p := Progress{CurrentValue: tc.current, TargetValue: tc.target}
		if got := p.Percent(); got != tc.want {
			t.Errorf("Percent(%d/%d) = %v, want %v", tc.current, tc.target, got, tc.want)
		}
	}
}

func TestProgressCompletedIsMonotonic(t *testing.T) {
	now := time.Now()
	p := Progress{Completed: true, UnlockedAt: &now, CurrentValue: 10, TargetValue: 10}
	if p.Percent() != 100 {
		t.Errorf("completed progress percent = %v", p.Percent())
	}
}
