package scorer

import (
	"fmt"
	"strings"

	"studymatch-workers/internal/models"
)

const maxReasons = 3

// buildReasons turns a factor breakdown into at most three human-readable
// explanations, in a fixed priority order. group is nil for user targets.
func buildReasons(score int, f models.MatchFactors, group *models.GroupProfile) []string {
	reasons := make([]string, 0, maxReasons)

	add := func(r string) bool {
		if len(reasons) < maxReasons {
			reasons = append(reasons, r)
		}
		return len(reasons) < maxReasons
	}

	if len(f.SubjectMatch.CommonSubjects) > 0 {
		add(fmt.Sprintf("You share an interest in %s", strings.Join(f.SubjectMatch.CommonSubjects, ", ")))
	}
	if len(f.ScheduleMatch.CommonTimeSlots) >= 2 {
		add(fmt.Sprintf("Your schedules overlap in %d time slots", len(f.ScheduleMatch.CommonTimeSlots)))
	}
	if f.ExperienceMatch.Score >= 85 {
		add("Compatible experience levels")
	}
	if f.StudyStyleMatch.Score >= 85 {
		add("Matching study styles")
	}
	if group != nil {
		add(fmt.Sprintf("Joining would bring %s to %d of %d members", group.Name, group.MemberCount+1, group.MaxMembers))
	}
	switch {
	case score >= 85:
		add("Excellent compatibility for productive study sessions")
	case score >= 70:
		add("Good potential for an effective study partnership")
	}

	return reasons
}
