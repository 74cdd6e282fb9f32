package models

// ExperienceLevel classifies how far along a student is in a subject.
type ExperienceLevel string

const (
	ExperienceBeginner     ExperienceLevel = "beginner"
	ExperienceIntermediate ExperienceLevel = "intermediate"
	ExperienceAdvanced     ExperienceLevel = "advanced"
	ExperienceMixed        ExperienceLevel = "mixed"
)

// ValidExperienceLevels lists the accepted experience level values.
var ValidExperienceLevels = []ExperienceLevel{
	ExperienceBeginner,
	ExperienceIntermediate,
	ExperienceAdvanced,
	ExperienceMixed,
}

// NumericLevel maps an experience level onto an ordinal scale used for
// distance comparisons. Unknown values are treated as intermediate.
func (e ExperienceLevel) NumericLevel() int {
	switch e {
	case ExperienceBeginner:
		return 1
	case ExperienceIntermediate:
		return 2
	case ExperienceAdvanced:
		return 3
	default:
		return 2
	}
}

// IsValid reports whether the level is one of the accepted values.
func (e ExperienceLevel) IsValid() bool {
	for _, v := range ValidExperienceLevels {
		if e == v {
			return true
		}
	}
	return false
}

// StudyStyle describes how a student prefers to work during sessions.
type StudyStyle string

const (
	StyleDiscussion     StudyStyle = "discussion"
	StyleQuiet          StudyStyle = "quiet"
	StyleProblemSolving StudyStyle = "problem-solving"
	StyleMixed          StudyStyle = "mixed"
)

// ValidStudyStyles lists the accepted study style values.
var ValidStudyStyles = []StudyStyle{StyleDiscussion, StyleQuiet, StyleProblemSolving, StyleMixed}

// IsValid reports whether the style is one of the accepted values.
func (s StudyStyle) IsValid() bool {
	for _, v := range ValidStudyStyles {
		if s == v {
			return true
		}
	}
	return false
}

// GroupSize is a student's preferred study group size bracket.
type GroupSize string

const (
	GroupSizeSmall  GroupSize = "small"
	GroupSizeMedium GroupSize = "medium"
	GroupSizeLarge  GroupSize = "large"
)

// Midpoint returns the member count at the center of the bracket.
func (g GroupSize) Midpoint() int {
	switch g {
	case GroupSizeSmall:
		return 3
	case GroupSizeLarge:
		return 8
	default:
		return 5
	}
}

// StudyGoal is one of the closed set of goals a student can pursue.
type StudyGoal string

const (
	GoalExamPrep       StudyGoal = "exam-prep"
	GoalAssignmentHelp StudyGoal = "assignment-help"
	GoalConceptReview  StudyGoal = "concept-review"
	GoalProjectWork    StudyGoal = "project-work"
	GoalGeneralStudy   StudyGoal = "general-study"
)

// GroupStatus is the lifecycle state of a study group.
type GroupStatus string

const (
	GroupStatusActive    GroupStatus = "active"
	GroupStatusInactive  GroupStatus = "inactive"
	GroupStatusCompleted GroupStatus = "completed"
	GroupStatusCancelled GroupStatus = "cancelled"
)

// Weekday names a day of the week in the availability grid.
type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

// Weekdays lists all days in calendar order for deterministic iteration.
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// TimeSlot is one of the three blocks a day is divided into.
type TimeSlot string

const (
	SlotMorning   TimeSlot = "morning"
	SlotAfternoon TimeSlot = "afternoon"
	SlotEvening   TimeSlot = "evening"
)

// TimeSlots lists the slots of a day in chronological order.
var TimeSlots = []TimeSlot{SlotMorning, SlotAfternoon, SlotEvening}

// DayAvailability marks which blocks of a single day a student is free.
type DayAvailability struct {
	Morning   bool `json:"morning"`
	Afternoon bool `json:"afternoon"`
	Evening   bool `json:"evening"`
}

// Has reports whether the given slot is free.
func (d DayAvailability) Has(slot TimeSlot) bool {
	switch slot {
	case SlotMorning:
		return d.Morning
	case SlotAfternoon:
		return d.Afternoon
	case SlotEvening:
		return d.Evening
	}
	return false
}

// WeeklyAvailability is a 7-day by 3-slot grid of free time. Missing days
// count as fully unavailable.
type WeeklyAvailability map[Weekday]DayAvailability

// At reports whether the student is free on the given day and slot.
func (w WeeklyAvailability) At(day Weekday, slot TimeSlot) bool {
	return w[day].Has(slot)
}

// SlotCount returns the total number of free slots in the week.
func (w WeeklyAvailability) SlotCount() int {
	n := 0
	for _, day := range Weekdays {
		for _, slot := range TimeSlots {
			if w.At(day, slot) {
				n++
			}
		}
	}
	return n
}

// UserProfile holds the matchmaking-relevant attributes of a student.
type UserProfile struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	University         string             `json:"university,omitempty"`
	Subjects           []string           `json:"subjects"`
	StudyGoals         []StudyGoal        `json:"studyGoals"`
	ExperienceLevel    ExperienceLevel    `json:"experienceLevel"`
	StudyStyle         StudyStyle         `json:"studyStyle"`
	PreferredGroupSize GroupSize          `json:"preferredGroupSize"`
	Availability       WeeklyAvailability `json:"availability"`
	IsActive           bool               `json:"isActive"`
	ProfileCompleted   bool               `json:"profileCompleted"`
}

// IsComplete reports whether the profile carries enough signal to be
// scored: at least one subject, a study style, and an experience level.
func (u *UserProfile) IsComplete() bool {
	return len(u.Subjects) > 0 && u.StudyStyle != "" && u.ExperienceLevel != ""
}

// GroupSchedule is a group's fixed weekly meeting time, when it has one.
type GroupSchedule struct {
	Day  Weekday  `json:"day"`
	Slot TimeSlot `json:"slot"`
}

// GroupProfile holds the matchmaking-relevant attributes of a study group.
type GroupProfile struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Subject         string          `json:"subject"`
	Description     string          `json:"description,omitempty"`
	ExperienceLevel ExperienceLevel `json:"experienceLevel"`
	StudyStyle      StudyStyle      `json:"studyStyle"`
	StudyGoals      []StudyGoal     `json:"studyGoals"`
	Schedule        *GroupSchedule  `json:"schedule,omitempty"`
	Members         []UserProfile   `json:"members,omitempty"`
	MemberCount     int             `json:"memberCount"`
	MaxMembers      int             `json:"maxMembers"`
	Status          GroupStatus     `json:"status"`
}

// HasCapacity reports whether the group can accept another member.
func (g *GroupProfile) HasCapacity() bool {
	return g.MemberCount < g.MaxMembers
}
