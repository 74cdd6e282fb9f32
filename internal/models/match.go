package models

import "time"

// TargetType discriminates what kind of entity a match candidate points at.
type TargetType string

const (
	TargetUser  TargetType = "user"
	TargetGroup TargetType = "group"
)

// SubjectFactor is the subject-overlap component of a compatibility score.
type SubjectFactor struct {
	Score          int      `json:"score"`
	Weight         float64  `json:"weight"`
	CommonSubjects []string `json:"commonSubjects"`
}

// ScheduleFactor is the availability-overlap component.
type ScheduleFactor struct {
	Score           int      `json:"score"`
	Weight          float64  `json:"weight"`
	CommonTimeSlots []string `json:"commonTimeSlots"`
}

// ExperienceFactor is the experience-level component.
type ExperienceFactor struct {
	Score              int     `json:"score"`
	Weight             float64 `json:"weight"`
	LevelCompatibility string  `json:"levelCompatibility"`
}

// StyleFactor is the study-style component.
type StyleFactor struct {
	Score              int     `json:"score"`
	Weight             float64 `json:"weight"`
	StyleCompatibility string  `json:"styleCompatibility"`
}

// GoalFactor is the study-goal component.
type GoalFactor struct {
	Score       int         `json:"score"`
	Weight      float64     `json:"weight"`
	CommonGoals []StudyGoal `json:"commonGoals"`
}

// MatchFactors is the full per-factor breakdown behind a compatibility
// score. Weights are percentages and sum to 100.
type MatchFactors struct {
	SubjectMatch    SubjectFactor    `json:"subjectMatch"`
	ScheduleMatch   ScheduleFactor   `json:"scheduleMatch"`
	ExperienceMatch ExperienceFactor `json:"experienceMatch"`
	StudyStyleMatch StyleFactor      `json:"studyStyleMatch"`
	GoalMatch       GoalFactor       `json:"goalMatch"`
}

// MatchCandidate is one ranked entry of a match snapshot.
type MatchCandidate struct {
	ID                 string       `json:"id,omitempty"`
	TargetType         TargetType   `json:"targetType"`
	TargetID           string       `json:"targetId"`
	TargetName         string       `json:"targetName"`
	CompatibilityScore int          `json:"compatibilityScore"`
	MatchFactors       MatchFactors `json:"matchFactors"`
	Reasons            []string     `json:"reasons"`

	// Group-only metadata, zero for user candidates.
	MemberCount int `json:"memberCount,omitempty"`
	MaxMembers  int `json:"maxMembers,omitempty"`

	// Interaction flags, updated after the snapshot is persisted.
	Viewed        bool       `json:"viewed"`
	ViewedAt      *time.Time `json:"viewedAt,omitempty"`
	Interested    bool       `json:"interested"`
	Contacted     bool       `json:"contacted"`
	ContactedAt   *time.Time `json:"contactedAt,omitempty"`
	Joined        bool       `json:"joined"`
	JoinedAt      *time.Time `json:"joinedAt,omitempty"`
	Dismissed     bool       `json:"dismissed"`
	DismissedAt   *time.Time `json:"dismissedAt,omitempty"`
	DismissReason string     `json:"dismissReason,omitempty"`
}

// SnapshotStatus is the lifecycle state of a persisted match snapshot.
type SnapshotStatus string

const (
	SnapshotActive   SnapshotStatus = "active"
	SnapshotExpired  SnapshotStatus = "expired"
	SnapshotArchived SnapshotStatus = "archived"
)

// SearchCriteria records the options a snapshot was generated with, so a
// cached snapshot can be judged against a later request.
type SearchCriteria struct {
	IncludeUsers  bool `json:"includeUsers"`
	IncludeGroups bool `json:"includeGroups"`
	MaxResults    int  `json:"maxResults"`
	MinScore      int  `json:"minScore"`
}

// MatchSnapshot is a persisted, ranked match result set for one user.
type MatchSnapshot struct {
	ID               string           `json:"id"`
	UserID           string           `json:"userId"`
	Candidates       []MatchCandidate `json:"candidates"`
	TotalCandidates  int              `json:"totalCandidates"`
	SearchCriteria   SearchCriteria   `json:"searchCriteria"`
	AlgorithmVersion string           `json:"algorithmVersion"`
	ProcessingTimeMs int64            `json:"processingTimeMs"`
	Status           SnapshotStatus   `json:"status"`
	CreatedAt        time.Time        `json:"createdAt"`
	ExpiresAt        time.Time        `json:"expiresAt"`
}

// InteractionAction is a user action recorded against a match candidate.
type InteractionAction string

const (
	ActionViewed     InteractionAction = "viewed"
	ActionInterested InteractionAction = "interested"
	ActionContacted  InteractionAction = "contacted"
	ActionJoined     InteractionAction = "joined"
	ActionDismissed  InteractionAction = "dismissed"
)

// ValidInteractionActions lists the accepted interaction actions.
var ValidInteractionActions = []InteractionAction{
	ActionViewed,
	ActionInterested,
	ActionContacted,
	ActionJoined,
	ActionDismissed,
}

// IsValid reports whether the action is one of the accepted values.
func (a InteractionAction) IsValid() bool {
	for _, v := range ValidInteractionActions {
		if a == v {
			return true
		}
	}
	return false
}

// SuggestedMember is one member of a proposed study group.
type SuggestedMember struct {
	UserID             string `json:"userId"`
	Name               string `json:"name"`
	CompatibilityScore int    `json:"compatibilityScore"`
}

// GroupSuggestion is one proposed study group built around a subject the
// requesting user studies.
type GroupSuggestion struct {
	Subject                string            `json:"subject"`
	SuggestedName          string            `json:"suggestedName"`
	SuggestedMembers       []SuggestedMember `json:"suggestedMembers"`
	EstimatedCompatibility int               `json:"estimatedCompatibility"`
	Reason                 string            `json:"reason"`
	CreatedForUserID       string            `json:"createdForUserId"`
}
