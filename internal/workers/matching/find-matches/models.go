// internal/workers/matching/find-matches/models.go
package findmatches

import (
	"studymatch-workers/internal/matching/finder"
	"studymatch-workers/internal/models"
)

type Input struct {
	UserID        string `json:"userId"`
	IncludeUsers  *bool  `json:"includeUsers,omitempty"`
	IncludeGroups *bool  `json:"includeGroups,omitempty"`
	MaxResults    int    `json:"maxResults,omitempty"`
	MinScore      *int   `json:"minScore,omitempty"`
	Refresh       bool   `json:"refresh,omitempty"`
}

// toOptions overlays the provided fields on the documented defaults.
func (in *Input) toOptions() finder.FindOptions {
	opts := finder.DefaultFindOptions()
	if in.IncludeUsers != nil {
		opts.IncludeUsers = *in.IncludeUsers
	}
	if in.IncludeGroups != nil {
		opts.IncludeGroups = *in.IncludeGroups
	}
	if in.MaxResults != 0 {
		opts.MaxResults = in.MaxResults
	}
	if in.MinScore != nil {
		opts.MinScore = *in.MinScore
	}
	opts.Refresh = in.Refresh
	return opts
}

type Output struct {
	Matches          []models.MatchCandidate `json:"matches"`
	FromCache        bool                    `json:"fromCache"`
	GeneratedAt      string                  `json:"generatedAt"`
	ProcessingTimeMs int64                   `json:"processingTimeMs"`
	TotalCandidates  int                     `json:"totalCandidates"`
}
