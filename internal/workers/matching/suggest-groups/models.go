// internal/workers/matching/suggest-groups/models.go
package suggestgroups

import (
	"studymatch-workers/internal/matching/finder"
	"studymatch-workers/internal/models"
)

type Input struct {
	UserID       string `json:"userId"`
	MinGroupSize int    `json:"minGroupSize,omitempty"`
	MaxGroupSize int    `json:"maxGroupSize,omitempty"`
}

func (in *Input) toOptions() finder.SuggestOptions {
	opts := finder.DefaultSuggestOptions()
	if in.MinGroupSize != 0 {
		opts.MinGroupSize = in.MinGroupSize
	}
	if in.MaxGroupSize != 0 {
		opts.MaxGroupSize = in.MaxGroupSize
	}
	return opts
}

type Output struct {
	Suggestions []models.GroupSuggestion `json:"suggestions"`
	Count       int                      `json:"count"`
}
