// internal/workers/matching/mark-interaction/validation.go
package markinteraction

import "studymatch-workers/internal/common/validation"

func intPtr(v int) *int { return &v }

func InputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type: "object",
		Properties: map[string]validation.Property{
			"snapshotId": {
				Type:      "string",
				MinLength: intPtr(1),
			},
			"candidateId": {
				Type:      "string",
				MinLength: intPtr(1),
			},
			"action": {
				Type: "string",
				Enum: []string{"viewed", "interested", "contacted", "joined", "dismissed"},
			},
			"dismissReason": {
				Type:        "string",
				Description: "Only meaningful when action is dismissed",
			},
		},
		Required:             []string{"snapshotId", "candidateId", "action"},
		AdditionalProperties: true,
	}
}
