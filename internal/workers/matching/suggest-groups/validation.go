// internal/workers/matching/suggest-groups/validation.go
package suggestgroups

import "studymatch-workers/internal/common/validation"

func float64Ptr(v float64) *float64 { return &v }
func intPtr(v int) *int             { return &v }

func InputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type: "object",
		Properties: map[string]validation.Property{
			"userId": {
				Type:        "string",
				Description: "User to build study group suggestions for",
				MinLength:   intPtr(1),
			},
			"minGroupSize": {
				Type:    "integer",
				Minimum: float64Ptr(2),
				Default: 3,
			},
			"maxGroupSize": {
				Type:    "integer",
				Minimum: float64Ptr(2),
				Default: 6,
			},
		},
		Required:             []string{"userId"},
		AdditionalProperties: true,
	}
}
