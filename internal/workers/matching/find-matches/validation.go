// internal/workers/matching/find-matches/validation.go
package findmatches

import "studymatch-workers/internal/common/validation"

func float64Ptr(v float64) *float64 { return &v }

// InputSchema describes the job variables this worker consumes. Extra
// process variables are tolerated; only the declared fields are checked.
func InputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type: "object",
		Properties: map[string]validation.Property{
			"userId": {
				Type:        "string",
				Description: "User requesting matches",
				MinLength:   intPtr(1),
			},
			"includeUsers": {
				Type:    "boolean",
				Default: true,
			},
			"includeGroups": {
				Type:    "boolean",
				Default: true,
			},
			"maxResults": {
				Type:    "integer",
				Minimum: float64Ptr(1),
				Default: 20,
			},
			"minScore": {
				Type:    "integer",
				Minimum: float64Ptr(0),
				Maximum: float64Ptr(100),
				Default: 60,
			},
			"refresh": {
				Type:    "boolean",
				Default: false,
			},
		},
		Required:             []string{"userId"},
		AdditionalProperties: true,
	}
}

func intPtr(v int) *int { return &v }
