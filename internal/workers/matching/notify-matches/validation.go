// internal/workers/matching/notify-matches/validation.go
package notifymatches

import "studymatch-workers/internal/common/validation"

func intPtr(v int) *int { return &v }

func InputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type: "object",
		Properties: map[string]validation.Property{
			"userId": {
				Type:      "string",
				MinLength: intPtr(1),
			},
			"channel": {
				Type: "string",
				Enum: []string{ChannelEmail, ChannelSMS},
			},
			"recipient": {
				Type:        "string",
				Description: "Email address or E.164 phone number",
				MinLength:   intPtr(3),
			},
		},
		Required:             []string{"userId", "channel", "recipient"},
		AdditionalProperties: true,
	}
}
