// internal/workers/matching/mark-interaction/models.go
package markinteraction

type Input struct {
	SnapshotID    string `json:"snapshotId"`
	CandidateID   string `json:"candidateId"`
	Action        string `json:"action"`
	DismissReason string `json:"dismissReason,omitempty"`
}

type Output struct {
	Success     bool   `json:"success"`
	SnapshotID  string `json:"snapshotId"`
	CandidateID string `json:"candidateId"`
	Action      string `json:"action"`
}
