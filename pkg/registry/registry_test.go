// pkg/registry/registry_test.go
package registry

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRegistry() *ActivityRegistry {
	return &ActivityRegistry{
		Version:     "1.0.0",
		LastUpdated: "2026-01-01T00:00:00Z",
		Activities: []Activity{
			{
				ID:          "find-matches",
				DisplayName: "Find Matches",
				Description: "Scores and ranks study partner candidates",
				Category:    "matching",
				TaskType:    "find-matches",
			},
		},
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "registry.json")

	require.NoError(t, Save(sampleRegistry(), path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", loaded.Version)
	require.Len(t, loaded.Activities, 1)
	assert.Equal(t, "find-matches", loaded.Activities[0].ID)
}

func TestValidate(t *testing.T) {
	reg := sampleRegistry()
	assert.NoError(t, reg.Validate())

	empty := &ActivityRegistry{}
	assert.Error(t, empty.Validate())

	dup := sampleRegistry()
	dup.Activities = append(dup.Activities, dup.Activities[0])
	assert.ErrorContains(t, dup.Validate(), "duplicate")

	missing := sampleRegistry()
	missing.Activities[0].Category = ""
	assert.ErrorContains(t, missing.Validate(), "Category")
}

func TestFind(t *testing.T) {
	reg := sampleRegistry()

	assert.NotNil(t, reg.Find("find-matches"))
	assert.Nil(t, reg.Find("unknown"))
}
