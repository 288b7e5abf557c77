package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/milestone-tracker/internal/model"
)

func ms(id string, min, typical, max int) model.Milestone {
	return model.Milestone{
		ID:        id,
		AgeWindow: model.AgeWindow{Min: min, Typical: typical, Max: max},
		Domain:    model.DomainMotor,
	}
}

func ids(list []model.Milestone) []string {
	out := make([]string, 0, len(list))
	for _, m := range list {
		out = append(out, m.ID)
	}
	return out
}

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	assert.Equal(t, "2025.1", c.Version())
	assert.Len(t, c.ByTypicalAge(12), 10)
	assert.Len(t, c.InScope(12), 10)

	m, ok := c.Get("L_24M_003")
	require.True(t, ok)
	assert.True(t, m.RedFlag)
	assert.Equal(t, 30, m.AgeWindow.Max)
}

func TestInScopeIsExactWindowContainment(t *testing.T) {
	c, err := New("t", []model.Milestone{
		ms("a", 0, 2, 4),
		ms("b", 3, 6, 9),
		ms("c", 9, 12, 15),
		ms("d", 18, 24, 30),
	})
	require.NoError(t, err)

	for age := 0; age <= 36; age++ {
		var want []string
		for _, m := range c.All() {
			if m.AgeWindow.Min <= age && age <= m.AgeWindow.Max {
				want = append(want, m.ID)
			}
		}
		got := ids(c.InScope(age))
		if len(want) == 0 {
			assert.Empty(t, got, "age %d", age)
			continue
		}
		assert.Equal(t, want, got, "age %d", age)
	}
}

func TestInScopeAndTypicalAreDistinctQueries(t *testing.T) {
	// A 9-15 window belongs to the 12-month tab only, but is in scope at 9 and 15.
	c, err := New("t", []model.Milestone{ms("span", 9, 12, 15)})
	require.NoError(t, err)

	assert.Equal(t, []string{"span"}, ids(c.InScope(9)))
	assert.Equal(t, []string{"span"}, ids(c.InScope(15)))
	assert.Empty(t, c.ByTypicalAge(9))
	assert.Equal(t, []string{"span"}, ids(c.ByTypicalAge(12)))
	assert.Empty(t, c.InScope(16))
}

func TestNewRejectsBadDefinitions(t *testing.T) {
	tests := []struct {
		name string
		list []model.Milestone
	}{
		{"empty id", []model.Milestone{ms("", 1, 2, 3)}},
		{"duplicate", []model.Milestone{ms("x", 1, 2, 3), ms("x", 1, 2, 3)}},
		{"typical above max", []model.Milestone{ms("x", 1, 5, 3)}},
		{"negative min", []model.Milestone{ms("x", -1, 2, 3)}},
		{"no domain", []model.Milestone{{ID: "x", AgeWindow: model.AgeWindow{Min: 1, Typical: 2, Max: 3}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New("t", tt.list)
			assert.Error(t, err)
		})
	}
}

func TestParseBareArrayUsesContentVersion(t *testing.T) {
	data := []byte(`[{"milestone_id":"x","age_range_months":{"min":1,"max":3,"typical":2},"domain":"social","subdomain":"social_emotional","milestone_description":"Smiles","red_flag":true}]`)
	c, err := Parse(data)
	require.NoError(t, err)
	assert.Contains(t, c.Version(), "sha256:")

	again, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, c.Version(), again.Version())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":"v9","milestones":[{"milestone_id":"x","age_range_months":{"min":1,"max":3,"typical":2},"domain":"motor"}]}`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "v9", c.Version())
	assert.True(t, c.Has("x"))
	assert.False(t, c.Has("y"))
}

func TestAllReturnsCopy(t *testing.T) {
	c := Default()
	all := c.All()
	all[0].ID = "mutated"
	first := c.All()[0]
	assert.NotEqual(t, "mutated", first.ID)
}
