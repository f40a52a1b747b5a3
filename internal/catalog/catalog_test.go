package catalog

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(ts []Template) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.ID)
	}
	return out
}

func TestList(t *testing.T) {
	c := New()
	list := c.List()
	require.Len(t, list, 3)
	assert.Equal(t, []string{"1", "2", "3"}, ids(list))
	assert.Equal(t, "make-scenario-id-2", list[1].MakeScenarioID)
	assert.Len(t, list[2].ConfigParameters, 3)
}

func TestGet(t *testing.T) {
	c := New()

	d, err := c.Get("3")
	require.NoError(t, err)
	assert.Equal(t, "Invoice Automation", d.Name)
	assert.Equal(t, []string{"Eliminate manual invoice creation", "Reduce invoicing errors", "Get paid faster"}, d.Benefits)
	assert.NotEmpty(t, d.LongDescription)
	assert.Len(t, d.SetupSteps, 3)

	_, err = c.Get("99")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSearch(t *testing.T) {
	c := New()
	cases := []struct {
		name     string
		query    string
		category string
		want     []string
	}{
		{"no filters", "", "", []string{"1", "2", "3"}},
		{"name substring case-insensitive", "LEAD", "", []string{"2"}},
		{"description substring", "invoices", "", []string{"3"}},
		{"shared word", "automatically", "", []string{"1", "3"}},
		{"category exact case-insensitive", "", "finance", []string{"3"}},
		{"category is not substring", "", "fin", []string{}},
		{"conjunctive", "automatically", "marketing", []string{"1"}},
		{"conjunctive miss", "lead", "finance", []string{}},
		{"no match", "blockchain", "", []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ids(c.Search(tc.query, tc.category)))
		})
	}
}

func TestCatalog_ReturnsCopies(t *testing.T) {
	c := New()

	list := c.List()
	list[0].Name = "mutated"
	list[0].RequiredConnections[0] = "mutated"
	list[0].ConfigParameters[0].Options[0] = "mutated"

	d, err := c.Get("1")
	require.NoError(t, err)
	assert.Equal(t, "Daily Social Media Posts", d.Name)
	assert.Equal(t, "Twitter", d.RequiredConnections[0])
	assert.Equal(t, "Daily", d.ConfigParameters[0].Options[0])
}

func TestCategories(t *testing.T) {
	assert.Equal(t, []string{"Marketing", "Sales", "Finance"}, New().Categories())
}

func TestDetail_JSONShape(t *testing.T) {
	d, err := New().Get("2")
	require.NoError(t, err)

	raw, err := json.Marshal(d)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	for _, key := range []string{"id", "name", "makeScenarioId", "requiredConnections", "configParameters", "longDescription", "benefits", "setupSteps"} {
		assert.Contains(t, m, key)
	}
	params := m["configParameters"].([]any)
	first := params[0].(map[string]any)
	assert.Equal(t, "#leads", first["default"])
	assert.NotContains(t, first, "options")
}

func TestNewWith(t *testing.T) {
	items := []Detail{{Template: Template{ID: "x", Name: "X", Category: "Ops"}}}
	c := NewWith(items)
	items[0].Name = "changed"

	d, err := c.Get("x")
	require.NoError(t, err)
	assert.Equal(t, "X", d.Name)
}
