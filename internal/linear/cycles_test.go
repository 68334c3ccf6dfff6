package linear

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emilianohg/cyclelog/internal/models"
)

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

const day = 24 * time.Hour

func testCycles() []models.Cycle {
	return []models.Cycle{
		{ID: "c5", Number: 5, StartsAt: now.Add(-day), EndsAt: now.Add(day)},
		{ID: "c6", Number: 6, StartsAt: now.Add(day), EndsAt: now.Add(8 * day)},
	}
}

func issueIn(c *models.Cycle) models.Issue {
	return models.Issue{ID: "i", Identifier: "ENG-1", Cycle: c}
}

func TestClassify(t *testing.T) {
	cycles := testCycles()

	assert.Equal(t, Current, Classify(now, cycles, issueIn(&cycles[0])))
	assert.Equal(t, Next, Classify(now, cycles, issueIn(&cycles[1])))
	assert.Equal(t, Backlog, Classify(now, cycles, issueIn(nil)))

	other := models.Cycle{ID: "c2", Number: 2, StartsAt: now.Add(-30 * day), EndsAt: now.Add(-23 * day)}
	assert.Equal(t, Backlog, Classify(now, cycles, issueIn(&other)))
}

func TestCurrentCycle_Boundaries(t *testing.T) {
	cycles := testCycles()

	cur := CurrentCycle(now.Add(-day), cycles)
	require.NotNil(t, cur)
	assert.Equal(t, 5, cur.Number, "start is inclusive")

	cur = CurrentCycle(now.Add(day), cycles)
	require.NotNil(t, cur)
	assert.Equal(t, 6, cur.Number, "end is exclusive")

	assert.Nil(t, CurrentCycle(now.Add(30*day), cycles))
}

func TestNextCycle_NoCurrent(t *testing.T) {
	cycles := []models.Cycle{
		{ID: "c8", Number: 8, StartsAt: now.Add(20 * day), EndsAt: now.Add(27 * day)},
		{ID: "c7", Number: 7, StartsAt: now.Add(10 * day), EndsAt: now.Add(17 * day)},
	}

	next := NextCycle(now, cycles)
	require.NotNil(t, next)
	assert.Equal(t, 7, next.Number)

	assert.Nil(t, NextCycle(now, nil))
}

func TestNextCycle_LastCycleIsCurrent(t *testing.T) {
	cycles := testCycles()[:1]
	assert.Nil(t, NextCycle(now, cycles))
}

func TestGroupByCycle(t *testing.T) {
	c4 := &models.Cycle{ID: "c4", Number: 4}
	c5 := &models.Cycle{ID: "c5", Number: 5}
	issues := []models.Issue{
		{ID: "a", Cycle: c4},
		{ID: "b"},
		{ID: "c", Cycle: c5},
		{ID: "d", Cycle: c4},
	}

	groups := GroupByCycle(issues)
	require.Len(t, groups, 3)

	assert.Equal(t, "Cycle 5", groups[0].Label)
	assert.Equal(t, "Cycle 4", groups[1].Label)
	assert.Equal(t, NoCycle, groups[2].Label)

	var ids []string
	for _, i := range groups[1].Issues {
		ids = append(ids, i.ID)
	}
	assert.Equal(t, []string{"a", "d"}, ids)
	assert.Equal(t, "b", groups[2].Issues[0].ID)
}

func TestGroupByCycle_Empty(t *testing.T) {
	assert.Empty(t, GroupByCycle(nil))
}

func TestFilterByAssignee(t *testing.T) {
	issues := []models.Issue{
		{ID: "a", Assignee: &models.Assignee{ID: "u1"}},
		{ID: "b", Assignee: &models.Assignee{ID: "u2"}},
		{ID: "c"},
	}

	got := FilterByAssignee(issues, "u1")
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)

	assert.Len(t, FilterByAssignee(issues, ""), 3)
}

func TestFindByIdentifier(t *testing.T) {
	issues := []models.Issue{{ID: "a", Identifier: "ENG-12"}}

	got, ok := FindByIdentifier(issues, "eng-12")
	require.True(t, ok)
	assert.Equal(t, "a", got.ID)

	_, ok = FindByIdentifier(issues, "ENG-13")
	assert.False(t, ok)
}
