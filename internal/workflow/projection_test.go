package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectCurrentMatchesIndex(t *testing.T) {
	for _, s := range nonTerminal() {
		p, err := Project(s)
		require.NoError(t, err)
		idx, ok := IndexOf(s)
		require.True(t, ok)
		assert.Equal(t, StepCurrent, p.Steps[idx].State, "status %q", s)
		assert.False(t, p.Rejected)

		for i, step := range p.Steps {
			switch {
			case i < idx:
				assert.Equal(t, StepCompleted, step.State)
			case i > idx:
				assert.Equal(t, StepPending, step.State)
			}
		}
	}
}

func TestProjectRejected(t *testing.T) {
	p, err := Project(StatusRejected)
	require.NoError(t, err)
	assert.True(t, p.Rejected)
	for _, step := range p.Steps {
		assert.Equal(t, StepPending, step.State)
	}
}

func TestProjectOutcome(t *testing.T) {
	p, err := Project(StatusPatentRefused)
	require.NoError(t, err)
	require.Len(t, p.Steps, 11)
	assert.Equal(t, StatusPatentRefused, p.Outcome)
	last := p.Steps[len(p.Steps)-1]
	assert.Equal(t, string(StatusPatentRefused), last.Label)
	assert.Equal(t, StepCurrent, last.State)
	for _, step := range p.Steps[:len(p.Steps)-1] {
		assert.Equal(t, StepCompleted, step.State)
	}

	p, err = Project(StatusSubmitted)
	require.NoError(t, err)
	assert.Equal(t, pendingOutcomeLabel, p.Steps[len(p.Steps)-1].Label)
}

func TestProjectUnknownStatus(t *testing.T) {
	_, err := Project("Under Review")
	assert.ErrorIs(t, err, ErrUnknownStatus)
}

func TestProjectIsStable(t *testing.T) {
	a, err := Project(StatusPatentFiled)
	require.NoError(t, err)
	b, err := Project(StatusPatentFiled)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestProjectWithDates(t *testing.T) {
	submitted := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	p, err := ProjectWithDates(StatusReviewedByPCCAdmin, map[string]time.Time{
		DateSubmitted: submitted,
	})
	require.NoError(t, err)
	require.NotNil(t, p.Steps[0].Date)
	assert.True(t, p.Steps[0].Date.Equal(submitted))
	assert.Nil(t, p.Steps[1].Date)
}
