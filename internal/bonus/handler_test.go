package bonus_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreledger/platform/internal/bonus"
)

func TestBirthdayHandler_RequiresBirthdayMatchAndOncePerYear(t *testing.T) {
	h := bonus.BirthdayHandler{}
	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	template := &bonus.Template{Code: "birthday-v1", Type: "birthday", Value: 2000}

	eligibility, err := h.ValidateSpecific(context.Background(), bonus.Context{
		Template: template,
		Now:      now,
		Params:   map[string]any{"birth_date": time.Date(1990, time.March, 15, 0, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)
	assert.True(t, eligibility.Eligible)

	eligibility, err = h.ValidateSpecific(context.Background(), bonus.Context{
		Template: template,
		Now:      now,
		Params:   map[string]any{"birth_date": time.Date(1990, time.April, 1, 0, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)
	assert.False(t, eligibility.Eligible)

	lastYear := now.AddDate(-1, 0, 0)
	eligibility, err = h.ValidateSpecific(context.Background(), bonus.Context{
		Template:    template,
		Now:         now,
		LastClaimAt: &lastYear,
		Params:      map[string]any{"birth_date": time.Date(1990, time.March, 15, 0, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)
	assert.True(t, eligibility.Eligible, "a claim from a prior calendar year should not block this year's claim")

	thisYear := now.AddDate(0, 0, -1)
	eligibility, err = h.ValidateSpecific(context.Background(), bonus.Context{
		Template:    template,
		Now:         now,
		LastClaimAt: &thisYear,
		Params:      map[string]any{"birth_date": time.Date(1990, time.March, 15, 0, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)
	assert.False(t, eligibility.Eligible, "already claimed this calendar year")
}

func TestSeasonalHandler_OneTimeWithinWindow(t *testing.T) {
	h := bonus.SeasonalHandler{}
	template := &bonus.Template{
		Code: "winter-2026", Type: "seasonal", Value: 1500,
		ValidFrom:  time.Date(2026, time.December, 1, 0, 0, 0, 0, time.UTC),
		ValidUntil: time.Date(2026, time.December, 31, 0, 0, 0, 0, time.UTC),
	}

	outsideWindow, err := h.ValidateSpecific(context.Background(), bonus.Context{
		Template: template,
		Now:      time.Date(2026, time.July, 30, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.False(t, outsideWindow.Eligible)

	insideWindow, err := h.ValidateSpecific(context.Background(), bonus.Context{
		Template: template,
		Now:      time.Date(2026, time.December, 10, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.True(t, insideWindow.Eligible)
}
