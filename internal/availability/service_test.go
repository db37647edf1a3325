package availability

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookease/bookease-backend/internal/offering"
	"github.com/bookease/bookease-backend/internal/timeutil"
)

type fakeOfferings struct {
	offering.Service
	known map[string]bool
}

func (f *fakeOfferings) GetByID(_ context.Context, id string) (*offering.Offering, error) {
	if !f.known[id] {
		return nil, offering.ErrNotFound
	}
	return &offering.Offering{ID: id, DurationMinutes: 60, IsActive: true}, nil
}

type memRepo struct {
	rules     map[string]*Rule
	blackouts map[string]*Blackout
	seq       int
}

func newMemRepo() *memRepo {
	return &memRepo{rules: map[string]*Rule{}, blackouts: map[string]*Blackout{}}
}

func (m *memRepo) nextID() string {
	m.seq++
	return fmt.Sprintf("id-%d", m.seq)
}

func (m *memRepo) CreateRule(_ context.Context, r *Rule) error {
	r.ID = m.nextID()
	cp := *r
	m.rules[r.ID] = &cp
	return nil
}

func (m *memRepo) GetRule(_ context.Context, id string) (*Rule, error) {
	r, ok := m.rules[id]
	if !ok {
		return nil, ErrRuleNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRepo) ListRulesForService(_ context.Context, serviceID string, activeOnly bool) ([]*Rule, error) {
	var out []*Rule
	for _, r := range m.rules {
		if r.ServiceID == serviceID && (!activeOnly || r.IsActive) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRepo) UpdateRule(_ context.Context, r *Rule) error {
	cp := *r
	m.rules[r.ID] = &cp
	return nil
}

func (m *memRepo) DeleteRule(_ context.Context, id string) error {
	if _, ok := m.rules[id]; !ok {
		return ErrRuleNotFound
	}
	delete(m.rules, id)
	return nil
}

func (m *memRepo) CreateBlackout(_ context.Context, b *Blackout) error {
	b.ID = m.nextID()
	cp := *b
	m.blackouts[b.ID] = &cp
	return nil
}

func (m *memRepo) GetBlackout(_ context.Context, id string) (*Blackout, error) {
	b, ok := m.blackouts[id]
	if !ok {
		return nil, ErrBlackoutNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memRepo) ListBlackouts(_ context.Context, f BlackoutFilter) ([]*Blackout, int, error) {
	var out []*Blackout
	for _, b := range m.blackouts {
		if f.ServiceID != "" && b.ServiceID != nil && *b.ServiceID != f.ServiceID {
			continue
		}
		if f.ActiveOnly && !b.IsActive {
			continue
		}
		if f.From != nil && b.EndDate.Before(*f.From) {
			continue
		}
		if f.To != nil && b.StartDate.After(*f.To) {
			continue
		}
		out = append(out, b)
	}
	return out, len(out), nil
}

func (m *memRepo) UpdateBlackout(_ context.Context, b *Blackout) error {
	cp := *b
	m.blackouts[b.ID] = &cp
	return nil
}

func (m *memRepo) DeleteBlackout(_ context.Context, id string) error {
	delete(m.blackouts, id)
	return nil
}

func newTestService() (Service, *memRepo) {
	repo := newMemRepo()
	offerings := &fakeOfferings{known: map[string]bool{"svc-1": true, "svc-2": true}}
	return NewService(repo, offerings, "America/New_York"), repo
}

func TestValidateRule(t *testing.T) {
	base := Rule{DayOfWeek: timeutil.Monday, StartTime: "09:00", EndTime: "17:00", Timezone: "America/New_York"}

	cases := []struct {
		name   string
		mutate func(*Rule)
		want   error
	}{
		{"valid", func(*Rule) {}, nil},
		{"sunday is zero", func(r *Rule) { r.DayOfWeek = 0 }, nil},
		{"day seven", func(r *Rule) { r.DayOfWeek = 7 }, ErrInvalidDayOfWeek},
		{"negative day", func(r *Rule) { r.DayOfWeek = -1 }, ErrInvalidDayOfWeek},
		{"bad start", func(r *Rule) { r.StartTime = "9:00" }, timeutil.ErrInvalidTimeFormat},
		{"bad end", func(r *Rule) { r.EndTime = "17:60" }, timeutil.ErrInvalidTimeFormat},
		{"equal bounds", func(r *Rule) { r.EndTime = "09:00" }, ErrInvalidRuleWindow},
		{"crosses midnight", func(r *Rule) { r.StartTime, r.EndTime = "22:00", "02:00" }, ErrInvalidRuleWindow},
		{"unknown zone", func(r *Rule) { r.Timezone = "Nowhere/Land" }, timeutil.ErrUnknownTimezone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := base
			tc.mutate(&r)
			err := ValidateRule(&r)
			if tc.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.want)
			}
		})
	}
}

func TestCreateRule(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	t.Run("defaults timezone", func(t *testing.T) {
		rule, err := svc.CreateRule(ctx, CreateRuleRequest{
			ServiceID: "svc-1", DayOfWeek: timeutil.Tuesday, StartTime: "10:00", EndTime: "16:00",
		})
		require.NoError(t, err)
		assert.Equal(t, "America/New_York", rule.Timezone)
		assert.True(t, rule.IsActive)
	})

	t.Run("unknown service", func(t *testing.T) {
		_, err := svc.CreateRule(ctx, CreateRuleRequest{
			ServiceID: "nope", DayOfWeek: timeutil.Tuesday, StartTime: "10:00", EndTime: "16:00",
		})
		assert.ErrorIs(t, err, offering.ErrNotFound)
	})

	t.Run("malformed time rejected at load", func(t *testing.T) {
		_, err := svc.CreateRule(ctx, CreateRuleRequest{
			ServiceID: "svc-1", DayOfWeek: timeutil.Tuesday, StartTime: "10am", EndTime: "16:00",
		})
		assert.ErrorIs(t, err, timeutil.ErrInvalidTimeFormat)
	})
}

func TestUpdateRuleAndActiveRules(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	rule, err := svc.CreateRule(ctx, CreateRuleRequest{
		ServiceID: "svc-1", DayOfWeek: timeutil.Monday, StartTime: "09:00", EndTime: "17:00",
	})
	require.NoError(t, err)

	badEnd := "08:00"
	_, err = svc.UpdateRule(ctx, rule.ID, UpdateRuleRequest{EndTime: &badEnd})
	assert.ErrorIs(t, err, ErrInvalidRuleWindow)

	off := false
	_, err = svc.UpdateRule(ctx, rule.ID, UpdateRuleRequest{IsActive: &off})
	require.NoError(t, err)

	active, err := svc.ActiveRulesForService(ctx, "svc-1")
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := svc.ListRules(ctx, "svc-1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestBlackouts(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()
	day := time.Date(2026, 1, 12, 17, 0, 0, 0, time.UTC)

	_, err := svc.CreateBlackout(ctx, CreateBlackoutRequest{StartDate: day.Add(time.Hour), EndDate: day})
	assert.ErrorIs(t, err, ErrInvalidBlackoutRange)

	// A zero-length blackout is allowed.
	_, err = svc.CreateBlackout(ctx, CreateBlackoutRequest{StartDate: day, EndDate: day})
	require.NoError(t, err)

	other := "svc-2"
	_, err = svc.CreateBlackout(ctx, CreateBlackoutRequest{ServiceID: &other, StartDate: day, EndDate: day.Add(time.Hour)})
	require.NoError(t, err)

	got, err := svc.ActiveBlackoutsForRange(ctx, "svc-1", day.Add(-24*time.Hour), day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].ServiceID)
	assert.True(t, got[0].AppliesTo("svc-1"))
	assert.True(t, got[0].Covers(day))
}

func TestBlackoutAppliesTo(t *testing.T) {
	svc := "svc-1"
	other := "svc-2"
	assert.True(t, (&Blackout{IsActive: true}).AppliesTo(svc))
	assert.True(t, (&Blackout{IsActive: true, ServiceID: &svc}).AppliesTo(svc))
	assert.False(t, (&Blackout{IsActive: true, ServiceID: &other}).AppliesTo(svc))
	assert.False(t, (&Blackout{IsActive: false}).AppliesTo(svc))
}
