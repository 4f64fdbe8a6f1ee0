// Package eventtest holds helpers shared by the tests of event.Repository implementations and their users.
package eventtest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/clubhub/core"
	"github.com/trezcool/clubhub/core/event"
)

// Epoch is a fixed, second-precise reference time for fixtures.
var Epoch = time.Date(2026, time.March, 2, 18, 0, 0, 0, time.UTC)

var codeSeq int

// CreateEvent stores an event starting `startsIn` after Epoch and lasting 2 hours.
func CreateEvent(t *testing.T, repo event.Repository, clubID, name, location string, startsIn time.Duration) event.Event {
	t.Helper()
	codeSeq++
	evt := event.Event{
		ClubID:      clubID,
		Name:        name,
		Location:    location,
		StartsAt:    Epoch.Add(startsIn),
		EndsAt:      Epoch.Add(startsIn + 2*time.Hour),
		CheckInCode: fmt.Sprintf("CODE%04d", codeSeq),
		CreatedAt:   Epoch.Add(time.Duration(codeSeq) * time.Second),
		UpdatedAt:   Epoch.Add(time.Duration(codeSeq) * time.Second),
	}
	evt, err := repo.CreateEvent(context.Background(), evt)
	if err != nil {
		t.Fatalf("CreateEvent() failed: %v", err)
	}
	return evt
}

func names(events []event.Event) []string {
	res := make([]string, 0, len(events))
	for _, evt := range events {
		res = append(res, evt.Name)
	}
	return res
}

// TestRepository runs the behaviour every event.Repository must have.
// `newRepo` must return an empty repository.
func TestRepository(t *testing.T, newRepo func(t *testing.T) event.Repository) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		repo := newRepo(t)
		evt := CreateEvent(t, repo, "robotics", "Robotics Night", "Lab 2", 0)
		assert.NotEmpty(t, evt.ID)

		got, err := repo.GetEvent(ctx, event.GetFilter{ID: evt.ID})
		require.NoError(t, err)
		assert.Equal(t, evt, got)

		got, err = repo.GetEvent(ctx, event.GetFilter{CheckInCode: evt.CheckInCode})
		require.NoError(t, err)
		assert.Equal(t, evt.ID, got.ID)
	})

	t.Run("not found", func(t *testing.T) {
		repo := newRepo(t)
		for _, filter := range []event.GetFilter{
			{},
			{ID: "not-a-uuid"},
			{ID: "5b4c3b77-0e6f-4d35-9a5e-2a1f7a8e4d11"},
			{CheckInCode: "NOPE"},
		} {
			_, err := repo.GetEvent(ctx, filter)
			assert.ErrorIs(t, err, event.ErrNotFound, "%+v", filter)
		}

		_, err := repo.UpdateEvent(ctx, event.Event{ID: "5b4c3b77-0e6f-4d35-9a5e-2a1f7a8e4d11", Name: "Ghost"})
		assert.ErrorIs(t, err, event.ErrNotFound)
	})

	t.Run("query", func(t *testing.T) {
		repo := newRepo(t)
		chess := CreateEvent(t, repo, "chess", "Chess Open", "Library", 48*time.Hour)
		robots := CreateEvent(t, repo, "robotics", "Robotics Night", "Lab 2", 0)
		build := CreateEvent(t, repo, "robotics", "Build Day", "Main Hall", 24*time.Hour)
		_ = CreateEvent(t, repo, "drama", "Drama Rehearsal", "Main hall", 72*time.Hour)

		byStart := []core.DBOrdering{{Field: "starts_at", Ascending: true}}
		byNameDesc := []core.DBOrdering{{Field: "name", Ascending: false}}

		tests := []struct {
			name     string
			filter   *event.QueryFilter
			ordering []core.DBOrdering
			want     []string
		}{
			{name: "all", ordering: byStart, want: []string{"Robotics Night", "Build Day", "Chess Open", "Drama Rehearsal"}},
			{name: "ordering", ordering: byNameDesc, want: []string{"Robotics Night", "Drama Rehearsal", "Chess Open", "Build Day"}},
			{name: "search name", filter: &event.QueryFilter{Search: "NIGHT"}, ordering: byStart, want: []string{"Robotics Night"}},
			{name: "search location", filter: &event.QueryFilter{Search: "main hall"}, ordering: byStart, want: []string{"Build Day", "Drama Rehearsal"}},
			{name: "search unknown", filter: &event.QueryFilter{Search: "lol"}, ordering: byStart, want: []string{}},
			{name: "club", filter: &event.QueryFilter{ClubID: "robotics"}, ordering: byStart, want: []string{"Robotics Night", "Build Day"}},
			{
				name:     "starts range",
				filter:   &event.QueryFilter{StartsFrom: build.StartsAt, StartsTo: chess.StartsAt},
				ordering: byStart,
				want:     []string{"Build Day", "Chess Open"},
			},
			{
				name:     "club and search",
				filter:   &event.QueryFilter{ClubID: "robotics", Search: "lab"},
				ordering: byStart,
				want:     []string{robots.Name},
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				events, err := repo.QueryEvents(ctx, tt.filter, tt.ordering)
				require.NoError(t, err)
				assert.Equal(t, tt.want, names(events))
			})
		}
	})

	t.Run("update", func(t *testing.T) {
		repo := newRepo(t)
		evt := CreateEvent(t, repo, "robotics", "Robotics Night", "", 0)

		evt.CheckInCode = "ROTATED1"
		evt.UpdatedAt = Epoch.Add(time.Hour)
		updated, err := repo.UpdateEvent(ctx, evt)
		require.NoError(t, err)
		assert.Equal(t, evt, updated)

		_, err = repo.GetEvent(ctx, event.GetFilter{CheckInCode: "ROTATED1"})
		assert.NoError(t, err)
	})

	t.Run("check-ins", func(t *testing.T) {
		repo := newRepo(t)
		evt := CreateEvent(t, repo, "robotics", "Robotics Night", "Lab 2", 0)
		other := CreateEvent(t, repo, "chess", "Chess Open", "Library", 0)

		checkIn := func(eventID, studentID string, phase event.Phase, at time.Duration) (event.CheckIn, error) {
			return repo.CreateCheckIn(ctx, event.CheckIn{
				EventID:   eventID,
				StudentID: studentID,
				Phase:     phase,
				CreatedAt: Epoch.Add(at),
			})
		}

		first, err := checkIn(evt.ID, "s1", event.PhaseStart, time.Minute)
		require.NoError(t, err)
		assert.NotEmpty(t, first.ID)
		_, err = checkIn(evt.ID, "s2", event.PhaseStart, 2*time.Minute)
		require.NoError(t, err)
		_, err = checkIn(evt.ID, "s1", event.PhaseEnd, 3*time.Minute)
		require.NoError(t, err)
		_, err = checkIn(other.ID, "s1", event.PhaseStart, 4*time.Minute)
		require.NoError(t, err)

		_, err = checkIn(evt.ID, "s1", event.PhaseStart, 5*time.Minute)
		assert.ErrorIs(t, err, event.ErrAlreadyCheckedIn)

		checkIns, err := repo.QueryCheckIns(ctx, evt.ID)
		require.NoError(t, err)
		require.Len(t, checkIns, 3)
		assert.Equal(t, first, checkIns[0])
		assert.Equal(t, "s2", checkIns[1].StudentID)
		assert.Equal(t, event.PhaseEnd, checkIns[2].Phase)

		checkIns, err = repo.QueryCheckIns(ctx, "5b4c3b77-0e6f-4d35-9a5e-2a1f7a8e4d11")
		require.NoError(t, err)
		assert.Empty(t, checkIns)
	})
}
