package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/clubhub/core"
	"github.com/trezcool/clubhub/core/event"
)

type eventRepository struct {
	events   *eventTable
	checkIns *checkInTable
}

var _ event.Repository = (*eventRepository)(nil) // interface compliance check

func NewEventRepository(db *DB) event.Repository {
	return &eventRepository{events: db.event, checkIns: db.checkIn}
}

func (repo *eventRepository) query() []event.Event {
	events := make([]event.Event, 0, len(repo.events.table))
	for _, evt := range repo.events.table {
		events = append(events, *evt)
	}
	return events
}

func (repo *eventRepository) CreateEvent(_ context.Context, evt event.Event) (event.Event, error) {
	repo.events.Lock()
	defer repo.events.Unlock()

	evt.ID = uuid.New().String()
	repo.events.table[evt.ID] = &evt
	return evt, nil
}

func matches(evt event.Event, filter *event.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if filter.Search != "" {
		search := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(evt.Name), search) && !strings.Contains(strings.ToLower(evt.Location), search) {
			return false
		}
	}
	if filter.ClubID != "" && evt.ClubID != filter.ClubID {
		return false
	}
	if !filter.StartsFrom.IsZero() && evt.StartsAt.Before(filter.StartsFrom) {
		return false
	}
	if !filter.StartsTo.IsZero() && evt.StartsAt.After(filter.StartsTo) {
		return false
	}
	return true
}

// less compares two events on `ordering`, then on ID.
func less(a, b event.Event, ordering []core.DBOrdering) bool {
	for _, ord := range ordering {
		var cmp int
		switch ord.Field {
		case "name":
			cmp = strings.Compare(a.Name, b.Name)
		case "starts_at":
			cmp = a.StartsAt.Compare(b.StartsAt)
		case "created_at":
			cmp = a.CreatedAt.Compare(b.CreatedAt)
		}
		if cmp == 0 {
			continue
		}
		if ord.Ascending {
			return cmp < 0
		}
		return cmp > 0
	}
	return a.ID < b.ID
}

func (repo *eventRepository) QueryEvents(_ context.Context, filter *event.QueryFilter, ordering []core.DBOrdering) ([]event.Event, error) {
	repo.events.RLock()
	defer repo.events.RUnlock()

	events := make([]event.Event, 0)
	for _, evt := range repo.query() {
		if matches(evt, filter) {
			events = append(events, evt)
		}
	}
	sort.Slice(events, func(i, j int) bool { return less(events[i], events[j], ordering) })
	return events, nil
}

func (repo *eventRepository) GetEvent(_ context.Context, filter event.GetFilter) (event.Event, error) {
	repo.events.RLock()
	defer repo.events.RUnlock()

	if filter.ID != "" {
		if evt, ok := repo.events.table[filter.ID]; ok {
			return *evt, nil
		}
		return event.Event{}, event.ErrNotFound
	}
	if filter.CheckInCode != "" {
		for _, evt := range repo.events.table {
			if evt.CheckInCode == filter.CheckInCode {
				return *evt, nil
			}
		}
	}
	return event.Event{}, event.ErrNotFound
}

func (repo *eventRepository) UpdateEvent(_ context.Context, evt event.Event) (event.Event, error) {
	repo.events.Lock()
	defer repo.events.Unlock()

	if _, ok := repo.events.table[evt.ID]; !ok {
		return event.Event{}, event.ErrNotFound
	}
	repo.events.table[evt.ID] = &evt
	return evt, nil
}

func (repo *eventRepository) CreateCheckIn(_ context.Context, ci event.CheckIn) (event.CheckIn, error) {
	repo.checkIns.Lock()
	defer repo.checkIns.Unlock()

	for _, c := range repo.checkIns.table {
		if c.EventID == ci.EventID && c.StudentID == ci.StudentID && c.Phase == ci.Phase {
			return event.CheckIn{}, event.ErrAlreadyCheckedIn
		}
	}
	ci.ID = uuid.New().String()
	repo.checkIns.table[ci.ID] = &ci
	return ci, nil
}

func (repo *eventRepository) QueryCheckIns(_ context.Context, eventID string) ([]event.CheckIn, error) {
	repo.checkIns.RLock()
	defer repo.checkIns.RUnlock()

	checkIns := make([]event.CheckIn, 0)
	for _, c := range repo.checkIns.table {
		if c.EventID == eventID {
			checkIns = append(checkIns, *c)
		}
	}
	sort.Slice(checkIns, func(i, j int) bool {
		if !checkIns[i].CreatedAt.Equal(checkIns[j].CreatedAt) {
			return checkIns[i].CreatedAt.Before(checkIns[j].CreatedAt)
		}
		return checkIns[i].ID < checkIns[j].ID
	})
	return checkIns, nil
}
