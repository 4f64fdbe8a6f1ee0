package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/clubhub/core"
	"github.com/trezcool/clubhub/core/event"
)

const (
	eventColumns   = "id, club_id, name, description, location, starts_at, ends_at, check_in_code, created_at, updated_at"
	checkInColumns = "id, event_id, student_id, phase, created_at"
)

type (
	eventRow struct {
		ID          string      `db:"id"`
		ClubID      string      `db:"club_id"`
		Name        string      `db:"name"`
		Description null.String `db:"description"`
		Location    null.String `db:"location"`
		StartsAt    time.Time   `db:"starts_at"`
		EndsAt      time.Time   `db:"ends_at"`
		CheckInCode string      `db:"check_in_code"`
		CreatedAt   time.Time   `db:"created_at"`
		UpdatedAt   time.Time   `db:"updated_at"`
	}

	checkInRow struct {
		ID        string    `db:"id"`
		EventID   string    `db:"event_id"`
		StudentID string    `db:"student_id"`
		Phase     string    `db:"phase"`
		CreatedAt time.Time `db:"created_at"`
	}
)

type eventRepository struct {
	exec core.DBExecutor
}

var _ event.Repository = (*eventRepository)(nil) // interface compliance check

// NewEventRepository returns an event.Repository running its queries on `exec` (a *sqlx.DB or *sqlx.Tx).
func NewEventRepository(exec core.DBExecutor) event.Repository {
	return &eventRepository{exec: exec}
}

func toEventRow(evt event.Event) eventRow {
	return eventRow{
		ID:          evt.ID,
		ClubID:      evt.ClubID,
		Name:        evt.Name,
		Description: null.NewString(evt.Description, evt.Description != ""),
		Location:    null.NewString(evt.Location, evt.Location != ""),
		StartsAt:    evt.StartsAt.UTC(),
		EndsAt:      evt.EndsAt.UTC(),
		CheckInCode: evt.CheckInCode,
		CreatedAt:   evt.CreatedAt.UTC(),
		UpdatedAt:   evt.UpdatedAt.UTC(),
	}
}

func (row eventRow) event() event.Event {
	return event.Event{
		ID:          row.ID,
		ClubID:      row.ClubID,
		Name:        row.Name,
		Description: row.Description.String,
		Location:    row.Location.String,
		StartsAt:    row.StartsAt.UTC(),
		EndsAt:      row.EndsAt.UTC(),
		CheckInCode: row.CheckInCode,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

func (row checkInRow) checkIn() event.CheckIn {
	return event.CheckIn{
		ID:        row.ID,
		EventID:   row.EventID,
		StudentID: row.StudentID,
		Phase:     event.Phase(row.Phase),
		CreatedAt: row.CreatedAt.UTC(),
	}
}

// trapNoRowsErr maps sql "no rows" err to event.ErrNotFound
func trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return event.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo *eventRepository) CreateEvent(ctx context.Context, evt event.Event) (event.Event, error) {
	evt.ID = uuid.New().String()
	row := toEventRow(evt)
	q := `INSERT INTO events (` + eventColumns + `)
		VALUES (:id, :club_id, :name, :description, :location, :starts_at, :ends_at, :check_in_code, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.exec, q, row); err != nil {
		return event.Event{}, errors.Wrap(err, "inserting event")
	}
	return row.event(), nil
}

func (repo *eventRepository) QueryEvents(ctx context.Context, filter *event.QueryFilter, ordering []core.DBOrdering) ([]event.Event, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter != nil {
		// events with Name or Location matching the search keyword
		if filter.Search != "" {
			val := "%" + strings.ToLower(filter.Search) + "%"
			where = append(where, "(LOWER(name) LIKE ? OR LOWER(location) LIKE ?)")
			args = append(args, val, val)
		}
		if filter.ClubID != "" {
			where = append(where, "club_id = ?")
			args = append(args, filter.ClubID)
		}
		if !filter.StartsFrom.IsZero() {
			where = append(where, "starts_at >= ?")
			args = append(args, filter.StartsFrom.UTC())
		}
		if !filter.StartsTo.IsZero() {
			where = append(where, "starts_at <= ?")
			args = append(args, filter.StartsTo.UTC())
		}
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + eventColumns + " FROM events")
	if len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	orderList := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		orderList = append(orderList, ord.String())
	}
	orderList = append(orderList, "id ASC") // stable pages
	sb.WriteString(" ORDER BY " + strings.Join(orderList, ", "))

	var rows []eventRow
	if err := repo.exec.SelectContext(ctx, &rows, repo.exec.Rebind(sb.String()), args...); err != nil {
		return nil, errors.Wrap(err, "querying events")
	}
	events := make([]event.Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, row.event())
	}
	return events, nil
}

func (repo *eventRepository) GetEvent(ctx context.Context, filter event.GetFilter) (event.Event, error) {
	var (
		cond string
		arg  string
	)
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return event.Event{}, event.ErrNotFound
		}
		cond, arg = "id = ?", filter.ID
	case filter.CheckInCode != "":
		cond, arg = "check_in_code = ?", filter.CheckInCode
	default:
		return event.Event{}, event.ErrNotFound
	}

	var row eventRow
	q := repo.exec.Rebind("SELECT " + eventColumns + " FROM events WHERE " + cond)
	if err := repo.exec.GetContext(ctx, &row, q, arg); err != nil {
		return event.Event{}, trapNoRowsErr(err, "finding event")
	}
	return row.event(), nil
}

func (repo *eventRepository) UpdateEvent(ctx context.Context, evt event.Event) (event.Event, error) {
	row := toEventRow(evt)
	q := `UPDATE events SET club_id = :club_id, name = :name, description = :description, location = :location,
		starts_at = :starts_at, ends_at = :ends_at, check_in_code = :check_in_code, updated_at = :updated_at
		WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.exec, q, row)
	if err != nil {
		return event.Event{}, errors.Wrap(err, "updating event")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return event.Event{}, event.ErrNotFound
	}
	return repo.GetEvent(ctx, event.GetFilter{ID: evt.ID})
}

func (repo *eventRepository) CreateCheckIn(ctx context.Context, ci event.CheckIn) (event.CheckIn, error) {
	row := checkInRow{
		ID:        uuid.New().String(),
		EventID:   ci.EventID,
		StudentID: ci.StudentID,
		Phase:     string(ci.Phase),
		CreatedAt: ci.CreatedAt.UTC(),
	}
	q := `INSERT INTO check_ins (` + checkInColumns + `) VALUES (:id, :event_id, :student_id, :phase, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.exec, q, row); err != nil {
		if isUniqueViolation(err) {
			return event.CheckIn{}, event.ErrAlreadyCheckedIn
		}
		return event.CheckIn{}, errors.Wrap(err, "inserting check-in")
	}
	return row.checkIn(), nil
}

func (repo *eventRepository) QueryCheckIns(ctx context.Context, eventID string) ([]event.CheckIn, error) {
	var rows []checkInRow
	q := repo.exec.Rebind("SELECT " + checkInColumns + " FROM check_ins WHERE event_id = ? ORDER BY created_at ASC, id ASC")
	if err := repo.exec.SelectContext(ctx, &rows, q, eventID); err != nil {
		return nil, errors.Wrap(err, "querying check-ins")
	}
	checkIns := make([]event.CheckIn, 0, len(rows))
	for _, row := range rows {
		checkIns = append(checkIns, row.checkIn())
	}
	return checkIns, nil
}
