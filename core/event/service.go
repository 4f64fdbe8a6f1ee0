package event

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/clubhub/core"
)

var (
	// errors
	ErrNotFound         = errors.New("event not found")
	ErrInvalidCode      = errors.New("invalid check-in code")
	ErrAlreadyCheckedIn = errors.New("student already checked in for this phase")
)

type (
	Repository interface {
		CreateEvent(ctx context.Context, evt Event) (Event, error)
		// QueryEvents applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of Event.Name or Event.Location.
		QueryEvents(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Event, error)
		GetEvent(ctx context.Context, filter GetFilter) (Event, error)
		UpdateEvent(ctx context.Context, evt Event) (Event, error)
		// CreateCheckIn returns ErrAlreadyCheckedIn if the student already checked in at this phase.
		CreateCheckIn(ctx context.Context, ci CheckIn) (CheckIn, error)
		QueryCheckIns(ctx context.Context, eventID string) ([]CheckIn, error)
	}

	ServiceInterface interface {
		Create(ctx context.Context, ne NewEvent) (Event, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Event, error)
		GetByID(ctx context.Context, id string) (Event, error)
		RotateCode(ctx context.Context, id string) (Event, error)
		CheckIn(ctx context.Context, req CheckInRequest) (CheckIn, error)
		QueryCheckIns(ctx context.Context, eventID string) ([]CheckIn, error)
	}

	Service struct {
		repo     Repository
		logger   core.Logger
		nowFunc  func() time.Time // mockable
		codeFunc func() (string, error)
	}
)

var _ ServiceInterface = (*Service)(nil) // interface compliance check

func NewService(repo Repository, logger core.Logger) *Service {
	return &Service{
		repo:     repo,
		logger:   logger,
		nowFunc:  time.Now,
		codeFunc: GenerateCode,
	}
}

func (svc *Service) now() time.Time { return svc.nowFunc().UTC() }

// Create stores a new Event with a fresh check-in code. `ne` must have been validated.
func (svc *Service) Create(ctx context.Context, ne NewEvent) (Event, error) {
	code, err := svc.codeFunc()
	if err != nil {
		return Event{}, pkgerrors.Wrap(err, "generating check-in code")
	}
	now := svc.now()
	evt := Event{
		ClubID:      ne.ClubID,
		Name:        ne.Name,
		Description: ne.Description,
		Location:    ne.Location,
		StartsAt:    ne.StartsAt.UTC(),
		EndsAt:      ne.EndsAt.UTC(),
		CheckInCode: code,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateEvent(ctx, evt)
}

// Query returns the events matching `filter`. Orderings on unknown fields are dropped.
func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Event, error) {
	ordering = core.FilterOrderings(ordering, OrderingFields)
	if len(ordering) == 0 {
		ordering = DefaultOrdering
	}
	return svc.repo.QueryEvents(ctx, filter, ordering)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Event, error) {
	return svc.repo.GetEvent(ctx, GetFilter{ID: id})
}

// RotateCode replaces the check-in code of an event: links built from the old code stop working.
func (svc *Service) RotateCode(ctx context.Context, id string) (Event, error) {
	evt, err := svc.repo.GetEvent(ctx, GetFilter{ID: id})
	if err != nil {
		return Event{}, err
	}
	code, err := svc.codeFunc()
	if err != nil {
		return Event{}, pkgerrors.Wrap(err, "generating check-in code")
	}
	evt.CheckInCode = code
	evt.UpdatedAt = svc.now()
	return svc.repo.UpdateEvent(ctx, evt)
}

// CheckIn records the attendance of a student. `req` must have been validated.
func (svc *Service) CheckIn(ctx context.Context, req CheckInRequest) (CheckIn, error) {
	evt, err := svc.repo.GetEvent(ctx, GetFilter{CheckInCode: NormalizeCode(req.Code)})
	if err != nil {
		if pkgerrors.Cause(err) == ErrNotFound {
			return CheckIn{}, core.NewValidationError(ErrInvalidCode, core.FieldError{Field: "code", Error: ErrInvalidCode.Error()})
		}
		return CheckIn{}, pkgerrors.Wrap(err, "finding event by code")
	}

	ci, err := svc.repo.CreateCheckIn(ctx, CheckIn{
		EventID:   evt.ID,
		StudentID: req.StudentID,
		Phase:     req.Phase,
		CreatedAt: svc.now(),
	})
	if err != nil {
		if pkgerrors.Cause(err) == ErrAlreadyCheckedIn {
			return CheckIn{}, core.NewConflictError(ErrAlreadyCheckedIn)
		}
		svc.logger.Error("event: recording check-in failed", err, core.Person{ID: req.StudentID})
		return CheckIn{}, pkgerrors.Wrap(err, "creating check-in")
	}
	svc.logger.Info("event: student checked in", map[string]interface{}{
		"event_id":   evt.ID,
		"student_id": ci.StudentID,
		"phase":      ci.Phase,
	})
	return ci, nil
}

func (svc *Service) QueryCheckIns(ctx context.Context, eventID string) ([]CheckIn, error) {
	if _, err := svc.repo.GetEvent(ctx, GetFilter{ID: eventID}); err != nil {
		return nil, err
	}
	return svc.repo.QueryCheckIns(ctx, eventID)
}
