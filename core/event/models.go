package event

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/clubhub/core"
	"github.com/trezcool/clubhub/core/checkin"
)

// Phase is the moment of an event a student checks in at.
type Phase string

const (
	PhaseStart Phase = "START"
	PhaseMid   Phase = "MID"
	PhaseEnd   Phase = "END"
)

var Phases = []Phase{PhaseStart, PhaseMid, PhaseEnd}

func (p Phase) Valid() bool {
	for _, phase := range Phases {
		if p == phase {
			return true
		}
	}
	return false
}

type Event struct {
	ID          string    `json:"id"`
	ClubID      string    `json:"club_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	StartsAt    time.Time `json:"starts_at"` // UTC
	EndsAt      time.Time `json:"ends_at"`   // UTC
	CheckInCode string    `json:"check_in_code"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// CheckInTarget returns what a check-in QR session is opened for.
func (evt Event) CheckInTarget() checkin.Target {
	return checkin.Target{EventID: evt.ID, EventName: evt.Name, CheckInCode: evt.CheckInCode}
}

// NewEvent contains information needed to create a new Event.
type NewEvent struct {
	ClubID      string    `json:"club_id" validate:"required,max=64"`
	Name        string    `json:"name" validate:"required,max=200"`
	Description string    `json:"description" validate:"max=2000"`
	Location    string    `json:"location" validate:"max=200"`
	StartsAt    time.Time `json:"starts_at" validate:"required"`
	EndsAt      time.Time `json:"ends_at" validate:"required"`
}

func (ne *NewEvent) Validate(validate *validator.Validate) error {
	ne.ClubID = core.CleanString(ne.ClubID)
	ne.Name = core.CleanString(ne.Name)
	ne.Description = core.CleanString(ne.Description)
	ne.Location = core.CleanString(ne.Location)
	return validate.Struct(ne)
}

type CheckIn struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	StudentID string    `json:"student_id"`
	Phase     Phase     `json:"phase"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// CheckInRequest is what a student submits after scanning a check-in QR code.
type CheckInRequest struct {
	Code      string `json:"code" validate:"required"`
	StudentID string `json:"student_id" validate:"required,max=64,alphanum_"`
	Phase     Phase  `json:"phase" validate:"required,phase"`
}

func (req *CheckInRequest) Validate(validate *validator.Validate) error {
	req.Code = NormalizeCode(req.Code)
	req.StudentID = core.CleanString(req.StudentID)
	req.Phase = Phase(strings.ToUpper(core.CleanString(string(req.Phase))))
	return validate.Struct(req)
}

type QueryFilter struct {
	Search     string    `query:"search"`
	ClubID     string    `query:"club_id"`
	StartsFrom time.Time `query:"starts_from"`
	StartsTo   time.Time `query:"starts_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.ClubID == "" && qf.StartsFrom.IsZero() && qf.StartsTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.ClubID = core.CleanString(qf.ClubID)
}

// GetFilter selects a single Event, by ID or else by check-in code.
type GetFilter struct {
	ID          string
	CheckInCode string
}

// OrderingFields maps the accepted `ordering` params to their columns.
var OrderingFields = map[string]string{
	"name":       "name",
	"starts_at":  "starts_at",
	"created_at": "created_at",
}

var DefaultOrdering = []core.DBOrdering{
	{Field: "starts_at", Ascending: true},
	{Field: "name", Ascending: true},
}
