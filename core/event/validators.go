package event

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/clubhub/core"
)

var (
	phaseTag  = "phase"
	phaseText = "phase must be one of START, MID or END"

	endsAfterStartsTag  = "endsafterstarts"
	endsAfterStartsText = "an event must end after it starts"
)

// InitValidators registers the event validation rules on `validate`.
// core.InitValidators must have been called first.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(phaseTag, phaseValidation)
	core.RegisterCustomTranslation(validate, translator, phaseTag, phaseText)

	validate.RegisterStructValidation(newEventStructValidation, NewEvent{})
	core.RegisterCustomTranslation(validate, translator, endsAfterStartsTag, endsAfterStartsText)
}

func phaseValidation(fl validator.FieldLevel) bool {
	return Phase(fl.Field().String()).Valid()
}

func newEventStructValidation(sl validator.StructLevel) {
	ne := sl.Current().Interface().(NewEvent)
	if ne.StartsAt.IsZero() || ne.EndsAt.IsZero() {
		return // reported by `required`
	}
	if !ne.EndsAt.After(ne.StartsAt) {
		sl.ReportError(ne.EndsAt, "ends_at", "EndsAt", endsAfterStartsTag, "")
	}
}
