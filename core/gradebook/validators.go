package gradebook

import (
	"math"
	"reflect"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/alama/core"
)

const (
	MinMarks = 0.0
	MaxMarks = 100.0
)

var (
	marksTag  = "marks"
	marksText = "marks must be a number between 0 and 100"
)

// InitValidators registers the gradebook validation tags.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(marksTag, marksValidation)
	core.RegisterCustomTranslation(validate, translator, marksTag, marksText)
}

// ValidMarks reports whether m can be stored as marks.
func ValidMarks(m float64) bool {
	return !math.IsNaN(m) && m >= MinMarks && m <= MaxMarks
}

func marksValidation(fl validator.FieldLevel) bool {
	field := fl.Field()
	switch field.Kind() {
	case reflect.Float32, reflect.Float64:
		return ValidMarks(field.Float())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return ValidMarks(float64(field.Int()))
	default:
		return false
	}
}
