package render

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/nkiryanov/fittrack/internal/models"
)

func configureValidator(validate *validator.Validate) {
	_ = validate.RegisterValidation("exercise", validateExerciseType)
	validate.RegisterTagNameFunc(useJSONTagNames)
}

// Return 'json' (or 'query' for query params) tag name instead of struct field name
// Look at documentation of 'RegisterTagNameFunc' for more details
func useJSONTagNames(fld reflect.StructField) string {
	tag := fld.Tag.Get("json")
	if tag == "" {
		tag = fld.Tag.Get("query")
	}

	name := strings.SplitN(tag, ",", 2)[0]
	// skip if tag key says it should be ignored
	if name == "-" {
		return ""
	}
	return name
}

// Field is one of models.ExerciseTypes. Works with string and *string fields
func validateExerciseType(fl validator.FieldLevel) bool {
	value := fl.Field().String()

	for _, exercise := range models.ExerciseTypes {
		if value == exercise {
			return true
		}
	}
	return false
}
