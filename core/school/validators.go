package school

import (
	"reflect"
	"regexp"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/fitprize/fitprize/core"
	"github.com/fitprize/fitprize/core/grade"
	"github.com/fitprize/fitprize/core/user"
)

var (
	gradeTag  = "grade"
	gradeText = "{0} must be one of: Pre-K, Kindergarten, 1st to 12th Grade"

	phoneTag   = "phone"
	phoneText  = "enter a valid number with country code (e.g. +12345678901)"
	phoneRegex = regexp.MustCompile(`^\+[0-9]{10,15}$`)
)

// InitValidators registers the school domain validation tags and the password policy of teachers.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(gradeTag, gradeValidation)
	core.RegisterCustomTranslation(validate, translator, gradeTag, gradeText)

	_ = validate.RegisterValidation(phoneTag, phoneValidation)
	core.RegisterCustomTranslation(validate, translator, phoneTag, phoneText)

	validate.RegisterStructValidation(schoolStructValidation, NewSchool{}, TeacherSignup{}, NewTeacher{}, UpdateTeacher{})
}

func schoolStructValidation(sl validator.StructLevel) {
	switch v := sl.Current().Interface().(type) {
	case NewSchool:
		user.ValidatePassword(sl, "password", v.Password, v.Name, v.Email)
	case TeacherSignup:
		user.ValidatePassword(sl, "password", v.Password, v.Name, v.Email)
	case NewTeacher:
		if v.Password != "" {
			user.ValidatePassword(sl, "password", v.Password, v.Name, v.Email)
		}
	case UpdateTeacher:
		if v.Password.Valid && v.Password.Value != "" {
			var name, email string
			if v.Name != nil {
				name = *v.Name
			}
			if v.Email != nil {
				email = *v.Email
			}
			user.ValidatePassword(sl, "password", v.Password.Value, name, email)
		}
	}
}

func stringField(fl validator.FieldLevel) (string, bool) {
	fld := fl.Field()
	if fld.Kind() == reflect.Ptr {
		if fld.IsNil() {
			return "", false
		}
		fld = fld.Elem()
	}
	return fld.String(), true
}

func gradeValidation(fl validator.FieldLevel) bool {
	s, ok := stringField(fl)
	if !ok {
		return true
	}
	_, valid := grade.Label(s)
	return valid
}

func phoneValidation(fl validator.FieldLevel) bool {
	s, ok := stringField(fl)
	if !ok {
		return true
	}
	return phoneRegex.MatchString(s)
}
