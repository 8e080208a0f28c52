// Package forms validates account input before it is sent to the backend.
package forms

import (
	"errors"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// Login is the sign-in form.
type Login struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Signup is the registration form. DOB and Gender are optional.
type Signup struct {
	FullName string `json:"full_name" validate:"required,max=100"`
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	DOB      string `json:"dob" validate:"omitempty,datetime=2006-01-02"`
	Gender   string `json:"gender" validate:"omitempty,oneof=male female other"`
}

// Forgot starts the password reset.
type Forgot struct {
	Email string `json:"email" validate:"required,email"`
}

// OTP is the one-time code sent by email.
type OTP struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"otp" validate:"required,len=6,numeric"`
}

// Reset sets the new password after the code was verified.
type Reset struct {
	Email       string `json:"email" validate:"required,email"`
	NewPassword string `json:"new_password" validate:"required,min=6"`
	Confirm     string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}

// Profile holds the editable profile fields.
type Profile struct {
	FullName string `json:"full_name" validate:"omitempty,max=100"`
	DOB      string `json:"dob" validate:"omitempty,datetime=2006-01-02"`
	Gender   string `json:"gender" validate:"omitempty,oneof=male female other"`
}

// ValidationError maps field names to human-readable messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	msgs := make([]string, 0, len(names))
	for _, name := range names {
		msgs = append(msgs, e.Fields[name])
	}
	return "invalid input: " + strings.Join(msgs, "; ")
}

var (
	once     sync.Once
	validate *govalidator.Validate
	trans    ut.Translator
)

func setup() {
	validate = govalidator.New(govalidator.WithRequiredStructEnabled())
	// Use JSON tag name for field names in error messages.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, trans)
	registerMessage("datetime", "{0} must be a date in YYYY-MM-DD format")
	registerMessage("eqfield", "passwords do not match")
}

func registerMessage(tag, text string) {
	_ = validate.RegisterTranslation(tag, trans,
		func(ut ut.Translator) error { return ut.Add(tag, text, true) },
		func(ut ut.Translator, fe govalidator.FieldError) string {
			msg, _ := ut.T(tag, fe.Field())
			return msg
		})
}

// Validate checks v, a pointer to one of the form structs. Leading and
// trailing spaces are trimmed from every string field first.
func Validate(v any) error {
	once.Do(setup)
	trimStrings(v)
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var ve govalidator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		if _, ok := fields[fe.Field()]; !ok {
			fields[fe.Field()] = fe.Translate(trans)
		}
	}
	return &ValidationError{Fields: fields}
}

// FieldErrors returns the per-field messages of err, or nil.
func FieldErrors(err error) map[string]string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Fields
	}
	return nil
}

func trimStrings(v any) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return
	}
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if f.Kind() == reflect.String && f.CanSet() && !strings.Contains(rv.Type().Field(i).Name, "Password") && rv.Type().Field(i).Name != "Confirm" {
			f.SetString(strings.TrimSpace(f.String()))
		}
	}
}
