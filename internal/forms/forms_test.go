package forms

import (
	"errors"
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		form       any
		wantFields []string
	}{
		{"login ok", &Login{Email: "asha@example.com", Password: "secret"}, nil},
		{"login missing", &Login{}, []string{"email", "password"}},
		{"login bad email", &Login{Email: "asha", Password: "x"}, []string{"email"}},
		{"signup ok", &Signup{FullName: "Asha Rao", Username: "asha", Email: "asha@example.com", Password: "secret1", DOB: "2001-04-09", Gender: "female"}, nil},
		{"signup optional fields empty", &Signup{FullName: "Asha Rao", Username: "asha", Email: "asha@example.com", Password: "secret1"}, nil},
		{"signup bad dob and gender", &Signup{FullName: "A", Username: "asha", Email: "asha@example.com", Password: "secret1", DOB: "09/04/2001", Gender: "robot"}, []string{"dob", "gender"}},
		{"signup short password", &Signup{FullName: "A", Username: "asha", Email: "asha@example.com", Password: "123"}, []string{"password"}},
		{"forgot ok", &Forgot{Email: " asha@example.com "}, nil},
		{"otp letters", &OTP{Email: "asha@example.com", Code: "12ab56"}, []string{"otp"}},
		{"otp short", &OTP{Email: "asha@example.com", Code: "1234"}, []string{"otp"}},
		{"otp ok", &OTP{Email: "asha@example.com", Code: "042917"}, nil},
		{"reset mismatch", &Reset{Email: "asha@example.com", NewPassword: "secret1", Confirm: "secret2"}, []string{"confirm_password"}},
		{"reset ok", &Reset{Email: "asha@example.com", NewPassword: "secret1", Confirm: "secret1"}, nil},
		{"profile ok", &Profile{FullName: "Asha", DOB: "2001-04-09", Gender: "other"}, nil},
		{"profile bad date", &Profile{DOB: "2001-13-40"}, []string{"dob"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.form)
			if len(tt.wantFields) == 0 {
				if err != nil {
					t.Fatalf("Validate() = %v", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Validate() = %v, want ValidationError", err)
			}
			if len(ve.Fields) != len(tt.wantFields) {
				t.Errorf("fields = %v, want %v", ve.Fields, tt.wantFields)
			}
			for _, f := range tt.wantFields {
				if ve.Fields[f] == "" {
					t.Errorf("missing message for %q in %v", f, ve.Fields)
				}
			}
		})
	}
}

func TestMessages(t *testing.T) {
	err := Validate(&Reset{Email: "asha@example.com", NewPassword: "secret1", Confirm: "nope"})
	if got := FieldErrors(err)["confirm_password"]; got != "passwords do not match" {
		t.Errorf("confirm message = %q", got)
	}
	err = Validate(&Profile{DOB: "yesterday"})
	if got := FieldErrors(err)["dob"]; !strings.Contains(got, "YYYY-MM-DD") {
		t.Errorf("dob message = %q", got)
	}
	if !strings.HasPrefix(err.Error(), "invalid input: ") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestTrimsInput(t *testing.T) {
	f := &Forgot{Email: "  asha@example.com\n"}
	if err := Validate(f); err != nil {
		t.Fatal(err)
	}
	if f.Email != "asha@example.com" {
		t.Errorf("Email = %q", f.Email)
	}

	r := &Reset{Email: "asha@example.com", NewPassword: " pass word ", Confirm: " pass word "}
	if err := Validate(r); err != nil {
		t.Fatal(err)
	}
	if r.NewPassword != " pass word " {
		t.Errorf("password was trimmed: %q", r.NewPassword)
	}
}

func TestFieldErrorsOnOtherError(t *testing.T) {
	if FieldErrors(errors.New("x")) != nil {
		t.Error("FieldErrors of plain error should be nil")
	}
}
