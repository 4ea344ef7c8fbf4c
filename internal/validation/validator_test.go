package validation

import (
	"strings"
	"testing"
)

type loginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
}

type sensorForm struct {
	Uid  string `validate:"required,hex,len=16"`
	Name string `validate:"max=10"`
	QoS  int    `validate:"min=0,max=2"`
}

func TestValidateRequired(t *testing.T) {
	v := NewValidator()

	err := v.Validate(loginForm{})
	if err == nil || !strings.Contains(err.Error(), "required") {
		t.Fatalf("Validate = %v, want required error", err)
	}

	if err := v.Validate(loginForm{Email: "user@example.com", Password: "secret1"}); err != nil {
		t.Fatalf("Validate = %v, want nil", err)
	}
}

func TestValidateEmail(t *testing.T) {
	v := NewValidator()

	err := v.Validate(loginForm{Email: "not-an-email", Password: "secret1"})
	if err == nil || !strings.Contains(err.Error(), "email") {
		t.Fatalf("Validate = %v, want email error", err)
	}
}

func TestValidateMinLength(t *testing.T) {
	v := NewValidator()

	err := v.Validate(loginForm{Email: "user@example.com", Password: "abc"})
	if err == nil || !strings.Contains(err.Error(), "minimum length is 6") {
		t.Fatalf("Validate = %v, want min length error", err)
	}
}

func TestValidateHexAndLen(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name    string
		form    sensorForm
		wantErr string
	}{
		{"valid", sensorForm{Uid: "3f8cde26000a07e0"}, ""},
		{"not hex", sensorForm{Uid: "zz8cde26000a07e0"}, "invalid hex"},
		{"wrong length", sensorForm{Uid: "3f8cde26"}, "length must be 16"},
		{"name too long", sensorForm{Uid: "3f8cde26000a07e0", Name: "abcdefghijk"}, "maximum length is 10"},
		{"int above max", sensorForm{Uid: "3f8cde26000a07e0", QoS: 3}, "maximum value is 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.form)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidatePointerAndNonStruct(t *testing.T) {
	v := NewValidator()

	if err := v.Validate(&sensorForm{Uid: "3f8cde26000a07e0"}); err != nil {
		t.Fatalf("Validate pointer = %v, want nil", err)
	}

	if err := v.Validate("not a struct"); err == nil {
		t.Fatal("expected error for non-struct value")
	}
}
