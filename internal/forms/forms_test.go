package forms

import (
	"strings"
	"testing"
)

func TestValidateTweetForm(t *testing.T) {
	if errs := Validate(TweetForm{Text: "hello world"}); errs != nil {
		t.Fatalf("expected valid form, got %v", errs)
	}
	errs := Validate(TweetForm{})
	if errs["text"] == "" {
		t.Fatalf("expected error on empty text, got %v", errs)
	}
	errs = Validate(TweetForm{Text: strings.Repeat("x", 281)})
	if errs["text"] == "" {
		t.Fatalf("expected error on overlong text, got %v", errs)
	}
	if errs := Validate(TweetForm{Text: strings.Repeat("x", 280)}); errs != nil {
		t.Fatalf("280 chars must be accepted, got %v", errs)
	}
}

func TestValidateRegisterForm(t *testing.T) {
	valid := RegisterForm{
		Username:  "alice42",
		Email:     "alice@example.com",
		Password1: "supersecret",
		Password2: "supersecret",
	}
	if errs := Validate(valid); errs != nil {
		t.Fatalf("expected valid form, got %v", errs)
	}

	tests := []struct {
		name  string
		form  RegisterForm
		field string
	}{
		{
			name:  "missing username",
			form:  RegisterForm{Password1: "supersecret", Password2: "supersecret"},
			field: "username",
		},
		{
			name:  "username with symbols",
			form:  RegisterForm{Username: "al!ce", Password1: "supersecret", Password2: "supersecret"},
			field: "username",
		},
		{
			name:  "bad email",
			form:  RegisterForm{Username: "alice", Email: "nope", Password1: "supersecret", Password2: "supersecret"},
			field: "email",
		},
		{
			name:  "short password",
			form:  RegisterForm{Username: "alice", Password1: "short", Password2: "short"},
			field: "password1",
		},
		{
			name:  "password mismatch",
			form:  RegisterForm{Username: "alice", Password1: "supersecret", Password2: "different"},
			field: "password2",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			errs := Validate(tc.form)
			if errs[tc.field] == "" {
				t.Fatalf("expected error on %s, got %v", tc.field, errs)
			}
		})
	}
}

func TestValidateRegisterFormEmailOptional(t *testing.T) {
	form := RegisterForm{Username: "alice", Password1: "supersecret", Password2: "supersecret"}
	if errs := Validate(form); errs != nil {
		t.Fatalf("email must be optional, got %v", errs)
	}
}

func TestValidateLoginForm(t *testing.T) {
	if errs := Validate(LoginForm{Username: "alice", Password: "pw"}); errs != nil {
		t.Fatalf("expected valid form, got %v", errs)
	}
	errs := Validate(LoginForm{})
	if errs["username"] == "" || errs["password"] == "" {
		t.Fatalf("expected errors on both fields, got %v", errs)
	}
}
