package core

import (
	"unicode"

	"github.com/go-playground/validator/v10"
)

// Field-level messages returned by ValidateRegistration
const (
	MsgPasswordRequired = "Please provide a valid password."
	MsgPasswordPolicy   = "Please provide a password thats at least 8 characters with at least one letter and one number"
	MsgConfirmRequired  = "Please enter your password again."
	MsgPasswordMismatch = "Passwords do not match"
	MsgUsernameRequired = "Please provide a username."
	MsgInviteRequired   = "Please provide your invite code."
	MsgUsernamePattern  = "Your username must be 1-48 uppercase or lowercase characters or digits with no spaces."
)

// MinPasswordLength is the shortest password the policy accepts
const MinPasswordLength = 8

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("password_policy", func(fl validator.FieldLevel) bool {
		return PasswordMeetsPolicy(fl.Field().String())
	})
	return v
}

// PasswordMeetsPolicy reports whether a password has at least 8 characters,
// a letter and a digit
func PasswordMeetsPolicy(password string) bool {
	if len([]rune(password)) < MinPasswordLength {
		return false
	}
	var letter, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return letter && digit
}

// ValidUsername reports whether a username is 1-48 ASCII letters or digits
func ValidUsername(username string) bool {
	return validate.Var(username, "required,alphanum,max=48") == nil
}

// ValidateRegistration checks registration input in a fixed order and returns
// the first failure as a *ValidationError. Invite existence is checked by the store.
func ValidateRegistration(username, password, confirmPassword, inviteCode string) error {
	switch {
	case password == "":
		return &ValidationError{Field: "password", Message: MsgPasswordRequired}
	case validate.Var(password, "password_policy") != nil:
		return &ValidationError{Field: "password", Message: MsgPasswordPolicy}
	case confirmPassword == "":
		return &ValidationError{Field: "confirmPassword", Message: MsgConfirmRequired}
	case confirmPassword != password:
		return &ValidationError{Field: "confirmPassword", Message: MsgPasswordMismatch}
	case username == "":
		return &ValidationError{Field: "username", Message: MsgUsernameRequired}
	case inviteCode == "":
		return &ValidationError{Field: "inviteCode", Message: MsgInviteRequired}
	case !ValidUsername(username):
		return &ValidationError{Field: "username", Message: MsgUsernamePattern}
	}
	return nil
}
