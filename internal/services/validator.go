package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"unholygrail/internal/repositories"

	"github.com/go-playground/validator/v10"
)

const passwordLengthMessage = "password length must be between 5 and 20 characters"

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

var emailPattern = regexp.MustCompile(`^\w+([.-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,3})+$`)

// SignupRequest represents the request body for signup.
type SignupRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required,min=5,max=20,bcryptlen"`
	Email    string `json:"email" validate:"required,listingemail"`
}

// SigninRequest represents the request body for signin.
type SigninRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RecoverRequest represents the request body for password recovery.
type RecoverRequest struct {
	Username string `json:"username" validate:"required"`
}

// ResetRequest represents the request body for a password reset.
type ResetRequest struct {
	Password string `json:"password" validate:"required,min=5,max=20,bcryptlen"`
}

// RequestValidator checks request preconditions before any state is touched.
type RequestValidator struct {
	validate *validator.Validate
	users    repositories.UserRepository
}

// NewRequestValidator creates a RequestValidator backed by users for the
// availability and existence checks.
func NewRequestValidator(users repositories.UserRepository) *RequestValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return strings.ToLower(fld.Name)
		}
		return name
	})
	_ = v.RegisterValidation("bcryptlen", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= maxPasswordBytes
	})
	_ = v.RegisterValidation("listingemail", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})

	return &RequestValidator{
		validate: v,
		users:    users,
	}
}

// ValidateSignup checks field presence, password length, email format and
// finally username availability. The store's unique index remains the
// authority on availability; this check only yields a friendlier message.
func (v *RequestValidator) ValidateSignup(ctx context.Context, req SignupRequest) error {
	if err := v.structErr(req, "%s required in post body"); err != nil {
		return err
	}

	_, err := v.users.GetByUsername(ctx, req.Username)
	switch {
	case err == nil:
		return &ValidationError{
			Field:   "username",
			Message: fmt.Sprintf("Username %s is already in use.", req.Username),
			Err:     ErrUsernameTaken,
		}
	case errors.Is(err, repositories.ErrUserNotFound):
		return nil
	default:
		return err
	}
}

// ValidateSignin only checks field presence.
func (v *RequestValidator) ValidateSignin(req SigninRequest) error {
	return v.structErr(req, "%s required for signin")
}

// ValidateRecover checks that the username names an existing user.
func (v *RequestValidator) ValidateRecover(ctx context.Context, req RecoverRequest) error {
	if err := v.structErr(req, "%s required in post body"); err != nil {
		return err
	}

	_, err := v.users.GetByUsername(ctx, req.Username)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrUserNotFound):
		return &ValidationError{
			Field:   "username",
			Message: fmt.Sprintf("Username %s does not exist.", req.Username),
			Err:     ErrUserNotFound,
		}
	default:
		return err
	}
}

// ValidateReset checks the new password length.
func (v *RequestValidator) ValidateReset(req ResetRequest) error {
	return v.structErr(req, "%s required in post body")
}

// structErr runs the tag rules on req and converts the first violation into a
// ValidationError. Missing fields win over format rules.
func (v *RequestValidator) structErr(req interface{}, requiredFormat string) error {
	err := v.validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Message: "Invalid request body", Err: err}
	}

	first := fieldErrs[0]
	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			first = fe
			break
		}
	}

	field := first.Field()
	var msg string
	switch first.Tag() {
	case "required":
		msg = fmt.Sprintf(requiredFormat, field)
	case "min", "max", "bcryptlen":
		msg = passwordLengthMessage
	case "listingemail":
		msg = "email is invalid"
	default:
		msg = fmt.Sprintf("%s is invalid", field)
	}
	return &ValidationError{Field: field, Message: msg}
}
