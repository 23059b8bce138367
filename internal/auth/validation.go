package auth

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// Messages returned for field-level violations.
const (
	msgInvalidEmail   = "email must be valid format!"
	msgStrongPassword = "At least 6 characters long with 1 uppercase, 1 lowercase & 1 digit"
	msgOTPLength      = "otp must be 6 digits long!"
	msgOTPInteger     = "otp must be integer!"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("strongpassword", isStrongPassword); err != nil {
		panic(err)
	}
	if err := v.RegisterValidation("integral", isIntegral); err != nil {
		panic(err)
	}
	return v
}

// isStrongPassword requires at least 6 characters with an upper-case
// letter, a lower-case letter, a digit and no whitespace.
func isStrongPassword(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if len([]rune(s)) < 6 {
		return false
	}

	var upper, lower, digit bool
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			return false
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}

func isIntegral(fl validator.FieldLevel) bool {
	f := fl.Field().Float()
	return f == math.Trunc(f)
}

// Validate checks a request DTO against its struct tags. Every offending
// field is reported, not just the first.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating request: %w", err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := fields[fe.Field()]; seen {
			continue
		}
		fields[fe.Field()] = fieldMessage(fe)
	}
	return &ValidationError{Fields: fields}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required!"
	case "email":
		return msgInvalidEmail
	case "strongpassword":
		return msgStrongPassword
	case "integral":
		return msgOTPInteger
	case "min", "max":
		if fe.Field() == "otp" {
			return msgOTPLength
		}
		return fe.Field() + " is out of range!"
	default:
		return fe.Field() + " is invalid!"
	}
}

// Registration is the validated input to Service.Register.
type Registration struct {
	Email    string
	Password string
	Profile  Profile
}

// RegistrationRequest is a kind-specific registration body.
type RegistrationRequest interface {
	// Normalize trims string fields and lower-cases the email. The password
	// is left untouched.
	Normalize()
	Registration() Registration
}

// NewRegistrationRequest returns an empty registration body for role.
func NewRegistrationRequest(role Role) (RegistrationRequest, error) {
	switch role {
	case RoleSuperAdmin, RoleAdmin:
		return &AdminRegistration{}, nil
	case RoleRetailer:
		return &RetailerRegistration{}, nil
	case RoleCustomer:
		return &CustomerRegistration{}, nil
	default:
		return nil, ErrUnknownRole
	}
}

// AdminRegistration is the body for super-admin and admin registration.
type AdminRegistration struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	Phone     string `json:"phone"`
	Image     string `json:"image"`
}

func (r *AdminRegistration) Normalize() {
	trim(&r.FirstName, &r.LastName, &r.Phone, &r.Image)
	r.Email = NormalizeEmail(r.Email)
}

func (r *AdminRegistration) Registration() Registration {
	return Registration{
		Email:    r.Email,
		Password: r.Password,
		Profile: compactProfile(map[string]string{
			"firstName": r.FirstName,
			"lastName":  r.LastName,
			"phone":     r.Phone,
			"image":     r.Image,
		}),
	}
}

// RetailerRegistration is the body for retailer registration.
type RetailerRegistration struct {
	StoreName  string `json:"storeName" validate:"required"`
	FirstName  string `json:"firstName" validate:"required"`
	LastName   string `json:"lastName" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,strongpassword"`
	Phone      string `json:"phone"`
	Country    string `json:"country" validate:"required"`
	Province   string `json:"province" validate:"required"`
	City       string `json:"city" validate:"required"`
	PostalCode string `json:"postalCode" validate:"required"`
	Address    string `json:"address" validate:"required"`
	About      string `json:"about"`
	Website    string `json:"website"`
}

func (r *RetailerRegistration) Normalize() {
	trim(&r.StoreName, &r.FirstName, &r.LastName, &r.Phone, &r.Country,
		&r.Province, &r.City, &r.PostalCode, &r.Address, &r.About, &r.Website)
	r.Email = NormalizeEmail(r.Email)
}

func (r *RetailerRegistration) Registration() Registration {
	return Registration{
		Email:    r.Email,
		Password: r.Password,
		Profile: compactProfile(map[string]string{
			"storeName":  r.StoreName,
			"firstName":  r.FirstName,
			"lastName":   r.LastName,
			"phone":      r.Phone,
			"country":    r.Country,
			"province":   r.Province,
			"city":       r.City,
			"postalCode": r.PostalCode,
			"address":    r.Address,
			"about":      r.About,
			"website":    r.Website,
		}),
	}
}

// CustomerRegistration is the body for customer registration.
type CustomerRegistration struct {
	FullName string `json:"fullName" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,strongpassword"`
	Phone    string `json:"phone"`
}

func (r *CustomerRegistration) Normalize() {
	trim(&r.FullName, &r.Phone)
	r.Email = NormalizeEmail(r.Email)
}

func (r *CustomerRegistration) Registration() Registration {
	return Registration{
		Email:    r.Email,
		Password: r.Password,
		Profile: compactProfile(map[string]string{
			"fullName": r.FullName,
			"phone":    r.Phone,
		}),
	}
}

// LoginRequest is the body of every login route.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (r *LoginRequest) Normalize() {
	r.Email = NormalizeEmail(r.Email)
}

// OTPRequest is the body of the otp-verify routes. The code arrives as a
// JSON number.
type OTPRequest struct {
	OTP *float64 `json:"otp" validate:"required,integral,min=100000,max=999999"`
}

// Code returns the submitted code in its stored string form.
func (r *OTPRequest) Code() string {
	if r.OTP == nil {
		return ""
	}
	return strconv.FormatInt(int64(*r.OTP), 10)
}

func trim(fields ...*string) {
	for _, f := range fields {
		*f = strings.TrimSpace(*f)
	}
}

func compactProfile(m map[string]string) Profile {
	p := make(Profile, len(m))
	for k, v := range m {
		if v != "" {
			p[k] = v
		}
	}
	return p
}
