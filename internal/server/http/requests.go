package http

import (
	"fmt"

	"github.com/dmitrijs2005/buddyauth/internal/common"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
)

// MinPasswordLength is enforced on signup and reset; stronger passwords are
// only recommended.
const MinPasswordLength = 8

type validatable interface {
	Validate() error
}

// bind decodes the JSON body into req and validates it.
func bind(c *fiber.Ctx, req validatable) error {
	if err := c.BodyParser(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}
	return nil
}

type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (r SignupRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(MinPasswordLength, 256)),
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
	)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 256)),
	)
}

// RefreshRequest is used by both refresh and logout.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (r RefreshRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required, validation.Length(10, 0)),
	)
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

func (r ForgotPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (r ResetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required, validation.Length(10, 0)),
		validation.Field(&r.Password, validation.Required, validation.Length(MinPasswordLength, 256)),
	)
}

type UpdateProfileRequest struct {
	Name      *string `json:"name"`
	AvatarURL *string `json:"avatarUrl"`
}

func (r UpdateProfileRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&r.AvatarURL, validation.NilOrNotEmpty, is.URL),
	)
}

// AvatarUploadRequest asks for a presigned upload URL.
type AvatarUploadRequest struct {
	ContentType string `json:"contentType"`
}

func (r AvatarUploadRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ContentType, validation.Required,
			validation.In("image/png", "image/jpeg", "image/webp", "image/gif")),
	)
}

type UpdateRoleRequest struct {
	Role string `json:"role"`
}

func (r UpdateRoleRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Role, validation.Required, validation.Length(1, 64)),
	)
}
