package http

import (
	"context"
	"time"

	"github.com/dmitrijs2005/buddyauth/internal/server/models"
	"github.com/dmitrijs2005/buddyauth/internal/server/services"
	"github.com/gofiber/fiber/v2"
)

// Accounts is the account flow API used by the auth routes.
type Accounts interface {
	Signup(ctx context.Context, email, password, name string) (*services.AuthResult, error)
	Login(ctx context.Context, email, password string) (*services.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*services.AuthResult, error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutAll(ctx context.Context, userID string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) ([]string, error)
}

type Profiles interface {
	Update(ctx context.Context, userID string, upd models.ProfileUpdate) (*models.Profile, error)
	List(ctx context.Context) ([]*models.Profile, error)
	UpdateRole(ctx context.Context, id, role string) (*models.Profile, error)
}

type Avatars interface {
	PresignUpload(ctx context.Context, userID, contentType string) (*services.AvatarUpload, error)
	PresignDownload(ctx context.Context, userID string) (string, error)
}

type SessionAuthenticator interface {
	Authenticate(ctx context.Context, header string) (*services.AuthSession, error)
	AuthenticateAdmin(ctx context.Context, header string) (*services.AuthSession, error)
	IsAdmin(s *services.AuthSession) bool
}

type Handler struct {
	accounts Accounts
	profiles Profiles
	avatars  Avatars
	auth     SessionAuthenticator
	started  time.Time
}

func NewHandler(accounts Accounts, profiles Profiles, avatars Avatars, auth SessionAuthenticator) *Handler {
	return &Handler{
		accounts: accounts,
		profiles: profiles,
		avatars:  avatars,
		auth:     auth,
		started:  time.Now(),
	}
}

type userView struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":   "ok",
		"uptimeMs": time.Since(h.started).Milliseconds(),
	})
}

func (h *Handler) Signup(c *fiber.Ctx) error {
	var req SignupRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.accounts.Signup(c.UserContext(), req.Email, req.Password, req.Name)
	if err != nil {
		return err
	}
	return created(c, authView(res))
}

func (h *Handler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.accounts.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return ok(c, authView(res))
}

func (h *Handler) Refresh(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.accounts.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return err
	}
	return ok(c, authView(res))
}

func (h *Handler) Logout(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.accounts.Logout(c.UserContext(), req.RefreshToken); err != nil {
		return err
	}
	return ok(c, fiber.Map{"success": true})
}

func (h *Handler) LogoutAll(c *fiber.Ctx) error {
	s, err := sessionFrom(c)
	if err != nil {
		return err
	}
	if err := h.accounts.LogoutAll(c.UserContext(), s.Principal.ID); err != nil {
		return err
	}
	return ok(c, fiber.Map{"success": true})
}

func (h *Handler) Me(c *fiber.Ctx) error {
	s, err := sessionFrom(c)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{
		"user":    userView{ID: s.Principal.ID, Email: s.Principal.Email},
		"profile": s.Profile,
		"isAdmin": h.auth.IsAdmin(s),
	})
}

func (h *Handler) UpdateProfile(c *fiber.Ctx) error {
	s, err := sessionFrom(c)
	if err != nil {
		return err
	}
	var req UpdateProfileRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	p, err := h.profiles.Update(c.UserContext(), s.Principal.ID, models.ProfileUpdate{Name: req.Name, AvatarURL: req.AvatarURL})
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"profile": p})
}

func (h *Handler) UploadAvatar(c *fiber.Ctx) error {
	s, err := sessionFrom(c)
	if err != nil {
		return err
	}
	var req AvatarUploadRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	up, err := h.avatars.PresignUpload(c.UserContext(), s.Principal.ID, req.ContentType)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"key": up.Key, "uploadUrl": up.UploadURL, "profile": up.Profile})
}

func (h *Handler) Avatar(c *fiber.Ctx) error {
	s, err := sessionFrom(c)
	if err != nil {
		return err
	}
	url, err := h.avatars.PresignDownload(c.UserContext(), s.Principal.ID)
	if err != nil {
		return err
	}
	return c.Redirect(url, fiber.StatusFound)
}

func (h *Handler) ForgotPassword(c *fiber.Ctx) error {
	var req ForgotPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.accounts.ForgotPassword(c.UserContext(), req.Email); err != nil {
		return err
	}
	return ok(c, fiber.Map{"sent": true})
}

func (h *Handler) ResetPassword(c *fiber.Ctx) error {
	var req ResetPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	recs, err := h.accounts.ResetPassword(c.UserContext(), req.Token, req.Password)
	if err != nil {
		return err
	}
	if recs == nil {
		recs = []string{}
	}
	return ok(c, fiber.Map{"passwordRecommendations": recs})
}

func (h *Handler) ListUsers(c *fiber.Ctx) error {
	s, err := sessionFrom(c)
	if err != nil {
		return err
	}
	profiles, err := h.profiles.List(c.UserContext())
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{
		"profiles": profiles,
		"viewer":   userView{ID: s.Principal.ID, Email: s.Principal.Email},
	})
}

func (h *Handler) UpdateRole(c *fiber.Ctx) error {
	var req UpdateRoleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	p, err := h.profiles.UpdateRole(c.UserContext(), c.Params("id"), req.Role)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"profile": p})
}

type authResponse struct {
	AccessToken             string          `json:"accessToken"`
	RefreshToken            string          `json:"refreshToken"`
	User                    userView        `json:"user"`
	Profile                 *models.Profile `json:"profile"`
	PasswordRecommendations []string        `json:"passwordRecommendations,omitempty"`
}

func authView(res *services.AuthResult) authResponse {
	out := authResponse{
		AccessToken:             res.AccessToken,
		RefreshToken:            res.RefreshToken,
		Profile:                 res.Profile,
		PasswordRecommendations: res.PasswordRecommendations,
	}
	if res.User != nil {
		out.User = userView{ID: res.User.ID, Email: res.User.Email}
	}
	return out
}
