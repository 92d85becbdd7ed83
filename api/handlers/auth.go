package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/OldStager01/heartrisk/internal/auth"
	"github.com/OldStager01/heartrisk/internal/events"
	"github.com/OldStager01/heartrisk/internal/logger"
	"github.com/OldStager01/heartrisk/internal/metrics"
	"github.com/OldStager01/heartrisk/pkg/database/queries"
	"github.com/OldStager01/heartrisk/pkg/models"
	"github.com/OldStager01/heartrisk/pkg/validation"
	"github.com/gin-gonic/gin"
)

var errInvalidCredentials = errors.New("invalid credentials")

// UserStore is the part of the user repository the auth endpoints need.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// EventSource hands out a trace-aware event publisher.
type EventSource interface {
	Publisher(ctx context.Context) *events.Publisher
}

type CookieSettings struct {
	Name     string
	Path     string
	Secure   bool
	HTTPOnly bool
}

type AuthHandler struct {
	users       UserStore
	authService *auth.Service
	events      EventSource
	metrics     *metrics.Metrics
	cookie      CookieSettings
}

func NewAuthHandler(users UserStore, authService *auth.Service, events EventSource, m *metrics.Metrics, cookie CookieSettings) *AuthHandler {
	if cookie.Name == "" {
		cookie.Name = "auth_token"
	}
	if cookie.Path == "" {
		cookie.Path = "/"
	}
	return &AuthHandler{
		users:       users,
		authService: authService,
		events:      events,
		metrics:     m,
		cookie:      cookie,
	}
}

type RegisterRequest struct {
	Name      string `json:"name" form:"name" binding:"required" example:"Gregory House"`
	Username  string `json:"username" form:"username" binding:"required" example:"drhouse"`
	Password  string `json:"password" form:"password" binding:"required" example:"vicodin42"`
	Specialty string `json:"specialty" form:"specialty" example:"Cardiology"`
}

type LoginRequest struct {
	Username string `json:"username" form:"username" binding:"required" example:"drhouse"`
	Password string `json:"password" form:"password" binding:"required" example:"vicodin42"`
}

type UserResponse struct {
	ID        int    `json:"id" example:"1"`
	Name      string `json:"name" example:"Gregory House"`
	Username  string `json:"username" example:"drhouse"`
	Specialty string `json:"specialty" example:"Cardiology"`
}

type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in" example:"86400"`
	ID        int    `json:"id" example:"1"`
	Username  string `json:"username" example:"drhouse"`
	Name      string `json:"name" example:"Gregory House"`
	Specialty string `json:"specialty" example:"Cardiology"`
}

// Register godoc
// @Summary Register a physician
// @Tags Auth
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Param request body RegisterRequest true "Account details"
// @Success 201 {object} UserResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Username taken"
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "name, username and password are required"})
		return
	}

	user, ok := h.register(c, req)
	if !ok {
		return
	}

	c.JSON(http.StatusCreated, UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		Username:  user.Username,
		Specialty: user.Specialty,
	})
}

// register validates and stores a new account, writing the error response
// itself on failure.
func (h *AuthHandler) register(c *gin.Context, req RegisterRequest) (*models.User, bool) {
	name := validation.SanitizeString(req.Name)
	username := validation.SanitizeString(req.Username)
	specialty := validation.SanitizeString(req.Specialty)

	for _, err := range []error{
		validation.ValidateName(name),
		validation.ValidateUsername(username),
		validation.ValidatePassword(req.Password),
		validation.ValidateSpecialty(specialty),
	} {
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return nil, false
		}
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(c, err)
		return nil, false
	}

	ctx := c.Request.Context()
	user := models.NewUser(name, username, hash, specialty)
	if err := h.users.Create(ctx, user); err != nil {
		if errors.Is(err, queries.ErrDuplicateUsername) {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "username already exists"})
			return nil, false
		}
		respondError(c, err)
		return nil, false
	}

	h.metrics.IncUserRegistered()
	h.publisher(ctx).UserRegistered(user)
	logger.WithUserCtx(ctx, user.ID).WithField("username", user.Username).Info("User registered")
	return user, true
}

// Login godoc
// @Summary Log in
// @Description Returns a JWT and also sets it as an HTTP-only cookie
// @Tags Auth
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse "Invalid credentials"
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "username and password are required"})
		return
	}

	user, token, ok := h.authenticate(c, req)
	if !ok {
		return
	}

	maxAge := int(h.authService.TTL().Seconds())
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.cookie.Name, token, maxAge, h.cookie.Path, "", h.cookie.Secure, h.cookie.HTTPOnly)

	c.JSON(http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresIn: maxAge,
		ID:        user.ID,
		Username:  user.Username,
		Name:      user.Name,
		Specialty: user.Specialty,
	})
}

func (h *AuthHandler) authenticate(c *gin.Context, req LoginRequest) (*models.User, string, bool) {
	ctx := c.Request.Context()

	user, err := h.users.GetByUsername(ctx, validation.SanitizeString(req.Username))
	if err == nil && !auth.CheckPassword(req.Password, user.PasswordHash) {
		err = errInvalidCredentials
	}
	if err != nil {
		if errors.Is(err, queries.ErrUserNotFound) || errors.Is(err, errInvalidCredentials) {
			h.metrics.IncLogin("failure")
			logger.WarnCtx(ctx, "Login failed: invalid credentials")
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: errInvalidCredentials.Error()})
			return nil, "", false
		}
		respondError(c, err)
		return nil, "", false
	}

	token, err := h.authService.GenerateToken(user.ID, user.Username)
	if err != nil {
		respondError(c, err)
		return nil, "", false
	}

	h.metrics.IncLogin("success")
	h.publisher(ctx).UserLoggedIn(user)
	return user, token, true
}

// Logout godoc
// @Summary Log out
// @Description Clears the auth cookie
// @Tags Auth
// @Produce json
// @Success 200 {object} map[string]string
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.cookie.Name, "", -1, h.cookie.Path, "", h.cookie.Secure, h.cookie.HTTPOnly)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *AuthHandler) publisher(ctx context.Context) *events.Publisher {
	if h.events == nil {
		return nil
	}
	return h.events.Publisher(ctx)
}
