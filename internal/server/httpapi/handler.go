package httpapi

import (
	"fmt"
	"net/http"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/identity/internal/common"
	"github.com/dmitrijs2005/identity/internal/logging"
	"github.com/dmitrijs2005/identity/internal/server/authz"
	"github.com/dmitrijs2005/identity/internal/server/models"
	"github.com/dmitrijs2005/identity/internal/server/services"
)

const principalKey = "principal"

type signUpRequest struct {
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"passwordConfirmation"`
}

func (r signUpRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
		validation.Field(&r.PasswordConfirmation, validation.Required),
	)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r loginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (r refreshRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

type addClaimsRequest struct {
	Email  string         `json:"email"`
	Claims []models.Claim `json:"claims"`
}

func (r addClaimsRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Claims, validation.Required),
	)
}

type successResponse struct {
	Success bool `json:"success"`
}

type tokenResponse struct {
	Success      bool   `json:"success"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type claimsResponse struct {
	Success bool           `json:"success"`
	Email   string         `json:"email"`
	Claims  []models.Claim `json:"claims"`
}

// Handler serves the identity endpoints on top of IdentityService.
type Handler struct {
	svc *services.IdentityService
	log logging.Logger
}

func NewHandler(svc *services.IdentityService, log logging.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// bind decodes the JSON body into req and runs its ozzo rules. It writes a
// 400 and returns false on failure.
func bind[T validation.Validatable](c *gin.Context, req *T) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		abort(c, http.StatusBadRequest, "malformed request body")
		return false
	}
	if err := (*req).Validate(); err != nil {
		abort(c, http.StatusBadRequest, fieldErrors(err)...)
		return false
	}
	return true
}

func fieldErrors(err error) []string {
	errs, ok := err.(validation.Errors)
	if !ok {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(errs))
	for field, e := range errs {
		out = append(out, fmt.Sprintf("%s: %v", field, e))
	}
	sort.Strings(out)
	return out
}

func (h *Handler) signUp(c *gin.Context) {
	var req signUpRequest
	if !bind(c, &req) {
		return
	}
	if _, err := h.svc.SignUp(c.Request.Context(), req.Email, req.Password, req.PasswordConfirmation); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, successResponse{Success: true})
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if !bind(c, &req) {
		return
	}
	pair, err := h.svc.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse{Success: true, AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

func (h *Handler) refreshToken(c *gin.Context) {
	var req refreshRequest
	if !bind(c, &req) {
		return
	}
	pair, err := h.svc.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse{Success: true, AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

func (h *Handler) logout(c *gin.Context) {
	var req refreshRequest
	if !bind(c, &req) {
		return
	}
	if err := h.svc.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse{Success: true})
}

func (h *Handler) addUserClaim(c *gin.Context) {
	principal, _ := c.MustGet(principalKey).(*authz.Principal)
	if err := h.svc.AuthorizeClaimChange(c.Request.Context(), principal); err != nil {
		h.fail(c, err)
		return
	}

	var req addClaimsRequest
	if !bind(c, &req) {
		return
	}
	if err := h.svc.AddUserClaim(c.Request.Context(), req.Email, req.Claims); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, successResponse{Success: true})
}

func (h *Handler) getUserClaims(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		abort(c, http.StatusBadRequest, "email: cannot be blank")
		return
	}
	list, err := h.svc.GetUserClaims(c.Request.Context(), email)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, claimsResponse{Success: true, Email: common.NormalizeEmail(email), Claims: list})
}

func healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
