package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/identity/internal/common"
	"github.com/dmitrijs2005/identity/internal/identityapi"
	"github.com/dmitrijs2005/identity/internal/logging"
	"github.com/dmitrijs2005/identity/internal/server/models"
	"github.com/dmitrijs2005/identity/internal/server/services"
	"github.com/dmitrijs2005/identity/internal/server/tokens"
)

type handler struct {
	svc    *services.IdentityService
	logger logging.Logger
}

var _ identityapi.IdentityServiceServer = (*handler)(nil)

func (h *handler) SignUp(ctx context.Context, req *identityapi.SignUpRequest) (*identityapi.SignUpResponse, error) {
	user, err := h.svc.SignUp(ctx, req.Email, req.Password, req.PasswordConfirmation)
	if err != nil {
		return nil, h.toStatus(ctx, err)
	}
	return &identityapi.SignUpResponse{UserID: user.ID}, nil
}

func (h *handler) Login(ctx context.Context, req *identityapi.LoginRequest) (*identityapi.TokenResponse, error) {
	pair, err := h.svc.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		return nil, h.toStatus(ctx, err)
	}
	return tokenResponse(pair), nil
}

func (h *handler) RefreshToken(ctx context.Context, req *identityapi.RefreshTokenRequest) (*identityapi.TokenResponse, error) {
	pair, err := h.svc.RefreshToken(ctx, req.RefreshToken)
	if err != nil {
		return nil, h.toStatus(ctx, err)
	}
	return tokenResponse(pair), nil
}

func (h *handler) Logout(ctx context.Context, req *identityapi.LogoutRequest) (*identityapi.Empty, error) {
	if err := h.svc.Logout(ctx, req.RefreshToken); err != nil {
		return nil, h.toStatus(ctx, err)
	}
	return &identityapi.Empty{}, nil
}

func (h *handler) AddUserClaim(ctx context.Context, req *identityapi.AddUserClaimRequest) (*identityapi.Empty, error) {
	if err := h.svc.AuthorizeClaimChange(ctx, principalFrom(ctx)); err != nil {
		return nil, h.toStatus(ctx, err)
	}

	list := make([]models.Claim, 0, len(req.Claims))
	for _, c := range req.Claims {
		list = append(list, models.Claim{Type: c.ClaimType, Value: c.ClaimValue})
	}
	if err := h.svc.AddUserClaim(ctx, req.Email, list); err != nil {
		return nil, h.toStatus(ctx, err)
	}
	return &identityapi.Empty{}, nil
}

func (h *handler) GetUserClaims(ctx context.Context, req *identityapi.GetUserClaimsRequest) (*identityapi.GetUserClaimsResponse, error) {
	list, err := h.svc.GetUserClaims(ctx, req.Email)
	if err != nil {
		return nil, h.toStatus(ctx, err)
	}

	out := &identityapi.GetUserClaimsResponse{
		Email:  common.NormalizeEmail(req.Email),
		Claims: make([]identityapi.Claim, 0, len(list)),
	}
	for _, c := range list {
		out.Claims = append(out.Claims, identityapi.Claim{ClaimType: c.Type, ClaimValue: c.Value})
	}
	return out, nil
}

func (h *handler) Ping(ctx context.Context, req *identityapi.PingRequest) (*identityapi.PingResponse, error) {
	return &identityapi.PingResponse{Status: "OK"}, nil
}

func tokenResponse(p *tokens.TokenPair) *identityapi.TokenResponse {
	return &identityapi.TokenResponse{
		AccessToken:      p.AccessToken,
		AccessExpiresAt:  p.AccessExpiresAt,
		RefreshToken:     p.RefreshToken,
		RefreshExpiresAt: p.RefreshExpiresAt,
	}
}

// toStatus maps service errors to gRPC codes without leaking internals.
func (h *handler) toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrDuplicateEmail):
		return status.Error(codes.AlreadyExists, common.ErrDuplicateEmail.Error())
	case errors.Is(err, common.ErrInvalidCredentials):
		return status.Error(codes.Unauthenticated, common.ErrInvalidCredentials.Error())
	case errors.Is(err, common.ErrInvalidOrExpiredToken):
		return status.Error(codes.Unauthenticated, common.ErrInvalidOrExpiredToken.Error())
	case errors.Is(err, common.ErrorUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, common.ErrForbidden):
		return status.Error(codes.PermissionDenied, common.ErrForbidden.Error())
	case errors.Is(err, common.ErrUserNotFound):
		return status.Error(codes.NotFound, common.ErrUserNotFound.Error())
	case errors.Is(err, common.ErrStorageUnavailable):
		return status.Error(codes.Unavailable, common.ErrStorageUnavailable.Error())
	default:
		h.logger.Error(ctx, "request failed", "error", err)
		return status.Error(codes.Internal, "internal error")
	}
}
