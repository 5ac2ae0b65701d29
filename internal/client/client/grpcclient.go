// Package client is the gRPC client of the identity service used by
// identityctl. It keeps the current token pair and transparently refreshes
// an expired access token once per call.
package client

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/identity/internal/identityapi"
)

// expiredTokenMessage is the status message the server sends for rejected
// access tokens.
const expiredTokenMessage = "invalid or expired token"

// Tokens is the pair held by the client.
type Tokens struct {
	AccessToken  string
	RefreshToken string
}

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      *identityapi.IdentityServiceClient
	dialOpts    []grpc.DialOption

	mu        sync.Mutex
	tokens    Tokens
	onRefresh func(Tokens)
}

// Option customizes a GRPCClient.
type Option func(*GRPCClient)

// WithDialOptions appends dial options, e.g. a bufconn dialer in tests.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *GRPCClient) { c.dialOpts = append(c.dialOpts, opts...) }
}

// WithTokens seeds the client with a stored pair.
func WithTokens(t Tokens) Option {
	return func(c *GRPCClient) { c.tokens = t }
}

// OnRefresh registers fn to be called with the new pair after every
// successful rotation.
func OnRefresh(fn func(Tokens)) Option {
	return func(c *GRPCClient) { c.onRefresh = fn }
}

func NewIdentityClient(endpointURL string, opts ...Option) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}
	for _, o := range opts {
		o(c)
	}
	if err := c.InitGRPCClient(); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient() error {
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor),
	}, s.dialOpts...)

	conn, err := grpc.NewClient(s.endpointURL, opts...)
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = identityapi.NewIdentityServiceClient(conn)
	return nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

// Tokens returns the current pair.
func (s *GRPCClient) Tokens() Tokens {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens
}

func (s *GRPCClient) setTokens(t Tokens) {
	s.mu.Lock()
	s.tokens = t
	s.mu.Unlock()
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(identityapi.AccessTokenMetadataKey, token)
	return metadata.NewOutgoingContext(ctx, md)
}

// accessTokenInterceptor attaches the access token to protected calls and,
// when the server rejects it as expired, rotates the refresh token and
// retries once.
func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if method != identityapi.AddUserClaimMethod {
		return invoker(ctx, method, req, reply, cc, opts...)
	}

	tokens := s.Tokens()
	err := invoker(withAccessToken(ctx, tokens.AccessToken), method, req, reply, cc, opts...)
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Unauthenticated || st.Message() != expiredTokenMessage {
		return err
	}
	if tokens.RefreshToken == "" {
		return err
	}

	if _, err := s.Refresh(ctx); err != nil {
		return err
	}

	return invoker(withAccessToken(ctx, s.Tokens().AccessToken), method, req, reply, cc, opts...)
}

func (s *GRPCClient) SignUp(ctx context.Context, email, password, confirmation string) (string, error) {
	resp, err := s.client.SignUp(ctx, &identityapi.SignUpRequest{
		Email:                email,
		Password:             password,
		PasswordConfirmation: confirmation,
	})
	if err != nil {
		return "", s.mapError(err)
	}
	return resp.UserID, nil
}

func (s *GRPCClient) Login(ctx context.Context, email, password string) (Tokens, error) {
	resp, err := s.client.Login(ctx, &identityapi.LoginRequest{Email: email, Password: password})
	if err != nil {
		return Tokens{}, s.mapError(err)
	}
	t := Tokens{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}
	s.setTokens(t)
	return t, nil
}

// Refresh rotates the held refresh token.
func (s *GRPCClient) Refresh(ctx context.Context) (Tokens, error) {
	resp, err := s.client.RefreshToken(ctx, &identityapi.RefreshTokenRequest{RefreshToken: s.Tokens().RefreshToken})
	if err != nil {
		return Tokens{}, s.mapError(err)
	}
	t := Tokens{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}
	s.setTokens(t)
	if s.onRefresh != nil {
		s.onRefresh(t)
	}
	return t, nil
}

// Logout revokes the held session.
func (s *GRPCClient) Logout(ctx context.Context) error {
	if _, err := s.client.Logout(ctx, &identityapi.LogoutRequest{RefreshToken: s.Tokens().RefreshToken}); err != nil {
		return s.mapError(err)
	}
	s.setTokens(Tokens{})
	return nil
}

// Grant adds claims given as "Type:Value" to the user with email.
func (s *GRPCClient) Grant(ctx context.Context, email string, claims []string) error {
	list := make([]identityapi.Claim, 0, len(claims))
	for _, c := range claims {
		t, v, ok := strings.Cut(c, ":")
		if !ok || t == "" || v == "" {
			return fmt.Errorf("%w: claim %q is not Type:Value", ErrInvalidInput, c)
		}
		list = append(list, identityapi.Claim{ClaimType: t, ClaimValue: v})
	}

	_, err := s.client.AddUserClaim(ctx, &identityapi.AddUserClaimRequest{Email: email, Claims: list})
	if err != nil {
		return s.mapError(err)
	}
	return nil
}

// Claims returns the claims of email as "Type:Value" strings.
func (s *GRPCClient) Claims(ctx context.Context, email string) ([]string, error) {
	resp, err := s.client.GetUserClaims(ctx, &identityapi.GetUserClaimsRequest{Email: email})
	if err != nil {
		return nil, s.mapError(err)
	}
	out := make([]string, 0, len(resp.Claims))
	for _, c := range resp.Claims {
		out = append(out, c.ClaimType+":"+c.ClaimValue)
	}
	return out, nil
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	resp, err := s.client.Ping(ctx, &identityapi.PingRequest{})
	if err != nil {
		return s.mapError(err)
	}
	if resp.Status != "OK" {
		return ErrUnavailable
	}
	return nil
}

// mapError turns gRPC statuses into client errors; the server message is
// kept for context.
func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated:
		return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
	case codes.PermissionDenied:
		return ErrForbidden
	case codes.AlreadyExists:
		return ErrAlreadyExists
	case codes.NotFound:
		return ErrNotFound
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", ErrInvalidInput, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
