package identityapi

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "identity.v1.IdentityService"

// Full method names, as seen by interceptors.
const (
	SignUpMethod        = "/" + ServiceName + "/SignUp"
	LoginMethod         = "/" + ServiceName + "/Login"
	RefreshTokenMethod  = "/" + ServiceName + "/RefreshToken"
	LogoutMethod        = "/" + ServiceName + "/Logout"
	AddUserClaimMethod  = "/" + ServiceName + "/AddUserClaim"
	GetUserClaimsMethod = "/" + ServiceName + "/GetUserClaims"
	PingMethod          = "/" + ServiceName + "/Ping"
)

// IdentityServiceServer is implemented by the server side.
type IdentityServiceServer interface {
	SignUp(context.Context, *SignUpRequest) (*SignUpResponse, error)
	Login(context.Context, *LoginRequest) (*TokenResponse, error)
	RefreshToken(context.Context, *RefreshTokenRequest) (*TokenResponse, error)
	Logout(context.Context, *LogoutRequest) (*Empty, error)
	AddUserClaim(context.Context, *AddUserClaimRequest) (*Empty, error)
	GetUserClaims(context.Context, *GetUserClaimsRequest) (*GetUserClaimsResponse, error)
	Ping(context.Context, *PingRequest) (*PingResponse, error)
}

// ServiceDesc describes IdentityService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*IdentityServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("SignUp", SignUpMethod, IdentityServiceServer.SignUp),
		unary("Login", LoginMethod, IdentityServiceServer.Login),
		unary("RefreshToken", RefreshTokenMethod, IdentityServiceServer.RefreshToken),
		unary("Logout", LogoutMethod, IdentityServiceServer.Logout),
		unary("AddUserClaim", AddUserClaimMethod, IdentityServiceServer.AddUserClaim),
		unary("GetUserClaims", GetUserClaimsMethod, IdentityServiceServer.GetUserClaims),
		unary("Ping", PingMethod, IdentityServiceServer.Ping),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "identity.proto",
}

// RegisterIdentityServiceServer registers srv on s.
func RegisterIdentityServiceServer(s grpc.ServiceRegistrar, srv IdentityServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func unary[Req, Resp any](name, fullMethod string, call func(IdentityServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(IdentityServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(IdentityServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
