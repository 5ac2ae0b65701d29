// Package httpapi exposes IdentityService over JSON/HTTP with gin.
package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/identity/internal/logging"
	"github.com/dmitrijs2005/identity/internal/server/metrics"
	"github.com/dmitrijs2005/identity/internal/server/services"
)

// Options tune the router. A non-positive LoginRateLimit disables limiting.
type Options struct {
	LoginRateLimit float64
	LoginRateBurst int
}

// NewRouter builds the gin engine with every identity route registered.
func NewRouter(svc *services.IdentityService, log logging.Logger, opts Options) *gin.Engine {
	metrics.Init()

	r := gin.New()
	r.Use(gin.Recovery(), instrument(), requestLog(log))

	h := NewHandler(svc, log)

	credentials := r.Group("")
	if opts.LoginRateLimit > 0 {
		burst := opts.LoginRateBurst
		if burst < 1 {
			burst = 1
		}
		credentials.Use(rateLimit(newIPLimiter(opts.LoginRateLimit, burst)))
	}
	credentials.POST("/signUp", h.signUp)
	credentials.POST("/login", h.login)
	credentials.POST("/refreshToken", h.refreshToken)

	r.POST("/logout", h.logout)
	r.GET("/getUserClaims", h.getUserClaims)
	r.POST("/addUserInClaim", authenticate(svc), h.addUserClaim)

	r.GET("/healthz", healthz)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	return r
}
