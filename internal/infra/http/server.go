package http

import (
	"log"
	"net/http"
	"time"

	"itsmd/internal/config"
	"itsmd/internal/domain"
	"itsmd/internal/infra/auth"
	"itsmd/internal/infra/auth/identity"
	"itsmd/internal/infra/auth/oidc"
	"itsmd/internal/infra/auth/rbac"
	"itsmd/internal/infra/db"
	"itsmd/internal/infra/ratelimit"
	"itsmd/internal/usecase"

	"github.com/gin-gonic/gin"
)

type Server struct {
	cfg   config.Config
	store *db.Store
	r     *gin.Engine

	authenticator domain.Authenticator
	authorizer    domain.Authorizer
	srs           *usecase.SrService

	limiter          domain.RateLimiter
	limitRequests    int
	limitWindow      time.Duration
	limitWithSubject bool
}

func NewServer(cfg config.Config, store *db.Store) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{cfg: cfg, store: store, r: r}
	s.initDeps()
	s.routes()
	return s
}

// ServerDeps lets tests inject fakes for the wiring initDeps would build.
type ServerDeps struct {
	Authenticator   domain.Authenticator
	Authorizer      domain.Authorizer
	ServiceRequests *usecase.SrService
	RateLimiter     domain.RateLimiter
}

func NewServerWithDeps(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		cfg:           cfg,
		r:             r,
		authenticator: deps.Authenticator,
		authorizer:    deps.Authorizer,
		srs:           deps.ServiceRequests,
	}
	if s.authorizer == nil {
		s.authorizer = rbac.NewAuthorizer()
	}
	s.initRateLimit(deps.RateLimiter)
	s.routes()
	return s
}

func (s *Server) initDeps() {
	table, err := domain.ParseRoleTable(s.cfg.RoleTable)
	if err != nil {
		log.Printf("invalid ROLE_TABLE, using default mapping: %v", err)
		table = domain.DefaultRoleTable()
	}
	decoder := oidc.NewDecoder(s.cfg)
	s.authenticator = auth.NewTokenAuthenticator(decoder, identity.NewExtractor(table))
	s.authorizer = rbac.NewAuthorizer()

	if s.store != nil && s.store.DB != nil {
		s.srs = usecase.NewSrService(db.NewServiceRequestRepository(s.store.DB))
	}
	s.initRateLimit(nil)
}

func (s *Server) initRateLimit(override domain.RateLimiter) {
	if override != nil {
		s.limiter = override
	}
	if s.limiter == nil && s.cfg.RateLimitRequests > 0 {
		if s.cfg.RedisAddr != "" {
			if limiter, err := ratelimit.NewRedisLimiter(s.cfg.RedisAddr, s.cfg.RedisPassword, s.cfg.RedisDB, nil); err == nil {
				s.limiter = limiter
			}
		}
		if s.limiter == nil {
			s.limiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{})
		}
	}
	s.limitRequests = s.cfg.RateLimitRequests
	if s.cfg.RateLimitWindowSeconds > 0 {
		s.limitWindow = time.Duration(s.cfg.RateLimitWindowSeconds) * time.Second
	}
	s.limitWithSubject = s.cfg.RateLimitIncludeSubject
}

func (s *Server) routes() {
	s.r.Use(s.corsMiddleware())
	s.r.Use(s.tokenFormatGuard())

	s.r.GET("/healthz", s.handleHealth)

	api := s.r.Group("/api")
	api.GET("/public/health", s.rateLimit(), s.handleHealth)

	// Rate limiting runs after authentication so the window key can include
	// the subject when configured.
	protected := api.Group("/protected", s.authenticate(), s.rateLimit())
	{
		protected.GET("/user-info", s.guard(domain.RequireAuthenticated()), s.handleUserInfo)
		protected.GET("/admin", s.guard(domain.RequireAnyRole(domain.RoleAdmin)), s.handleRoleProbe("admin"))
		protected.GET("/consultant", s.guard(domain.RequireAnyRole(domain.RoleConsultant)), s.handleRoleProbe("consultant"))
		protected.GET("/customer", s.guard(domain.RequireAnyRole(domain.RoleCustomer)), s.handleRoleProbe("customer"))
	}

	sr := api.Group("/sr", s.authenticate(), s.rateLimit())
	{
		authenticated := s.guard(domain.RequireAuthenticated())
		handlerRoles := s.guard(domain.RequireAnyRole(domain.RoleHandler, domain.RoleAdmin, domain.RoleManager))
		managerRoles := s.guard(domain.RequireAnyRole(domain.RoleManager, domain.RoleAdmin))

		sr.POST("/create", authenticated, s.handleSrCreate)
		sr.POST("/manager", authenticated, s.handleSrCreateAsManager)
		sr.GET("/list", authenticated, s.handleSrList)
		sr.GET("/:id", authenticated, s.handleSrGet)
		sr.PUT("/:id/request", authenticated, s.handleSrUpdateRequest)
		sr.PUT("/:id/receive", handlerRoles, s.handleSrReceive)
		sr.PUT("/:id/response-1st", handlerRoles, s.handleSrFirstResponse)
		sr.PUT("/:id/process", handlerRoles, s.handleSrProcess)
		sr.PUT("/:id/verify", authenticated, s.handleSrVerify)
		sr.PUT("/:id/finish", managerRoles, s.handleSrFinish)
		sr.PUT("/:id/evaluate", authenticated, s.handleSrEvaluate)
		sr.POST("/:id/re-request", authenticated, s.handleSrReRequest)
		sr.DELETE("/:id", managerRoles, s.handleSrDelete)
	}

	s.r.NoRoute(func(c *gin.Context) {
		writeEnvelope(c, http.StatusNotFound, "not found")
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	mode := "no-db"
	if s.store != nil && s.store.DB != nil {
		mode = "db"
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": mode})
}

func (s *Server) Run() error {
	return s.r.Run(s.cfg.HTTPAddr)
}

// Handler exposes the router for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.r
}
