// Package devserver emulates the hosted backend-as-a-service the
// client consumes: password auth with JWT access tokens, a profiles
// row store, public-bucket object storage, and a realtime event feed.
// It exists so the client can be developed and integration-tested
// without the hosted platform.
package devserver

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lfarias/mensageiro/internal/devserver/store"
	"github.com/lfarias/mensageiro/internal/logger"
)

var log = logger.New("devserver")

// Config holds the devserver's runtime settings.
type Config struct {
	JWTSecret      string
	TokenTTL       time.Duration
	Autoconfirm    bool
	AllowedOrigins []string
	MaxObjectSize  int64
	LoginRPS       float64
	LoginBurst     int
}

// DefaultConfig returns settings suitable for local development.
func DefaultConfig() Config {
	return Config{
		JWTSecret:      "dev-secret",
		TokenTTL:       24 * time.Hour,
		Autoconfirm:    true,
		AllowedOrigins: []string{"*"},
		MaxObjectSize:  1 << 20,
		LoginRPS:       1,
		LoginBurst:     5,
	}
}

// Server is the emulator.
type Server struct {
	cfg          Config
	store        store.Store
	jwtKey       []byte
	objects      *objectStore
	feed         *feed
	metrics      *metrics
	loginLimiter *ipLimiter
	engine       *gin.Engine
}

// New assembles a server over the given store.
func New(cfg Config, st store.Store) *Server {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.MaxObjectSize <= 0 {
		cfg.MaxObjectSize = 1 << 20
	}

	reg := prometheus.NewRegistry()
	m := newMetrics(reg)

	s := &Server{
		cfg:          cfg,
		store:        st,
		jwtKey:       []byte(cfg.JWTSecret),
		objects:      newObjectStore(),
		feed:         newFeed(m),
		metrics:      m,
		loginLimiter: newIPLimiter(cfg.LoginRPS, cfg.LoginBurst),
	}
	s.engine = s.buildRouter(reg)
	return s
}

func (s *Server) buildRouter(reg *prometheus.Registry) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.metrics.instrument())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "Cache-Control", "x-upsert"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	auth := router.Group("/auth/v1")
	{
		auth.POST("/signup", s.handleSignUp)
		auth.POST("/token", s.handleToken)
		auth.POST("/confirm", s.handleConfirm)
		auth.POST("/recover", s.handleRecover)
		auth.POST("/logout", s.authRequired(), s.handleSignOut)
		auth.GET("/user", s.authRequired(), s.handleGetUser)
		auth.PUT("/user", s.authRequired(), s.handleUpdateUser)
		auth.DELETE("/admin/users/:id", s.authRequired(), s.handleDeleteUser)
	}

	// The username lookup stays outside the bearer wall: registration
	// checks uniqueness before any identity exists.
	router.GET("/rest/v1/profiles/username/:username", s.handleGetProfileByUsername)

	rest := router.Group("/rest/v1", s.authRequired())
	{
		rest.POST("/profiles", s.handleInsertProfile)
		rest.GET("/profiles/:id", s.handleGetProfile)
		rest.PATCH("/profiles/:id", s.handleUpdateProfile)
		rest.PATCH("/profiles/:id/presence", s.handleSetPresence)
	}

	storage := router.Group("/storage/v1")
	{
		storage.POST("/object/:bucket/*key", s.authRequired(), s.handleUpload)
		storage.DELETE("/object/:bucket", s.authRequired(), s.handleRemove)
		storage.GET("/object/public/:bucket/*key", s.handlePublicObject)
	}

	router.GET("/realtime/ws", s.handleRealtime)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	return router
}

// Router exposes the handler for http.Server and tests.
func (s *Server) Router() *gin.Engine { return s.engine }
