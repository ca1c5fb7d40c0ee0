package bootstrap

import (
	"time"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	httpapi "github.com/reqflowly/reqflowly-gateway/internal/api/http"
	"github.com/reqflowly/reqflowly-gateway/internal/api/http/middleware"
	"github.com/reqflowly/reqflowly-gateway/internal/auth"
	"github.com/reqflowly/reqflowly-gateway/internal/domainobjects"
	"github.com/reqflowly/reqflowly-gateway/internal/export"
	"github.com/reqflowly/reqflowly-gateway/internal/generation"
	"github.com/reqflowly/reqflowly-gateway/internal/notify"
	"github.com/reqflowly/reqflowly-gateway/internal/preview"
	"github.com/reqflowly/reqflowly-gateway/internal/projects"
	"github.com/reqflowly/reqflowly-gateway/internal/requirements"
	"github.com/reqflowly/reqflowly-gateway/internal/session"
	"github.com/reqflowly/reqflowly-gateway/internal/testcases"
	"github.com/reqflowly/reqflowly-gateway/internal/upstream"
	"github.com/reqflowly/reqflowly-gateway/internal/usecases"
	"github.com/reqflowly/reqflowly-gateway/internal/users"
)

type RouterDeps struct {
	ServiceName string
	Version     string
	Environment string

	DB    *pgxpool.Pool
	Redis *redis.Client

	AuthClient *fbauth.Client
	Upstream   *upstream.Client
	Sessions   *session.Registry
	Bus        *notify.Bus
	Hub        *notify.Hub

	Log *zap.Logger
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	if dep.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID(dep.Log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173", "https://reqflowly.web.app"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	httpapi.NewHealthHandler(dep.ServiceName, dep.Version, dep.DB, dep.Redis).RegisterRoutes(r)

	userRepo := users.NewRepo(dep.DB)
	previews := preview.NewCache(dep.Redis)
	genLimit := middleware.NewGenerationRateLimiter(0.5, 3).Handler()

	api := r.Group("/api/v1")
	api.Use(auth.Middleware(dep.AuthClient, userRepo, dep.Log))

	auth.RegisterProfile(api.Group("/users"), userRepo, dep.Log)
	projects.Register(api.Group("/projects"), dep.Upstream, dep.Bus, dep.Log)

	proj := api.Group("/projects/:projectID")
	requirements.Register(proj.Group("/requirements"), dep.Upstream, dep.Sessions, previews, dep.Bus, dep.Log)
	domainobjects.Register(proj, dep.Upstream, dep.Sessions, previews, dep.Bus, dep.Log)

	req := proj.Group("/requirements/:requirementID")
	export.Register(req, dep.Upstream, dep.Log)
	usecases.Register(req.Group("/use-cases"), genLimit, dep.Upstream, dep.Sessions, dep.Bus, dep.Log)
	testcases.Register(req.Group("/use-cases/:useCaseID/test-cases"), genLimit, dep.Upstream, dep.Bus, dep.Log)

	generation.Register(api.Group("/generation"), genLimit, dep.Upstream, dep.Sessions, dep.Bus, dep.Log)
	notify.RegisterHTTP(api.Group("/notifications"), dep.Bus, dep.Hub)

	return r
}
