package routes

import (
	"github.com/gin-gonic/gin"

	"pcba-mpi-api-server/internal/api/handlers"
	"pcba-mpi-api-server/internal/api/middleware"
	"pcba-mpi-api-server/internal/auth"
	"pcba-mpi-api-server/internal/logger"
	"pcba-mpi-api-server/internal/models"
	"pcba-mpi-api-server/internal/service"
	"pcba-mpi-api-server/internal/socket"
	"pcba-mpi-api-server/internal/store"
	"pcba-mpi-api-server/internal/validation"
)

// Deps are the components the router wires into handlers.
type Deps struct {
	DB           store.Database
	Tokens       *auth.TokenManager
	Credentials  *service.CredentialService
	Registries   *service.Registries
	Allocator    *service.Allocator
	MPIs         *service.MPIService
	Hub          *socket.Hub
	Log          *logger.Logger
	AllowOrigins []string
}

// SetupRouter builds the gin engine with every /api/v1 route.
func SetupRouter(d Deps) *gin.Engine {
	validation.Register()

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(d.Log))
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(d.AllowOrigins))

	authHandler := &handlers.AuthHandler{Credentials: d.Credentials, Log: d.Log}
	adminHandler := &handlers.AdminHandler{Credentials: d.Credentials, MPIs: d.MPIs, Log: d.Log}
	mpiHandler := &handlers.MPIHandler{MPIs: d.MPIs, Allocator: d.Allocator, Log: d.Log}
	stepHandler := &handlers.CategoryStepHandler{Categories: d.Registries.Categories, Log: d.Log}
	webSocketHandler := &handlers.WebSocketHandler{Hub: d.Hub, Tokens: d.Tokens, Log: d.Log}
	healthHandler := &handlers.HealthHandler{DB: d.DB, Log: d.Log}

	apiV1 := router.Group("/api/v1")
	{
		apiV1.GET("/ws", webSocketHandler.ServeWs)

		health := apiV1.Group("/health")
		{
			health.GET("/live", healthHandler.Live)
			health.GET("/ready", healthHandler.Ready)
		}

		// Public authentication routes
		authPublic := apiV1.Group("/auth")
		{
			authPublic.POST("/login", authHandler.Login)
			authPublic.POST("/signup", authHandler.Signup)
			authPublic.POST("/admin/signup", authHandler.AdminSignup)
		}

		authenticated := apiV1.Group("")
		authenticated.Use(middleware.Authenticate(d.Tokens))

		account := authenticated.Group("/auth")
		{
			account.GET("/me", authHandler.Me)
			account.POST("/change-password", authHandler.ChangePassword)
			account.PUT("/profile", authHandler.UpdateProfile)
		}

		// Reference data is shared by admins and engineers.
		reference := authenticated.Group("")
		reference.Use(middleware.Authorize(models.RoleAdmin, models.RoleEngineer))
		registerRegistries(reference, d, false)
		stepHandler.Register(reference.Group("/categories"))

		admin := authenticated.Group("/admin")
		admin.Use(middleware.Authorize(models.RoleAdmin))
		{
			// Admin views of the registries include soft-deleted rows.
			registerRegistries(admin, d, true)

			admin.GET("/engineers", adminHandler.ListEngineers)
			admin.PUT("/engineers/:id/status", adminHandler.SetEngineerStatus)
			admin.DELETE("/engineers/:id", adminHandler.DeleteEngineer)

			admin.GET("/mpis", adminHandler.ListMPIs)
			admin.GET("/mpis/export", adminHandler.ExportMPIs)
			admin.POST("/mpis/reconcile", adminHandler.ReconcileMPIs)
			admin.GET("/mpis/:id", adminHandler.GetMPI)
			admin.PUT("/mpis/:id/status", adminHandler.SetMPIStatus)
		}

		engineer := authenticated.Group("")
		engineer.Use(middleware.Authorize(models.RoleEngineer))
		{
			mpi := engineer.Group("/mpi")
			{
				mpi.GET("", mpiHandler.List)
				mpi.POST("", mpiHandler.Create)
				mpi.POST("/job-numbers", mpiHandler.NextJobNumber)
				mpi.POST("/mpi-numbers", mpiHandler.NextMpiNumber)
				mpi.GET("/:id", mpiHandler.Get)
				mpi.PUT("/:id", mpiHandler.Update)
				mpi.DELETE("/:id", mpiHandler.Delete)
				mpi.POST("/:id/sections/:sectionId/images", mpiHandler.UploadSectionImage)
			}
			engineer.GET("/docs", mpiHandler.ListDocs)
			engineer.GET("/customers", mpiHandler.ListCustomers)
		}
	}

	return router
}

func registerRegistries(g *gin.RouterGroup, d Deps, includeInactive bool) {
	handlers.NewRegistryHandler[handlers.CompanyRequest, handlers.CompanyUpdate](d.Registries.Companies, d.Log, includeInactive).
		Register(g.Group("/customer-companies"))
	handlers.NewRegistryHandler[handlers.FormRequest, handlers.FormUpdate](d.Registries.Forms, d.Log, includeInactive).
		Register(g.Group("/forms"))
	handlers.NewRegistryHandler[handlers.DocumentIDRequest, handlers.DocumentIDUpdate](d.Registries.DocumentIDs, d.Log, includeInactive).
		Register(g.Group("/document-ids"))
	handlers.NewRegistryHandler[handlers.CategoryRequest, handlers.CategoryUpdate](d.Registries.Categories.CategoryRegistry, d.Log, includeInactive).
		Register(g.Group("/categories"))
	handlers.NewRegistryHandler[handlers.TaskRequest, handlers.TaskUpdate](d.Registries.Tasks, d.Log, includeInactive).
		Register(g.Group("/tasks"))
}
