// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"quickfix/internal/http/handlers"
	"quickfix/internal/http/middleware"
)

func (s *Server) router() *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(s.deps.Log), middleware.Logging(s.deps.Log))

	requestHandler := handlers.NewRequestHandler(s.deps.Requests, s.deps.Users, s.deps.ETA)
	vendorHandler := handlers.NewVendorHandler(s.deps.Requests, s.deps.Users)
	userHandler := handlers.NewUserHandler(s.deps.Users)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))
	r.GET("/api/request-types", requestHandler.Types)

	api := r.Group("/api", middleware.Auth(s.deps.Verifier))

	api.POST("/requests", requestHandler.Create)
	api.GET("/requests/mine", requestHandler.Mine)
	api.GET("/requests/:id", requestHandler.Get)
	api.GET("/requests/:id/eta", requestHandler.ETA)
	api.POST("/requests/:id/actions/:action", requestHandler.Action)
	api.POST("/requests/:id/assign/:workerId", requestHandler.Assign)
	api.POST("/requests/:id/complete", requestHandler.Complete)

	api.GET("/vendors/me/requests", vendorHandler.MyRequests)
	api.POST("/vendors/:id/workers/:workerId", vendorHandler.AddWorker)
	api.DELETE("/vendors/:id/workers/:workerId", vendorHandler.RemoveWorker)

	api.POST("/users", userHandler.Register)
	api.GET("/users", userHandler.List)
	api.GET("/users/:id", userHandler.Get)
	api.DELETE("/users/:id", userHandler.Delete)
	api.PUT("/users/:id/location", userHandler.UpdateLocation)
	api.PUT("/users/:id/device-token", userHandler.SetDeviceToken)
	api.PUT("/workers/:id/skills", userHandler.SetSkills)

	return r
}
