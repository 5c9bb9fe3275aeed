package api

import (
	"net/http"

	"campus_parking/internal/api/handler"
	"campus_parking/internal/api/middleware"
	"campus_parking/internal/domain"
	"campus_parking/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func SetupRouter(serviceName string, as *service.AuthService, occ *service.OccupancyService, is *service.IoTService,
	authMw *middleware.AuthMiddleware, wsManager *handler.WebSocketManager) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName, otelgin.WithFilter(func(req *http.Request) bool {
		return req.URL.Path != "/health" && req.URL.Path != "/metrics"
	})))
	r.Use(middleware.RequestLogger())

	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	healthH := handler.NewHealthHandler(occ, serviceName)
	r.GET("/health", healthH.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	wsHandler := handler.NewWebSocketHandler(wsManager)
	r.GET("/ws", wsHandler.HandleWebSocket)

	authHandler := handler.NewAuthHandler(as)
	r.POST("/auth/admin", authHandler.AdminLogin)

	adminOnly := []gin.HandlerFunc{authMw.Authenticate(), authMw.AuthorizeRole(domain.RoleAdmin)}

	v1 := r.Group("/api/v1")
	{
		lotH := handler.NewParkingLotHandler(occ)
		v1.GET("/map", lotH.GetCampusMap)

		lotRoutes := v1.Group("/lots")
		{
			lotRoutes.GET("", lotH.GetAllLots)
			lotRoutes.GET("/:id", lotH.GetLot)
			lotRoutes.GET("/:id/directions", lotH.GetDirections)
			lotRoutes.PUT("/:id/occupancy", append(adminOnly, lotH.OverrideOccupancy)...)
			lotRoutes.POST("/:id/tick", append(adminOnly, lotH.Tick)...)

			frameH := handler.NewFrameHandler(occ)
			lotRoutes.POST("/:id/frames", append(adminOnly, frameH.UploadFrame)...)

			resH := handler.NewReservationHandler(occ)
			lotRoutes.GET("/:id/reservations", resH.GetReservations)
			lotRoutes.POST("/:id/reservations", resH.CreateReservation)
		}

		if is != nil {
			deviceH := handler.NewDeviceHandler(is)
			deviceRoutes := v1.Group("/devices")
			deviceRoutes.Use(adminOnly...)
			{
				deviceRoutes.GET("/events", deviceH.GetRecentEvents)
			}
		}
	}
	return r
}
