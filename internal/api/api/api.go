package api

import (
	"github.com/gin-contrib/cors"
	"github.com/wb-go/wbf/ginext"

	"academybooker/cmd/middleware"
	"academybooker/internal/service"
)

type Routers struct {
	Service service.Service
}

func NewRouters(r *Routers) *ginext.Engine {
	app := ginext.New("release")

	app.Use(middleware.LoggingMiddleware())
	app.Use(cors.Default())

	v1 := app.Group("/v1")

	v1.POST("/events", r.Service.CreateEvent)
	v1.GET("/events", r.Service.GetAllEvents)
	v1.GET("/events/:id", r.Service.GetEventInfo)
	v1.PATCH("/events/:id/status", r.Service.UpdateEventStatus)
	v1.GET("/events/:id/availability", r.Service.GetAvailability)
	v1.POST("/events/:id/register", r.Service.Register)

	v1.GET("/registrations/:id", r.Service.GetRegistration)
	v1.POST("/registrations/:id/transition", r.Service.Transition)
	v1.POST("/registrations/:id/payment", r.Service.UpdatePayment)

	return app
}
