package http

import (
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mirror520/pullsub"
)

func NewRouter(log *zap.Logger, endpoints *pullsub.EndpointSet) *gin.Engine {
	r := gin.New()
	r.Use(
		ginzap.Ginzap(log, time.RFC3339, true),
		ginzap.RecoveryWithZap(log, true),
	)

	SetRouter(r, endpoints)
	return r
}

func SetRouter(r *gin.Engine, endpoints *pullsub.EndpointSet) {
	r.GET("/health", CheckHealthHandler)

	apiV1 := r.Group("/v1")
	{
		apiV1.PUT("/keys/*key", PutHandler(endpoints.Put))

		subscriptions := apiV1.Group("/subscriptions")
		subscriptions.POST("", SubscribeHandler(endpoints.Subscribe))
		subscriptions.GET("/:id/pull", PullHandler(endpoints.Pull))
		subscriptions.DELETE("/:id", CloseSubscriptionHandler(endpoints.CloseSubscription))

		if endpoints.Query != nil {
			apiV1.GET("/storage/*selector", QueryHandler(endpoints.Query))
		}
	}
}
