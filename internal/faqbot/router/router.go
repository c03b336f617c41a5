// Package router provides FAQ service routing.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/faqbot/internal/faqbot/handler"
)

// Register registers the FAQ service routes.
// apiKey protects management routes only; the webhook stays open so the
// gateway can always deliver messages.
func Register(engine *gin.Engine, faqHandler *handler.FAQHandler, webhookHandler *handler.WebhookHandler, apiKey string) {
	logger.Info("Registering FAQ routes...")

	engine.GET("/healthz", faqHandler.Healthz)
	engine.GET("/metrics", faqHandler.Metrics)

	// WhatsApp webhook
	engine.POST("/webhook/:business_id", webhookHandler.HandleMessage)

	// Management API
	v1 := engine.Group("/v1", handler.APIKeyMiddleware(apiKey))
	{
		faq := v1.Group("/faq")
		{
			faq.POST("/upload", faqHandler.UploadDocument)
			faq.POST("/query", faqHandler.Query)
			faq.GET("/analytics/:business_id", faqHandler.Analytics)
			faq.GET("/businesses", faqHandler.Businesses)
			faq.GET("/stats", faqHandler.Stats)
		}
	}

	logger.Info("HTTP routes registered")
}
