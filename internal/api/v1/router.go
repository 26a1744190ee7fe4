package apiv1

import (
	"github.com/gofiber/fiber/v2"
)

// InstallRoutes mounts the v1 API on the app.
func InstallRoutes(app *fiber.App, s *Server) {
	v1 := app.Group("/api/v1")

	v1.Get("/ping", s.GetPing)

	v1.Post("/process", s.PostProcess)
	v1.Get("/jobs/:id/status", s.GetJobStatus)
	v1.Get("/history", s.GetHistory)

	v1.Get("/credits/balance", s.GetBalance)
	v1.Get("/credits/transactions", s.GetTransactions)

	v1.Get("/subscription", s.GetSubscription)
	v1.Post("/subscription/cancel", s.PostSubscriptionCancel)

	v1.Post("/webhooks/payment", s.PostWebhook)
}
