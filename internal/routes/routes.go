package routes

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/velora/internal/cache"
	"github.com/example/velora/internal/config"
	"github.com/example/velora/internal/handlers"
	"github.com/example/velora/internal/middleware"
	"github.com/example/velora/internal/services"
)

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config, store cache.Store, mailer services.MailEnqueuer) {
	blacklist := services.NewBlacklist(store)
	pending := services.NewPendingStore(store, cfg.CheckoutTTL)
	gateway := services.NewRazorpayGateway(cfg.RazorpayKeyID, cfg.RazorpayKeySecret)

	auth := middleware.NewAuth(db, cfg, blacklist)

	authHandler := handlers.NewAuthHandler(db, cfg, blacklist, mailer)
	resetHandler := handlers.NewPasswordResetHandler(db, cfg, mailer)
	productHandler := handlers.NewProductHandler(db)
	cartHandler := handlers.NewCartHandler(db)
	addressHandler := handlers.NewAddressHandler(db)
	checkoutHandler := handlers.NewCheckoutHandler(db, pending, gateway)
	orderHandler := handlers.NewOrderHandler(db)

	app.Use(auth.AttachUser())

	// Auth lifecycle. The verify cookie is path-scoped to /verify-email, so
	// these routes stay at the top level.
	app.Post("/register", authHandler.Register)
	app.Post("/login", authHandler.Login)
	app.Post("/refresh", authHandler.Refresh)
	app.Post("/logout", authHandler.Logout)
	app.Post("/logout-all", auth.RequireAPIAuth(), authHandler.LogoutAll)
	app.Post("/verify-email", authHandler.VerifyEmail)
	app.Post("/verify-email/resend", authHandler.ResendVerifyOTP)
	app.Post("/forgot-password", resetHandler.Forgot)
	app.Post("/reset-password", resetHandler.Reset)

	// Catalog (public)
	products := app.Group("/products")
	products.Get("/", productHandler.List)
	products.Get("/:slug", productHandler.Get)

	// Cart
	cart := app.Group("/cart", auth.RequireAPIAuth())
	cart.Get("/", cartHandler.Get)
	cart.Post("/items", cartHandler.AddItem)
	cart.Patch("/items/:id", cartHandler.UpdateItem)
	cart.Delete("/items/:id", cartHandler.RemoveItem)

	// Addresses
	addresses := app.Group("/addresses", auth.RequireAPIAuth())
	addresses.Get("/", addressHandler.List)
	addresses.Post("/", addressHandler.Create)
	addresses.Put("/:id", addressHandler.Update)
	addresses.Patch("/:id/default", addressHandler.SetDefault)
	addresses.Delete("/:id", addressHandler.Delete)

	// Checkout and orders require a verified account.
	checkout := app.Group("/checkout", auth.RequireAPIAuth(), auth.RequireAPIVerified())
	checkout.Post("/place-order", checkoutHandler.PlaceOrder)
	checkout.Post("/verify-payment", checkoutHandler.VerifyPayment)
	checkout.Post("/payment-failed", checkoutHandler.PaymentFailed)

	orders := app.Group("/orders", auth.RequireAPIAuth(), auth.RequireAPIVerified())
	orders.Get("/", orderHandler.List)
	orders.Get("/:orderId", orderHandler.Get)
}
