package app

import (
	"carbid-backend/internal/auctions"
	"carbid-backend/internal/auth"
	"carbid-backend/internal/bids"
	"carbid-backend/internal/cache"
	"carbid-backend/internal/cars"
	"carbid-backend/internal/config"
	"carbid-backend/internal/database"
	"carbid-backend/internal/emails"
	"carbid-backend/internal/health"
	"carbid-backend/internal/middleware"
	"carbid-backend/internal/notifications"
	"carbid-backend/internal/notify"
	"carbid-backend/internal/pkg/lockmap"
	"carbid-backend/internal/realtime"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// App bundles everything main needs to run and shut down the service.
type App struct {
	Fiber      *fiber.App
	DB         *gorm.DB
	Rdb        *redis.Client
	Dispatcher *notify.Dispatcher
	Auctions   *auctions.Service
}

// New builds the Fiber app with all global middleware, services and routes.
func New(cfg *config.Config) (*App, error) {
	fiberApp := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          middleware.ErrorHandler,
	})

	fiberApp.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
	}))

	sessionCfg := middleware.SessionConfig{
		Secret:       cfg.SessionSecret,
		RedisURL:     cfg.RedisURL,
		IsProduction: cfg.Env == "production",
	}
	sessionHandler, rdb, err := middleware.Session(sessionCfg)
	if err != nil {
		return nil, err
	}
	fiberApp.Use(sessionHandler)

	fiberApp.Use(middleware.Tracing())
	fiberApp.Use(middleware.RouteLogger())

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(db); err != nil {
		return nil, err
	}

	dispatcher := notify.NewDispatcher(cfg.DispatchWorkers, cfg.DispatchQueueSize)
	locks := lockmap.New()

	var mailer emails.Sender
	if cfg.BrevoAPIKey != "" {
		mailer = &emails.BrevoClient{APIKey: cfg.BrevoAPIKey, MailFrom: cfg.MailFrom}
	}
	notifier := &notifications.Service{DB: db, Emails: mailer}
	broadcaster := &realtime.Broadcaster{Rdb: rdb}

	auctionService := &auctions.Service{
		DB:       db,
		Locks:    locks,
		Notifier: notifier,
		Realtime: broadcaster,
		Dispatch: dispatcher,
	}
	bidService := &bids.Service{
		DB:       db,
		Locks:    locks,
		Notifier: notifier,
		Realtime: broadcaster,
		Dispatch: dispatcher,
	}
	carService := &cars.Service{DB: db, Cache: &cache.Cache{Rdb: rdb}}

	// --- Routes (no auth) ---
	healthHandlers := &health.Handlers{DB: db, Rdb: rdb}
	fiberApp.Get("/health/json", healthHandlers.JSON)

	authHandlers := &auth.Handlers{DB: db, Rdb: rdb, Config: sessionCfg}
	authGroup := fiberApp.Group("/api/v1/auth")
	authGroup.Post("/register", authHandlers.Register)
	authGroup.Post("/login", authHandlers.Login)
	authGroup.Get("/me", authHandlers.Me)
	authGroup.Delete("/logout", authHandlers.Logout)

	// --- Protected routes ---
	carHandlers := &cars.Handlers{Service: carService}
	carGroup := fiberApp.Group("/api/v1/cars", middleware.RequireAuth())
	carGroup.Post("/", carHandlers.CreateCar)
	carGroup.Get("/", carHandlers.ListCars)
	carGroup.Get("/:id", carHandlers.GetCar)

	auctionHandlers := &auctions.Handlers{Service: auctionService}
	auctionGroup := fiberApp.Group("/api/v1/auctions", middleware.RequireAuth())
	auctionGroup.Post("/", auctionHandlers.CreateAuction)
	auctionGroup.Get("/", auctionHandlers.ListAuctions)
	auctionGroup.Post("/close-expired", auctionHandlers.CloseExpired)
	auctionGroup.Get("/:id", auctionHandlers.GetAuction)
	auctionGroup.Put("/:id", auctionHandlers.UpdateAuction)
	auctionGroup.Post("/:id/cancel", auctionHandlers.CancelAuction)
	auctionGroup.Get("/:id/bids", auctionHandlers.GetAuctionBids)

	bidHandlers := &bids.Handlers{Service: bidService}
	bidGroup := fiberApp.Group("/api/v1/bids", middleware.RequireAuth())
	bidGroup.Post("/", bidHandlers.PlaceBid)
	bidGroup.Get("/my-bids", bidHandlers.MyBids)
	bidGroup.Get("/auction/:id/winning", bidHandlers.WinningBid)

	notificationHandlers := &notifications.Handlers{Service: notifier}
	notifGroup := fiberApp.Group("/api/v1/notifications", middleware.RequireAuth())
	notifGroup.Get("/", notificationHandlers.List)
	notifGroup.Get("/unread-count", notificationHandlers.UnreadCount)
	notifGroup.Patch("/read-all", notificationHandlers.MarkAllRead)
	notifGroup.Patch("/:id/read", notificationHandlers.MarkRead)
	notifGroup.Delete("/:id", notificationHandlers.Delete)

	return &App{
		Fiber:      fiberApp,
		DB:         db,
		Rdb:        rdb,
		Dispatcher: dispatcher,
		Auctions:   auctionService,
	}, nil
}
