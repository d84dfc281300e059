package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/conakrylabs/ticket-bot/internal/channel"
	"github.com/conakrylabs/ticket-bot/internal/config"
	"github.com/conakrylabs/ticket-bot/internal/database"
	"github.com/conakrylabs/ticket-bot/internal/flow"
	"github.com/conakrylabs/ticket-bot/internal/handler"
	"github.com/conakrylabs/ticket-bot/internal/middleware"
	"github.com/conakrylabs/ticket-bot/internal/model"
	"github.com/conakrylabs/ticket-bot/internal/payment"
	"github.com/conakrylabs/ticket-bot/internal/queue"
	"github.com/conakrylabs/ticket-bot/internal/repository"
	"github.com/conakrylabs/ticket-bot/internal/router"
	queue_publisher "github.com/conakrylabs/ticket-bot/internal/service"
	"github.com/conakrylabs/ticket-bot/internal/session"
	"github.com/conakrylabs/ticket-bot/internal/ticket"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments set the environment directly
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis backs sessions, rate limiting and the catalog cache. All
	// three degrade gracefully when it is absent: sessions fall back to
	// process memory, the middlewares become pass-throughs.
	rdb := config.NewRedisClient()
	var store session.Store
	if rdb != nil {
		store = session.NewRedisStore(rdb, cfg.SessionTTL)
	} else {
		log.Println("redis unavailable, using in-memory sessions")
		store = session.NewMemoryStore(cfg.SessionTTL)
	}

	eventRepo := repository.NewEventRepo(db)
	ticketRepo := repository.NewTicketRepo(db)

	gateway := payment.NewClient(cfg.PaycardCommerceCode, cfg.PaycardCreateURL, cfg.PaycardStatusBase, cfg.PaycardCallbackURL)
	orchestrator := payment.NewOrchestrator(gateway, store, ticketRepo)
	poller := payment.NewPoller(cfg.PaymentPollInterval, cfg.PaymentPollMaxAttempts)

	publish := func(ctx context.Context, tickets []model.Ticket) {
		if len(tickets) == 0 {
			return
		}
		first := tickets[0]
		ev := queue.TicketIssuedEvent{
			PaymentReference: first.PaymentReference,
			Channel:          first.PurchaseChannel,
			Buyer:            first.User,
			Phone:            first.Phone,
			EventID:          first.EventID,
			EventName:        first.EventName,
			CategoryName:     first.CategoryName,
			Quantity:         first.Quantity,
			TotalAmount:      first.UnitPrice * uint64(first.Quantity),
			IssuedAt:         time.Now().UTC().Format(time.RFC3339),
		}
		for _, t := range tickets {
			ev.TicketIDs = append(ev.TicketIDs, t.FormattedID)
		}
		_ = queue_publisher.PublishTicketIssued(ctx, ev)
	}

	renderer := ticket.TextRenderer{}
	issuer := ticket.NewIssuer(db, eventRepo, ticketRepo, renderer, store, publish)

	machine := flow.NewMachine(flow.RepoCatalog{Events: eventRepo}, store, orchestrator, issuer, ticketRepo, renderer, poller)

	if err := os.MkdirAll(cfg.MediaDir, 0o755); err != nil {
		log.Fatalf("media dir: %v", err)
	}

	e := echo.New()
	e.HideBanner = true
	rateLimit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	router.RegisterRoutes(e)
	router.RegisterCatalog(e, &handler.CatalogHandler{EventRepo: eventRepo}, rateLimit, cache)
	router.RegisterMedia(e, &handler.MediaHandler{Dir: cfg.MediaDir})

	if cfg.TwilioAccountSID != "" {
		wa := channel.NewWhatsApp(machine, cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFrom, cfg.PublicBaseURL, cfg.MediaDir)
		router.RegisterWhatsApp(e, wa, rateLimit)
		log.Println("whatsapp bot enabled")
	}
	if cfg.TelegramToken != "" {
		tg := channel.NewTelegram(machine, cfg.TelegramToken)
		go tg.Run(context.Background())
		log.Println("telegram bot enabled")
	}

	go func() {
		if err := queue.StartTicketConsumer(); err != nil {
			log.Printf("ticket consumer stopped: %v", err)
		}
	}()

	defer poller.StopAll()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
