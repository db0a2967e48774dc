package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hitchly/engagement-tracker/internal/config"
	"github.com/hitchly/engagement-tracker/internal/handlers"
	"github.com/hitchly/engagement-tracker/internal/pagecache"
	"github.com/hitchly/engagement-tracker/internal/queue"
	"github.com/hitchly/engagement-tracker/internal/repository"
	"github.com/hitchly/engagement-tracker/internal/services"
	xhttp "github.com/hitchly/engagement-tracker/pkg/http"
	"github.com/hitchly/engagement-tracker/pkg/logger"
	"github.com/hitchly/engagement-tracker/pkg/pg"
	"github.com/hitchly/engagement-tracker/pkg/prom"
	"github.com/hitchly/engagement-tracker/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	// transport (tcp for now)
	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(time.Second * 5))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	pgDebug := false
	if config.Get().AppEnv == "dev" {
		pgDebug = true
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "default",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	outboundQ, err := queue.NewQueue(redisAdap, queue.QueueConfig{
		Name:              config.Get().QueueName,
		ConsumerGroup:     config.Get().QueueConsumerGroup,
		ConsumerName:      config.Get().QueueConsumerName,
		MaxRetries:        config.Get().QueueMaxRetries,
		VisibilityTimeout: config.Get().QueueVisibilityTimeout,
		PollInterval:      config.Get().QueuePollInterval,
		BatchSize:         config.Get().QueueBatchSize,
		MaxLen:            config.Get().QueueMaxLen,
		EnableDLQ:         config.Get().QueueEnableDLQ,
	})
	if err != nil {
		logger.Error("failed creating queue", "error", err)
		return
	}

	var hostname string
	hostname, err = os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	if err := prom.Create(hostname, config.Get().AppEnv, config.Get().PromNamespace); err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}

	eventRepo := repository.NewTrackingEventRepository(db)
	recipientRepo := repository.NewRecipientRepository(db)

	// services
	trackingService := services.NewTrackingService(eventRepo, config.Get().WebhookAuthToken, redisAdap)
	engagementService := services.NewEngagementService(recipientRepo, eventRepo)
	healthService := services.NewHealthService()
	pageCache := pagecache.New(redisAdap, config.Get().PageCacheTTL)

	// v1 handlers
	callbackHandler := handlers.NewCallbackHandler(trackingService, config.Get().WebhookPublicURL)
	eventsHandler := handlers.NewEventsHandler(trackingService, eventRepo, outboundQ)
	engagementHandler := handlers.NewEngagementHandler(engagementService)
	pageHandler := handlers.NewPageCacheHandler(pageCache, pageCache, pageCache)
	healthHandler := handlers.NewHealthHandler(healthService)

	g := s.Router.Group("/api/v1")
	handlers.RegisterCallbackRoutes(g, callbackHandler)
	handlers.RegisterEventRoutes(g, eventsHandler)
	handlers.RegisterEngagementRoutes(g, engagementHandler)
	handlers.RegisterPageCacheRoutes(g, pageHandler)
	handlers.RegisterHealthRoutes(g, healthHandler)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		var err = s.ListenAndServe(config.Get().HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	select {
	case <-c:
		s.Shutdown()
	}
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
