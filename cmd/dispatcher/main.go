package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hitchly/engagement-tracker/internal/config"
	"github.com/hitchly/engagement-tracker/internal/dispatch"
	gateway "github.com/hitchly/engagement-tracker/internal/gateways"
	"github.com/hitchly/engagement-tracker/internal/repository"
	"github.com/hitchly/engagement-tracker/internal/services"
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

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	cfg := gateway.DefaultClientConfig()
	cfg.Timeout = time.Second * 5
	cfg.MaxRetries = 3
	cfg.RetryDelay = time.Millisecond * 100
	cfg.Endpoints = map[string]gateway.EndpointConfig{
		"primary":   {URL: config.Get().ProviderPrimaryUrl, Weight: 100},
		"secondary": {URL: config.Get().ProviderSecondaryUrl, Weight: 80},
		"backup":    {URL: config.Get().ProviderBackupUrl, Weight: 60},
	}
	client, err := gateway.NewClient(cfg)
	if err != nil {
		logger.Error("failed to create provider client", "error", err)
		return
	}

	eventRepo := repository.NewTrackingEventRepository(db)
	trackingService := services.NewTrackingService(eventRepo, config.Get().WebhookAuthToken, redisAdap)

	idempotencyService := dispatch.NewIdempotencyService(redisAdap, dispatch.DefaultIdempotencyConfig())

	service, err := dispatch.NewDispatchService(redisAdap)
	if err != nil {
		logger.Error("failed to create the dispatcher", "error", err)
		return
	}
	service.RegisterProcessor(dispatch.NewOutboundProcessor(client, trackingService, idempotencyService))

	var hostname string
	hostname, err = os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	err = prom.Create(hostname, config.Get().AppEnv, config.Get().PromNamespace)
	if err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}

	go func() {
		prom.ListenAndServer(":9100", "/metrics")
	}()

	go func() {
		err := service.Start()
		if err != nil {
			logger.Error("failed to start dispatcher", "error", err)
		}
	}()

	select {
	case <-c:
		service.Stop()
		client.Close()
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
