package main

import (
	"context"
	"time"

	"github.com/gabapcia/escrowledger/internal/escrow"
	"github.com/gabapcia/escrowledger/internal/handlers/cli"
	"github.com/gabapcia/escrowledger/internal/handlers/httpapi"
	"github.com/gabapcia/escrowledger/internal/identity"
	"github.com/gabapcia/escrowledger/internal/infra/blockchain/ethereum"
	"github.com/gabapcia/escrowledger/internal/infra/storage/redis"
	"github.com/gabapcia/escrowledger/internal/pkg/logger"
	"github.com/gabapcia/escrowledger/internal/pkg/telemetry"
	transporthttp "github.com/gabapcia/escrowledger/internal/pkg/transport/http"
	"github.com/gabapcia/escrowledger/internal/pkg/transport/jsonrpc"
	"github.com/gabapcia/escrowledger/internal/transfer"
	"github.com/gabapcia/escrowledger/internal/txledger"

	"github.com/kelseyhightower/envconfig"
)

const serviceName = "escrowledger"

// appConfig is loaded from ESCROWLEDGER_* environment variables.
type appConfig struct {
	OracleEndpoint string `envconfig:"ORACLE_ENDPOINT" required:"true"`
	HTTPAddr       string `envconfig:"HTTP_ADDR" default:":8080"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`

	RedisAddr     string `envconfig:"REDIS_ADDR" required:"true"`
	RedisUsername string `envconfig:"REDIS_USERNAME"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB"`

	AgreementGraceWindow time.Duration `envconfig:"AGREEMENT_GRACE_WINDOW" default:"24h"`

	// TelemetryEnabled turns on the OTLP exporters; without it only local
	// logging is active.
	TelemetryEnabled bool `envconfig:"TELEMETRY_ENABLED"`
}

func main() {
	ctx := context.Background()

	var cfg appConfig
	if err := envconfig.Process(serviceName, &cfg); err != nil {
		_ = logger.Init()
		logger.Fatal(ctx, "failed to load configuration", "error", err)
	}

	if cfg.TelemetryEnabled {
		shutdown, err := telemetry.Init(ctx, serviceName)
		if err != nil {
			logger.Fatal(ctx, "failed to initialize telemetry", "error", err)
		}
		defer shutdown(ctx)
	}

	if err := logger.Init(logger.WithLevel(cfg.LogLevel), logger.WithServiceName(serviceName)); err != nil {
		logger.Fatal(ctx, "failed to initialize logger", "error", err)
	}
	defer logger.Sync()

	storage, err := redis.NewClient(ctx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Fatal(ctx, "failed to connect to redis", "error", err)
	}
	defer storage.Close()

	oracle := ethereum.NewClient(jsonrpc.NewClient(transporthttp.NewStandardClient(), cfg.OracleEndpoint))

	ledger := txledger.New(oracle, storage, transfer.DefaultRegistry())
	agreements := escrow.New(storage, escrow.WithGraceWindow(cfg.AgreementGraceWindow))
	identities := identity.New(storage)

	api := httpapi.New(cfg.HTTPAddr, ledger, agreements, identities)

	if err := cli.Run(ctx, api, ledger); err != nil {
		logger.Fatal(ctx, "command failed", "error", err)
	}
}
