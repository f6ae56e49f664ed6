package main

import (
	"flag"
	"net/http"
	"os"

	"github.com/rs/zerolog"
	"github.com/ledgerxgo/ledgerxgo"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/semaphore"
	"gopkg.in/yaml.v3"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	var cfg ledgerxgo.Config
	cfp := flag.String("config", "config.yml", "path to configuration file")
	flag.Parse()
	cfgfl, err := os.Open(*cfp)
	if err != nil {
		logger.Fatal().Err(err).Msg("error opening config file")
	}
	if err = yaml.NewDecoder(cfgfl).Decode(&cfg); err != nil {
		logger.Fatal().Err(err).Msg("error decoding config file")
	}

	pgendpt, err := ledgerxgo.NewPostgresEndpoint(cfg.Database.ConnectionString, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("error starting database")
	}

	limits := &ledgerxgo.ServiceLimits{
		Deposit:   semaphore.NewWeighted(limitOrDefault(cfg.Limits.Deposit)),
		Withdraw:  semaphore.NewWeighted(limitOrDefault(cfg.Limits.Withdraw)),
		Balance:   semaphore.NewWeighted(limitOrDefault(cfg.Limits.Balance)),
		Statement: semaphore.NewWeighted(limitOrDefault(cfg.Limits.Statement)),
	}
	brkrs := &ledgerxgo.ServiceBreaker{
		Deposit:   gobreaker.NewTwoStepCircuitBreaker[*decimal.Decimal](gobreaker.Settings{Name: "deposit"}),
		Withdraw:  gobreaker.NewTwoStepCircuitBreaker[*decimal.Decimal](gobreaker.Settings{Name: "withdraw"}),
		Balance:   gobreaker.NewTwoStepCircuitBreaker[*decimal.Decimal](gobreaker.Settings{Name: "balance"}),
		Statement: gobreaker.NewTwoStepCircuitBreaker[string](gobreaker.Settings{Name: "statement"}),
	}

	var svc ledgerxgo.Service = ledgerxgo.NewService(pgendpt, &logger)
	for _, mw := range []ledgerxgo.Middleware{
		ledgerxgo.NewValidationMiddleware(),
		ledgerxgo.NewLimitMiddleware(limits),
		ledgerxgo.NewCircuitBreakMiddleware(brkrs),
	} {
		svc = mw(svc)
	}
	hndlr := ledgerxgo.NewHTTPHandler(svc, &logger)

	listen := cfg.Listen
	if listen == "" {
		listen = ":3000"
	}
	logger.Info().Str("listen", listen).Msg("starting server")
	if err = http.ListenAndServe(listen, hndlr); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}

func limitOrDefault(n int64) int64 {
	if n <= 0 {
		return 64
	}
	return n
}
