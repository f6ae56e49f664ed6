package main

import (
	"flag"
	"os"

	"github.com/bwmarrin/snowflake"
	"github.com/rs/zerolog"
	"github.com/ledgerxgo/ledgerxgo"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Provisions accounts directly against the store. Account creation is not a
// ledger operation, so it lives here instead of the service.
func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfp := flag.String("config", "config.yml", "path to configuration file")
	count := flag.Int("n", 1, "number of accounts to create")
	opening := flag.String("balance", "0", "opening balance for each account")
	node := flag.Int64("node", 1, "snowflake node ID")
	flag.Parse()

	var cfg ledgerxgo.Config
	cfgfl, err := os.Open(*cfp)
	if err != nil {
		logger.Fatal().Err(err).Msg("error opening config file")
	}
	if err = yaml.NewDecoder(cfgfl).Decode(&cfg); err != nil {
		logger.Fatal().Err(err).Msg("error decoding config file")
	}

	bal, err := decimal.NewFromString(*opening)
	if err != nil || bal.Sign() < 0 || bal.Exponent() < -2 {
		logger.Fatal().Str("balance", *opening).Msg("opening balance must be a non-negative amount with at most two decimal places")
	}

	sn, err := snowflake.NewNode(*node)
	if err != nil {
		logger.Fatal().Err(err).Msg("error creating snowflake node")
	}

	pgendpt, err := ledgerxgo.NewPostgresEndpoint(cfg.Database.ConnectionString, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("error starting database")
	}

	for i := 0; i < *count; i++ {
		id := sn.Generate().String()
		if err = pgendpt.CreateAccount(id, bal); err != nil {
			logger.Fatal().Err(err).Str("acct_id", id).Msg("error creating account")
		}
		logger.Info().Str("acct_id", id).Str("balance", bal.String()).Msg("account created")
	}
}
