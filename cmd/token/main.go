// Package main mints operator tokens for the status API.
//
// It reads the same JWT_* and TOKEN_TTL variables as the API, so a token
// minted here validates against an API started with the same environment.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/servicestatus/servicestatus/internal/auth"
	"github.com/servicestatus/servicestatus/internal/config"
)

func main() {
	subject := flag.String("sub", "", "operator the token is issued to (required)")
	scopes := flag.String("scope", auth.ScopeRead+" "+auth.ScopeSweep, "space separated scopes to grant")
	ttl := flag.Duration("ttl", 0, "token lifetime, overrides TOKEN_TTL when set")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true}).
		With().
		Timestamp().
		Logger()

	if *subject == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if *ttl > 0 {
		cfg.TokenTTL = *ttl
	}
	if cfg.IsProduction() && cfg.JWTSigningKey == "" {
		log.Fatal().Msg("JWT_SIGNING_KEY is required in production")
	}

	tokens, err := auth.NewTokenService(cfg.TokenConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create token service")
	}

	token, err := tokens.Issue(*subject, strings.Fields(*scopes)...)
	if err != nil {
		log.Fatal().Err(err).Str("subject", *subject).Msg("failed to issue token")
	}

	log.Info().
		Str("subject", *subject).
		Str("scope", strings.Join(strings.Fields(*scopes), " ")).
		Time("expires_at", token.ExpiresAt).
		Dur("ttl", time.Until(token.ExpiresAt).Round(time.Second)).
		Msg("token issued")

	fmt.Println(token.Value)
}
