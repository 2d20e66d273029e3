// Command bmauth-smoke signs in against a marketplace API deployment
// and reports what the SDK did: the computed landing route, the token
// store contents, and the client counters. Useful as a deployment
// smoke check and when debugging role gating.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/bridgemark/bmauth"
	"github.com/rs/zerolog"
)

func main() {
	var (
		baseURL  = flag.String("base-url", "", "marketplace API root, e.g. https://api.example.com")
		userName = flag.String("user", "", "login user name")
		password = flag.String("pass", "", "login password")
		target   = flag.String("target", "user", "role target: user or partner")
		storeAt  = flag.String("store", "", "path for a file token store; in-memory when empty")
		probe    = flag.String("probe", "", "optional authenticated GET path to exercise the transport")
		verbose  = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *baseURL == "" || *userName == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "base-url, user, and pass are required")
		os.Exit(2)
	}

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	builder := bmauth.New().
		WithBaseURL(*baseURL).
		WithLogger(log).
		WithAuditSink(bmauth.NewJSONWriterSink(os.Stdout))
	if *storeAt != "" {
		builder = builder.WithFileStore(*storeAt)
	}

	client, err := builder.Build()
	if err != nil {
		log.Fatal().Err(err).Msg("build client")
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := client.Login(ctx, bmauth.Credential{
		UserName: *userName,
		Password: *password,
	}, bmauth.RoleTarget(*target))
	if err != nil {
		log.Fatal().Err(err).Msg("login")
	}
	log.Info().
		Int("userId", result.Identity.UserID).
		Str("roleIds", result.Identity.RoleIDs).
		Str("route", result.Route).
		Msg("signed in")

	if *probe != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, *baseURL+*probe, nil)
		if err != nil {
			log.Fatal().Err(err).Msg("build probe request")
		}
		resp, err := client.HTTPClient().Do(req)
		if err != nil {
			log.Fatal().Err(err).Msg("probe")
		}
		resp.Body.Close()
		log.Info().Str("path", *probe).Int("status", resp.StatusCode).Msg("probe done")
	}

	snap := client.Metrics()
	log.Info().
		Uint64("loginSuccess", snap.LoginSuccess).
		Uint64("refreshSuccess", snap.RefreshSuccess).
		Uint64("requestRetried", snap.RequestRetried).
		Msg("counters")
}
