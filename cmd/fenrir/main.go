// Command fenrir runs the matching engine process: the wire session server,
// the liquidity provider's background refresh loop, and the read-only
// inspection API, constructed in dependency order (price cache, profile
// cache, engine, liquidity provider) and torn down in reverse.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"fenrir/internal/config"
	"fenrir/internal/engine"
	"fenrir/internal/inspect"
	"fenrir/internal/liquidity"
	"fenrir/internal/refprice"
	"fenrir/internal/wire"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	configPath := flag.String("config", "", "path to an optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Construct order: price cache, profile cache, engine, liquidity
	// provider.
	var priceFetcher refprice.Fetcher
	var profileFetcher liquidity.ProfileFetcher
	if cfg.HasCredentials() && cfg.QuoteBaseURL != "" {
		priceFetcher = refprice.NewHTTPFetcher(cfg.QuoteBaseURL, cfg.APIKey)
	}
	if cfg.HasCredentials() && cfg.ProfileBaseURL != "" {
		profileFetcher = liquidity.NewHTTPProfileFetcher(cfg.ProfileBaseURL, cfg.APIKey)
	}

	priceCache := refprice.New(cfg.PriceCacheTTL(), priceFetcher)
	profileCache := liquidity.NewProfileCache(profileFetcher)

	eng := engine.New()

	var provider *liquidity.Provider
	var t tomb.Tomb
	if cfg.EnableLiquidity {
		provider = liquidity.NewProvider(liquidity.Config{
			Prices:          priceCache,
			Profiles:        profileCache,
			FallbackPrice:   cfg.FallbackPriceDecimal(),
			RefreshInterval: cfg.RefreshInterval(),
		})
		provider.Attach(eng)
		eng.SetLiquidityProvider(provider)
		provider.StartRefresh(&t)
	}

	// provider is passed through an interface variable rather than
	// directly: a nil *liquidity.Provider boxed straight into
	// inspect.LiquiditySource would be a non-nil interface wrapping a nil
	// pointer, defeating Handler's "liquidity == nil" check.
	var liquiditySource inspect.LiquiditySource
	if provider != nil {
		liquiditySource = provider
	}

	wireServer := wire.New(cfg.WireListenAddr, eng)
	inspectHandler := inspect.NewHandler(eng, liquiditySource)
	inspectServer := inspect.NewServer(cfg.InspectListenAddr, inspectHandler)

	t.Go(func() error { return wireServer.Run(ctx) })
	t.Go(func() error { return inspectServer.Run(ctx) })

	log.Info().
		Str("wire", cfg.WireListenAddr).
		Str("inspect", cfg.InspectListenAddr).
		Bool("liquidity", cfg.EnableLiquidity).
		Msg("fenrir running")

	<-ctx.Done()
	log.Info().Msg("shutting down")
	wireServer.Shutdown()

	// Teardown: the wire and inspection servers stop first (ctx is done and
	// Shutdown was called), then tomb.Kill stops the liquidity provider's
	// refresh loop; engine, profile cache and price cache need no explicit
	// teardown (no background goroutines).
	t.Kill(nil)
	if err := t.Wait(); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
		os.Exit(1)
	}
}
