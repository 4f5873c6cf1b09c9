package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/upfront-market/api/internal/platform/auth"
	"github.com/upfront-market/api/internal/platform/config"
	"github.com/upfront-market/api/internal/platform/database"
	"github.com/upfront-market/api/internal/platform/observability"
	"github.com/upfront-market/api/internal/platform/secrets"
	"github.com/upfront-market/api/internal/repositories/sqlstore"
	"github.com/upfront-market/api/internal/services"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	app := newApp(logger.Named("marketctl"))
	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatal("command failed", zap.Error(err))
	}
}

func newApp(logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "marketctl",
		Usage: "Operate the Upfront marketplace database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "dotenv file merged into the process environment",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "Create or update every table",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withRegistry(ctx, cmd, logger, func(ctx context.Context, _ config.Config, reg *sqlstore.Registry) error {
						if err := reg.Migrate(ctx); err != nil {
							return err
						}
						logger.Info("migration complete")
						return nil
					})
				},
			},
			{
				Name:  "settings",
				Usage: "Manage site settings",
				Commands: []*cli.Command{
					{
						Name:  "set",
						Usage: "Update the service fee or currency",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "service-fee", Usage: "service fee percent, e.g. 2.5"},
							&cli.StringFlag{Name: "currency", Usage: "ISO 4217 currency code"},
							&cli.StringFlag{Name: "symbol", Usage: "currency symbol shown in emails"},
						},
						Action: func(ctx context.Context, cmd *cli.Command) error {
							update, err := settingsCommand(cmd)
							if err != nil {
								return err
							}
							return withRegistry(ctx, cmd, logger, func(ctx context.Context, _ config.Config, reg *sqlstore.Registry) error {
								svc, err := newSettingsService(reg)
								if err != nil {
									return err
								}
								saved, err := svc.Update(ctx, update)
								if err != nil {
									return err
								}
								logger.Info("settings updated",
									zap.String("service_fee_percent", saved.ServiceFeePercent.String()),
									zap.String("currency_code", saved.CurrencyCode),
									zap.String("currency_symbol", saved.CurrencySymbol),
								)
								return nil
							})
						},
					},
				},
			},
			{
				Name:  "tax",
				Usage: "Manage country tax rates",
				Commands: []*cli.Command{
					{
						Name:  "set",
						Usage: "Create or update the tax rate of a country",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "country", Required: true},
							&cli.StringFlag{Name: "rate", Required: true, Usage: "percent, e.g. 11"},
							&cli.BoolFlag{Name: "inactive", Usage: "store the rate without applying it"},
						},
						Action: func(ctx context.Context, cmd *cli.Command) error {
							rate, err := decimal.NewFromString(strings.TrimSpace(cmd.String("rate")))
							if err != nil {
								return fmt.Errorf("invalid --rate: %w", err)
							}
							return withRegistry(ctx, cmd, logger, func(ctx context.Context, _ config.Config, reg *sqlstore.Registry) error {
								svc, err := newSettingsService(reg)
								if err != nil {
									return err
								}
								tax, err := svc.UpsertTax(ctx, services.UpsertTaxCommand{
									Country: cmd.String("country"),
									Rate:    rate,
									Active:  !cmd.Bool("inactive"),
								})
								if err != nil {
									return err
								}
								logger.Info("tax saved", zap.String("country", tax.Country), zap.String("rate", tax.Rate.String()), zap.Bool("active", tax.Active))
								return nil
							})
						},
					},
				},
			},
			{
				Name:  "token",
				Usage: "Mint bearer tokens and manage identity claims",
				Commands: []*cli.Command{
					{
						Name:  "issue",
						Usage: "Sign a JWT accepted by the API in jwt auth mode",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "subject", Required: true, Usage: "user id"},
							&cli.StringFlag{Name: "email"},
							&cli.StringSliceFlag{Name: "role", Usage: "buyer, vendor or admin (repeatable)"},
							&cli.StringFlag{Name: "vendor", Usage: "vendor id for vendor tokens"},
							&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour},
						},
						Action: func(ctx context.Context, cmd *cli.Command) error {
							cfg, err := loadConfig(ctx, cmd, logger)
							if err != nil {
								return err
							}
							token, err := auth.SignToken(cfg.Auth.JWTSecret, auth.TokenClaims{
								Subject:  cmd.String("subject"),
								Email:    cmd.String("email"),
								Roles:    cmd.StringSlice("role"),
								VendorID: cmd.String("vendor"),
								Issuer:   cfg.Auth.JWTIssuer,
								TTL:      cmd.Duration("ttl"),
							}, time.Now().UTC())
							if err != nil {
								return err
							}
							_, err = fmt.Fprintln(cmd.Root().Writer, token)
							return err
						},
					},
					{
						Name:  "grant",
						Usage: "Store marketplace roles as Firebase custom claims",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "uid", Required: true, Usage: "firebase user id"},
							&cli.StringSliceFlag{Name: "role", Usage: "buyer, vendor or admin (repeatable)"},
							&cli.StringFlag{Name: "vendor", Usage: "vendor id for vendor accounts"},
						},
						Action: func(ctx context.Context, cmd *cli.Command) error {
							cfg, err := loadConfig(ctx, cmd, logger)
							if err != nil {
								return err
							}
							verifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
							if err != nil {
								return err
							}
							if err := verifier.SetMarketplaceClaims(ctx, cmd.String("uid"), cmd.StringSlice("role"), cmd.String("vendor")); err != nil {
								return err
							}
							logger.Info("custom claims stored", zap.String("uid", cmd.String("uid")))
							return nil
						},
					},
				},
			},
			{
				Name:  "catalog",
				Usage: "Seed catalog data",
				Commands: []*cli.Command{
					{
						Name:      "import",
						Usage:     "Load users, vendors, categories and products from a JSON file",
						ArgsUsage: "<file.json>",
						Action: func(ctx context.Context, cmd *cli.Command) error {
							path := strings.TrimSpace(cmd.Args().First())
							if path == "" {
								return errors.New("catalog import: file argument is required")
							}
							seed, err := readSeedFile(path)
							if err != nil {
								return err
							}
							return withRegistry(ctx, cmd, logger, func(ctx context.Context, _ config.Config, reg *sqlstore.Registry) error {
								summary, err := importSeed(ctx, reg, seed)
								if err != nil {
									return err
								}
								logger.Info("catalog imported",
									zap.Int("users", summary.Users),
									zap.Int("vendors", summary.Vendors),
									zap.Int("categories", summary.Categories),
									zap.Int("products", summary.Products),
								)
								return nil
							})
						},
					},
				},
			},
		},
	}
}

func settingsCommand(cmd *cli.Command) (services.UpdateSettingsCommand, error) {
	var update services.UpdateSettingsCommand
	if raw := strings.TrimSpace(cmd.String("service-fee")); raw != "" {
		fee, err := decimal.NewFromString(raw)
		if err != nil {
			return update, fmt.Errorf("invalid --service-fee: %w", err)
		}
		update.ServiceFeePercent = &fee
	}
	if cmd.IsSet("currency") {
		code := cmd.String("currency")
		update.CurrencyCode = &code
	}
	if cmd.IsSet("symbol") {
		symbol := cmd.String("symbol")
		update.CurrencySymbol = &symbol
	}
	if update.ServiceFeePercent == nil && update.CurrencyCode == nil && update.CurrencySymbol == nil {
		return update, errors.New("settings set: nothing to update")
	}
	return update, nil
}

func newSettingsService(reg *sqlstore.Registry) (services.SettingsService, error) {
	return services.NewSettingsService(services.SettingsServiceDeps{
		Settings: reg.Settings(),
		Taxes:    reg.Taxes(),
	})
}

func loadConfig(ctx context.Context, cmd *cli.Command, logger *zap.Logger) (config.Config, error) {
	var envOpts []config.Option
	if file := strings.TrimSpace(cmd.Root().String("env-file")); file != "" {
		envOpts = append(envOpts, config.WithEnvFile(file))
	}
	env, err := config.EnvironmentValues(envOpts...)
	if err != nil {
		return config.Config{}, err
	}

	fetcherOpts := []secrets.Option{secrets.WithLogger(logger.Named("secrets"))}
	if project := strings.TrimSpace(env["API_SECRETS_PROJECT_ID"]); project != "" {
		fetcherOpts = append(fetcherOpts, secrets.WithDefaultProject(project))
	}
	if fallback := strings.TrimSpace(env["API_SECRET_FALLBACK_FILE"]); fallback != "" {
		fetcherOpts = append(fetcherOpts, secrets.WithFallbackFile(fallback))
	}
	fetcher, err := secrets.NewFetcher(ctx, fetcherOpts...)
	if err != nil {
		return config.Config{}, fmt.Errorf("secret fetcher: %w", err)
	}
	defer func() {
		_ = fetcher.Close()
	}()

	opts := append(envOpts, config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)))
	return config.Load(ctx, opts...)
}

func withRegistry(ctx context.Context, cmd *cli.Command, logger *zap.Logger, fn func(context.Context, config.Config, *sqlstore.Registry) error) error {
	cfg, err := loadConfig(ctx, cmd, logger)
	if err != nil {
		return err
	}
	provider, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	reg, err := sqlstore.NewRegistry(provider)
	if err != nil {
		_ = provider.Close(ctx)
		return err
	}
	defer func() {
		if err := reg.Close(ctx); err != nil {
			logger.Warn("database close error", zap.Error(err))
		}
	}()
	return fn(ctx, cfg, reg)
}
