package di

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/upfront-market/api/internal/media"
	"github.com/upfront-market/api/internal/notify"
	"github.com/upfront-market/api/internal/payments"
	"github.com/upfront-market/api/internal/platform/config"
	"github.com/upfront-market/api/internal/platform/jobs"
	"github.com/upfront-market/api/internal/platform/observability"
	"github.com/upfront-market/api/internal/services"
)

// external holds the third-party clients the services are built over.
type external struct {
	gateway  *payments.Manager
	webhooks *payments.StripeProvider
	mailer   notify.Mailer
	renderer *notify.Renderer
	from     notify.Address
	events   *jobs.PubSubOrderEventPublisher
}

func (c *Container) buildExternal(ctx context.Context, cfg config.Config, o options) (external, error) {
	var ext external
	logEvent := observability.EventLogger(o.logger)

	gateway, stripeProvider, err := newPaymentGateway(cfg.PSP, logEvent)
	if err != nil {
		return external{}, err
	}
	ext.gateway = gateway
	ext.webhooks = stripeProvider

	mailer, err := newMailer(cfg.Mail, o.logger)
	if err != nil {
		return external{}, err
	}
	if mailer != nil {
		renderer, err := notify.NewRenderer("")
		if err != nil {
			return external{}, fmt.Errorf("build email renderer: %w", err)
		}
		ext.mailer = mailer
		ext.renderer = renderer
	}
	ext.from = notify.Address{Name: cfg.Mail.FromName, Email: cfg.Mail.FromAddress}

	if cfg.PubSub.ProjectID != "" && cfg.PubSub.OrderTopic != "" {
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return external{}, fmt.Errorf("build pubsub client: %w", err)
		}
		publisher, err := jobs.NewPubSubOrderEventPublisher(client.Topic(cfg.PubSub.OrderTopic))
		if err != nil {
			_ = client.Close()
			return external{}, fmt.Errorf("build order event publisher: %w", err)
		}
		ext.events = publisher
		c.closers = append(c.closers, func(context.Context) error {
			publisher.Close()
			return client.Close()
		})
	}

	chain, err := c.newMediaChain(ctx, cfg.Media, logEvent)
	if err != nil {
		return external{}, err
	}
	c.Media = chain
	return ext, nil
}

// newPaymentGateway registers every provider with credentials. Cash on delivery is always present.
func newPaymentGateway(cfg config.PSPConfig, logEvent payments.Logger) (*payments.Manager, *payments.StripeProvider, error) {
	providers := map[string]payments.Provider{
		payments.ProviderCOD: payments.NewCODProvider(),
	}
	var stripeProvider *payments.StripeProvider
	if cfg.StripeAPIKey != "" {
		provider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
			APIKey:        cfg.StripeAPIKey,
			WebhookSecret: cfg.StripeWebhookSecret,
			Logger:        logEvent,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("build stripe provider: %w", err)
		}
		providers[payments.ProviderStripe] = provider
		stripeProvider = provider
	}
	if cfg.PayPalClientID != "" && cfg.PayPalSecret != "" {
		provider, err := payments.NewPayPalProvider(payments.PayPalProviderConfig{
			ClientID:   cfg.PayPalClientID,
			Secret:     cfg.PayPalSecret,
			BaseURL:    cfg.PayPalBaseURL,
			HTTPClient: &http.Client{Timeout: cfg.VerifyTimeout},
			Logger:     logEvent,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("build paypal provider: %w", err)
		}
		providers[payments.ProviderPayPal] = provider
	}
	if cfg.MidtransServerKey != "" {
		provider, err := payments.NewMidtransProvider(payments.MidtransProviderConfig{
			ServerKey:  cfg.MidtransServerKey,
			Production: cfg.MidtransProduction,
			Logger:     logEvent,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("build midtrans provider: %w", err)
		}
		providers[payments.ProviderMidtrans] = provider
	}

	opts := []payments.ManagerOption{payments.WithVerifyTimeout(cfg.VerifyTimeout)}
	if stripeProvider == nil {
		opts = append(opts, payments.WithDefaultProvider(payments.ProviderCOD))
	}
	manager, err := payments.NewManager(providers, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("build payment manager: %w", err)
	}
	return manager, stripeProvider, nil
}

// newMailer prefers MailerSend and falls back to SMTP. It returns nil when neither is configured.
func newMailer(cfg config.MailConfig, logger *zap.Logger) (notify.Mailer, error) {
	var primary, secondary notify.Mailer
	if cfg.MailerSendAPIKey != "" {
		ms, err := notify.NewMailerSend(cfg.MailerSendAPIKey)
		if err != nil {
			return nil, fmt.Errorf("build mailersend client: %w", err)
		}
		primary = ms
	}
	if cfg.SMTPHost != "" {
		smtp, err := notify.NewSMTP(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
		})
		if err != nil {
			return nil, fmt.Errorf("build smtp client: %w", err)
		}
		secondary = smtp
	}
	switch {
	case primary == nil && secondary == nil:
		return nil, nil
	case primary == nil:
		return secondary, nil
	case secondary == nil:
		return primary, nil
	}
	return notify.Fallback{
		Primary:   primary,
		Secondary: secondary,
		OnPrimaryError: func(ctx context.Context, err error) {
			logger.Warn("mailersend delivery failed, retrying over smtp", zap.Error(err))
		},
	}, nil
}

// newMediaChain assembles the resolvers in lookup order: S3 primary (configured region, then the
// default region), S3 fallback bucket, GCS, CDN and local disk.
func (c *Container) newMediaChain(ctx context.Context, cfg config.MediaConfig, logEvent media.Logger) (*media.Chain, error) {
	var resolvers []media.Resolver
	addS3 := func(bucket string) error {
		if strings.TrimSpace(bucket) == "" {
			return nil
		}
		regions := []string{cfg.S3Region}
		if cfg.S3Region != "" {
			regions = append(regions, "")
		}
		for _, region := range regions {
			resolver, err := media.NewS3Resolver(ctx, media.S3Config{
				Bucket:    bucket,
				Region:    region,
				Endpoint:  cfg.S3Endpoint,
				AccessKey: cfg.S3AccessKey,
				SecretKey: cfg.S3SecretKey,
			})
			if err != nil {
				return fmt.Errorf("build s3 resolver: %w", err)
			}
			if len(resolvers) > 0 && resolvers[len(resolvers)-1].Name() == resolver.Name() {
				continue
			}
			resolvers = append(resolvers, resolver)
		}
		return nil
	}
	if err := addS3(cfg.S3Bucket); err != nil {
		return nil, err
	}
	if err := addS3(cfg.S3FallbackBucket); err != nil {
		return nil, err
	}

	if cfg.GCSBucket != "" {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("build gcs client: %w", err)
		}
		c.closers = append(c.closers, func(context.Context) error { return client.Close() })
		resolver, err := media.NewGCSResolver(client, cfg.GCSBucket)
		if err != nil {
			return nil, fmt.Errorf("build gcs resolver: %w", err)
		}
		resolvers = append(resolvers, resolver)
	}

	fetchClient := &http.Client{Timeout: cfg.FetchTimeout}
	if cfg.CDNCloudName != "" || cfg.CDNBaseURL != "" {
		resolver, err := media.NewCDNResolver(media.CDNConfig{
			CloudName:    cfg.CDNCloudName,
			BaseURL:      cfg.CDNBaseURL,
			VendorPrefix: cfg.CDNVendorPrefix,
			HTTPClient:   fetchClient,
		})
		if err != nil {
			return nil, fmt.Errorf("build cdn resolver: %w", err)
		}
		resolvers = append(resolvers, resolver)
	}

	if cfg.LocalRoot != "" {
		resolver, err := media.NewLocalResolver(cfg.LocalRoot)
		if err != nil {
			return nil, fmt.Errorf("build local media resolver: %w", err)
		}
		resolvers = append(resolvers, resolver)
	}

	return media.NewChain(resolvers,
		media.WithFetchTimeout(cfg.FetchTimeout),
		media.WithLogger(logEvent),
		media.WithRecorder(c.Metrics),
		media.WithPlaceholder(media.NewPlaceholder(cfg.PlaceholderURL, fetchClient)),
	), nil
}

// CDNURL returns the redirect target for media path p, or "" when no CDN is configured.
func (c *Container) CDNURL() func(string) string {
	if c == nil || c.Media == nil {
		return nil
	}
	for _, resolver := range c.Media.Resolvers() {
		if cdn, ok := resolver.(*media.CDNResolver); ok {
			return cdn.URL
		}
	}
	return nil
}

// integrations lists the optional clients for the readiness report. Card payments and email are
// required outside local; order events and extra media backends are optional.
func integrations(cfg config.Config, c *Container, infra external) []services.Integration {
	providers := infra.gateway.Providers()
	var backends []string
	if c.Media != nil {
		for _, resolver := range c.Media.Resolvers() {
			backends = append(backends, resolver.Name())
		}
	}
	var transports []string
	if cfg.Mail.MailerSendAPIKey != "" {
		transports = append(transports, "mailersend")
	}
	if cfg.Mail.SMTPHost != "" {
		transports = append(transports, "smtp")
	}
	return []services.Integration{
		{
			Name:     "payments",
			Enabled:  len(providers) > 1,
			Detail:   strings.Join(providers, ","),
			Required: true,
		},
		{
			Name:     "mail",
			Enabled:  infra.mailer != nil,
			Detail:   strings.Join(transports, ","),
			Required: true,
		},
		{
			Name:    "media",
			Enabled: len(backends) > 0,
			Detail:  strings.Join(backends, ","),
		},
		{
			Name:    "order_events",
			Enabled: infra.events != nil,
			Detail:  cfg.PubSub.OrderTopic,
		},
	}
}
