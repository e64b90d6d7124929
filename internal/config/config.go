package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type AppCfg struct{ Env, Port, BaseURL, LogLevel string }
type DBCfg struct{ DSN string }

type RedisCfg struct {
	Addr      string
	Password  string
	DB        int
	DedupeTTL time.Duration
}

type KafkaCfg struct {
	Brokers []string
	Topic   string
}

type SecurityCfg struct {
	APIToken         string // guards the outbound payment API
	StrictSignatures bool   // reject webhooks for adapters without a configured secret
}

type WebhookCfg struct {
	Workers      int
	QueueSize    int
	MaxBodyBytes int64
}

type OutboundCfg struct {
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

type RoutingCfg struct{ Strategy string }

type ReconcileCfg struct {
	Enabled bool
	Every   time.Duration
	Overlap time.Duration
}

// RouteCfg is the per-provider routing entry.
type RouteCfg struct {
	Enabled     bool
	Environment string
	Weight      int
	Priority    int
}

type StripeCfg struct {
	SecretKey     string
	WebhookSecret string
	BaseURL       string
	Tolerance     time.Duration
	Route         RouteCfg
}

type PaystackCfg struct {
	SecretKey string // also signs webhooks
	BaseURL   string
	Route     RouteCfg
}

type FlutterwaveCfg struct {
	SecretKey  string
	SecretHash string // verif-hash secret
	BaseURL    string
	Route      RouteCfg
}

type CinetPayCfg struct {
	APIKey    string
	SiteID    string
	SecretKey string
	BaseURL   string
	Tolerance time.Duration // zero disables the freshness check
	Route     RouteCfg
}

type SandboxCfg struct {
	MaxLatency time.Duration
	Route      RouteCfg
}

type ProvidersCfg struct {
	Stripe      StripeCfg
	Paystack    PaystackCfg
	Flutterwave FlutterwaveCfg
	CinetPay    CinetPayCfg
	Sandbox     SandboxCfg
}

type Cfg struct {
	App       AppCfg
	DB        DBCfg
	Redis     RedisCfg
	Kafka     KafkaCfg
	Sec       SecurityCfg
	Webhook   WebhookCfg
	Outbound  OutboundCfg
	Routing   RoutingCfg
	Reconcile ReconcileCfg
	Providers ProvidersCfg
}

func (c Cfg) IsProduction() bool { return c.App.Env == "production" }

// Load reads .env and the process environment, exiting on invalid settings.
func Load() Cfg {
	// .env is optional; real environment variables win over it
	_ = godotenv.Load(".env")

	cfg, err := Parse()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	return cfg
}

// Parse builds a Cfg from environment variables.
func Parse() (Cfg, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	if tz := v.GetString("TZ"); tz != "" {
		os.Setenv("TZ", tz)
	}

	env := strings.ToLower(v.GetString("APP_ENV"))
	v.SetDefault("WEBHOOK_STRICT_SIGNATURES", env == "production")

	cfg := Cfg{
		App: AppCfg{
			Env:      env,
			Port:     v.GetString("APP_PORT"),
			BaseURL:  strings.TrimRight(v.GetString("APP_BASE_URL"), "/"),
			LogLevel: v.GetString("LOG_LEVEL"),
		},
		DB: DBCfg{DSN: v.GetString("DB_DSN")},
		Redis: RedisCfg{
			Addr:      v.GetString("REDIS_ADDR"),
			Password:  v.GetString("REDIS_PASSWORD"),
			DB:        v.GetInt("REDIS_DB"),
			DedupeTTL: v.GetDuration("DEDUPE_TTL"),
		},
		Kafka: KafkaCfg{
			Brokers: splitList(v.GetString("KAFKA_BROKERS")),
			Topic:   v.GetString("KAFKA_TOPIC"),
		},
		Sec: SecurityCfg{
			APIToken:         strings.TrimSpace(v.GetString("API_TOKEN")),
			StrictSignatures: v.GetBool("WEBHOOK_STRICT_SIGNATURES"),
		},
		Webhook: WebhookCfg{
			Workers:      v.GetInt("WEBHOOK_WORKERS"),
			QueueSize:    v.GetInt("WEBHOOK_QUEUE_SIZE"),
			MaxBodyBytes: v.GetInt64("WEBHOOK_MAX_BODY_BYTES"),
		},
		Outbound: OutboundCfg{
			Timeout:        v.GetDuration("OUTBOUND_TIMEOUT"),
			MaxRetries:     v.GetInt("OUTBOUND_MAX_RETRIES"),
			InitialBackoff: v.GetDuration("OUTBOUND_INITIAL_BACKOFF"),
			MaxBackoff:     v.GetDuration("OUTBOUND_MAX_BACKOFF"),
		},
		Routing: RoutingCfg{Strategy: strings.ToLower(v.GetString("ROUTING_STRATEGY"))},
		Reconcile: ReconcileCfg{
			Enabled: v.GetBool("RECONCILE_ENABLED"),
			Every:   v.GetDuration("RECONCILE_EVERY"),
			Overlap: v.GetDuration("RECONCILE_OVERLAP"),
		},
	}

	p := &cfg.Providers
	p.Stripe = StripeCfg{
		SecretKey:     v.GetString("STRIPE_SECRET_KEY"),
		WebhookSecret: v.GetString("STRIPE_WEBHOOK_SECRET"),
		BaseURL:       v.GetString("STRIPE_BASE_URL"),
		Tolerance:     v.GetDuration("STRIPE_WEBHOOK_TOLERANCE"),
	}
	p.Stripe.Route = route(v, "STRIPE", env, p.Stripe.SecretKey != "")

	p.Paystack = PaystackCfg{
		SecretKey: v.GetString("PAYSTACK_SECRET_KEY"),
		BaseURL:   v.GetString("PAYSTACK_BASE_URL"),
	}
	p.Paystack.Route = route(v, "PAYSTACK", env, p.Paystack.SecretKey != "")

	p.Flutterwave = FlutterwaveCfg{
		SecretKey:  v.GetString("FLUTTERWAVE_SECRET_KEY"),
		SecretHash: v.GetString("FLUTTERWAVE_SECRET_HASH"),
		BaseURL:    v.GetString("FLUTTERWAVE_BASE_URL"),
	}
	p.Flutterwave.Route = route(v, "FLUTTERWAVE", env, p.Flutterwave.SecretKey != "")

	p.CinetPay = CinetPayCfg{
		APIKey:    v.GetString("CINETPAY_API_KEY"),
		SiteID:    v.GetString("CINETPAY_SITE_ID"),
		SecretKey: v.GetString("CINETPAY_SECRET_KEY"),
		BaseURL:   v.GetString("CINETPAY_BASE_URL"),
		Tolerance: v.GetDuration("CINETPAY_WEBHOOK_TOLERANCE"),
	}
	p.CinetPay.Route = route(v, "CINETPAY", env, p.CinetPay.APIKey != "" && p.CinetPay.SiteID != "")

	p.Sandbox = SandboxCfg{MaxLatency: v.GetDuration("SANDBOX_MAX_LATENCY")}
	p.Sandbox.Route = route(v, "SANDBOX", env, env != "production")

	return cfg, cfg.Validate()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "sandbox")
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("APP_BASE_URL", "http://localhost:8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("TZ", "UTC")
	v.SetDefault("DEDUPE_TTL", "720h")
	v.SetDefault("KAFKA_TOPIC", "payment-events")
	v.SetDefault("WEBHOOK_WORKERS", 4)
	v.SetDefault("WEBHOOK_QUEUE_SIZE", 1024)
	v.SetDefault("WEBHOOK_MAX_BODY_BYTES", 1<<20)
	v.SetDefault("OUTBOUND_TIMEOUT", "15s")
	v.SetDefault("OUTBOUND_MAX_RETRIES", 3)
	v.SetDefault("OUTBOUND_INITIAL_BACKOFF", "200ms")
	v.SetDefault("OUTBOUND_MAX_BACKOFF", "2s")
	v.SetDefault("ROUTING_STRATEGY", "weighted")
	v.SetDefault("RECONCILE_ENABLED", true)
	v.SetDefault("RECONCILE_EVERY", "5m")
	v.SetDefault("RECONCILE_OVERLAP", "10m")
	v.SetDefault("STRIPE_WEBHOOK_TOLERANCE", "5m")
	v.SetDefault("CINETPAY_WEBHOOK_TOLERANCE", "0s")
	v.SetDefault("SANDBOX_MAX_LATENCY", "250ms")
}

func route(v *viper.Viper, prefix, env string, enabledByDefault bool) RouteCfg {
	v.SetDefault(prefix+"_ENABLED", enabledByDefault)
	v.SetDefault(prefix+"_ENVIRONMENT", env)
	v.SetDefault(prefix+"_WEIGHT", 1)
	return RouteCfg{
		Enabled:     v.GetBool(prefix + "_ENABLED"),
		Environment: strings.ToLower(v.GetString(prefix + "_ENVIRONMENT")),
		Weight:      v.GetInt(prefix + "_WEIGHT"),
		Priority:    v.GetInt(prefix + "_PRIORITY"),
	}
}

// Validate fails fast on settings that would make the service misbehave.
func (c Cfg) Validate() error {
	var errs []error
	if c.App.Port == "" {
		errs = append(errs, errors.New("APP_PORT is required"))
	}
	if !strings.HasPrefix(c.App.BaseURL, "http://") && !strings.HasPrefix(c.App.BaseURL, "https://") {
		errs = append(errs, fmt.Errorf("APP_BASE_URL must be an absolute http(s) URL, got %q", c.App.BaseURL))
	}
	if _, err := zerolog.ParseLevel(c.App.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	if c.Routing.Strategy != "weighted" && c.Routing.Strategy != "priority" {
		errs = append(errs, fmt.Errorf("ROUTING_STRATEGY must be weighted or priority, got %q", c.Routing.Strategy))
	}
	if c.Outbound.MaxRetries < 0 || c.Outbound.Timeout <= 0 {
		errs = append(errs, errors.New("OUTBOUND_TIMEOUT must be positive and OUTBOUND_MAX_RETRIES non-negative"))
	}
	if c.Webhook.Workers <= 0 || c.Webhook.QueueSize <= 0 || c.Webhook.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("WEBHOOK_WORKERS, WEBHOOK_QUEUE_SIZE and WEBHOOK_MAX_BODY_BYTES must be positive"))
	}
	if c.Reconcile.Enabled && c.Reconcile.Every <= 0 {
		errs = append(errs, errors.New("RECONCILE_EVERY must be positive"))
	}
	for name, r := range map[string]RouteCfg{
		"STRIPE":      c.Providers.Stripe.Route,
		"PAYSTACK":    c.Providers.Paystack.Route,
		"FLUTTERWAVE": c.Providers.Flutterwave.Route,
		"CINETPAY":    c.Providers.CinetPay.Route,
		"SANDBOX":     c.Providers.Sandbox.Route,
	} {
		if r.Weight < 0 {
			errs = append(errs, fmt.Errorf("%s_WEIGHT must not be negative", name))
		}
	}
	if c.IsProduction() && c.Sec.APIToken == "" {
		errs = append(errs, errors.New("API_TOKEN is required in production"))
	}
	return errors.Join(errs...)
}

// SetupLogging configures the global zerolog logger.
func SetupLogging(c AppCfg) {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if c.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
