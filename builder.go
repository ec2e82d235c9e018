package cookiesession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fairmanager/fm-cookie-session/keyring"
	"github.com/fairmanager/fm-cookie-session/transport"
)

// Builder assembles an [Engine]. Configure it during initialization and
// call Build once.
type Builder struct {
	config Config

	transport transport.Transport
	keySource keyring.Source
	logger    *slog.Logger
	auditSink AuditSink

	built bool
}

// New returns a builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration with a copy of cfg.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithTransport installs a custom cookie transport instead of the one
// selected by Signing.Format.
func (b *Builder) WithTransport(t transport.Transport) *Builder {
	b.transport = t
	return b
}

// WithKeySource loads the signing key ring from src at Build time. Keys
// returned by src replace Signing.Keys; keyring.ErrNoKeys falls back to
// them.
func (b *Builder) WithKeySource(src keyring.Source) *Builder {
	b.keySource = src
	return b
}

// WithLogger sets the engine logger. The default is slog.Default().
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the destination for audit events. It only takes
// effect when Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles Metrics.Enabled.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the commit latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, loads keys and returns the engine.
// On error nothing is started and the builder may not be reused.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}
	b.built = true

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.keySource != nil {
		keys, err := b.loadKeys(cfg.Signing)
		switch {
		case err == nil:
			cfg.Signing.Keys = cloneKeys(keys)
		case errors.Is(err, keyring.ErrNoKeys):
		default:
			return nil, fmt.Errorf("%w: %w", ErrKeySourceFailed, err)
		}
	}
	if cfg.Signing.Signed && len(cfg.Signing.Keys) == 0 {
		return nil, ErrMissingSigningKeys
	}

	tr := b.transport
	if tr == nil {
		var err error
		tr, err = defaultTransport(cfg.Signing)
		if err != nil {
			return nil, err
		}
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	engine := &Engine{
		config:    cfg,
		opts:      cfg.options(),
		transport: tr,
		logger:    logger,
	}
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	return engine, nil
}

func (b *Builder) loadKeys(cfg SigningConfig) ([][]byte, error) {
	ctx := context.Background()
	if cfg.KeyLoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.KeyLoadTimeout)
		defer cancel()
	}
	return b.keySource.Keys(ctx)
}

func defaultTransport(cfg SigningConfig) (transport.Transport, error) {
	switch cfg.Format {
	case FormatJWT:
		return transport.NewJWT(transport.JWTConfig{
			Keys:   cfg.Keys,
			Issuer: cfg.Issuer,
			Leeway: cfg.Leeway,
		})
	default:
		if !cfg.Signed {
			return transport.NewCookies(nil), nil
		}
		return transport.NewCookies(transport.NewHMACSigner(cfg.Keys...)), nil
	}
}
