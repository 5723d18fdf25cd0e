package tenauth

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/arlox-io/tenauth/cache"
	"github.com/arlox-io/tenauth/internal/rate"
	"github.com/arlox-io/tenauth/jwt"
	"github.com/arlox-io/tenauth/password"
	"github.com/arlox-io/tenauth/policy"
)

// Builder assembles an Engine. All wiring and configuration validation
// happens in Build; a Builder is single-use and not safe for concurrent
// mutation.
type Builder struct {
	config Config
	redis  *redis.Client

	policies *policy.Table

	userProvider   UserProvider
	clientProvider ClientProvider
	auditSink      AuditSink

	built bool
}

// New returns a Builder seeded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithPolicies sets the initial route policy table. The Engine fails
// closed: a request whose route has no covering rule is denied, so an
// empty table is rejected at Build.
func (b *Builder) WithPolicies(table *policy.Table) *Builder {
	b.policies = table
	return b
}

func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

func (b *Builder) WithClientProvider(cp ClientProvider) *Builder {
	b.clientProvider = cp
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the Engine. Claim-mapping
// mistakes (including configuring "scope" as the authorities claim) are
// rejected here, before a single token is issued or checked.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.policies == nil || b.policies.Len() == 0 {
		return nil, errors.New("policy table required")
	}

	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}

	converter, err := NewConverter(cfg.Claims)
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:    cfg,
		converter: converter,
	}
	engine.policies.Store(b.policies)

	engine.userProvider = b.userProvider
	engine.clientProvider = b.clientProvider
	engine.grantStore = newGrantStore(b.redis, cfg.Grant.RedisPrefix)
	engine.rateLimiter = rate.New(b.redis, rate.Config{
		EnableIPThrottle:         cfg.Security.EnableIPThrottle,
		EnableIdentifierThrottle: cfg.Security.EnableIdentifierThrottle,
		MaxGrantAttempts:         cfg.Security.MaxGrantAttempts,
		GrantCooldown:            cfg.Security.GrantCooldown,
	})
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	if cfg.Cache.Enabled {
		engine.cache = cache.New(b.redis, cache.Config{
			Prefix:         cfg.Cache.RedisPrefix,
			SweepInterval:  cfg.Cache.SweepInterval,
			SweepBatchSize: cfg.Cache.SweepBatchSize,
		})
	}

	ph, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	engine.passwordHash = ph

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
		VerifyKeys:    cfg.JWT.VerifyKeys,
	})
	if err != nil {
		return nil, err
	}
	engine.jwtManager = jm

	b.built = true

	return engine, nil
}
