package tenauth

import (
	"errors"
	"time"
)

// Config is the complete engine configuration. Zero values are filled
// from defaults by the Builder; Validate runs once at Build and the
// resulting config is treated as immutable afterwards.
type Config struct {
	JWT      JWTConfig
	Claims   ClaimsMapping
	Cache    CacheConfig
	Password PasswordConfig
	Grant    GrantConfig
	Security SecurityConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig carries signing-key material and token verification options.
type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte
}

/*
====================================
CACHE CONFIG
====================================
*/

// CacheConfig controls the Redis-backed token verification cache. The
// cache is a pure performance layer: disabling it changes latency, never
// decisions.
type CacheConfig struct {
	Enabled        bool
	RedisPrefix    string
	SweepInterval  time.Duration // 0 disables the background sweeper
	SweepBatchSize int
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds argon2id parameters for credential verification.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

/*
====================================
GRANT CONFIG
====================================
*/

// GrantConfig controls authorization-code issuance and exchange.
type GrantConfig struct {
	CodeTTL     time.Duration
	CodeLength  int // random bytes before encoding
	RedisPrefix string
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds token-endpoint throttling and hardening knobs.
type SecurityConfig struct {
	ProductionMode           bool
	EnableIPThrottle         bool
	EnableIdentifierThrottle bool
	MaxGrantAttempts         int
	GrantCooldown            time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters and latency histograms.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the baseline configuration the Builder starts
// from. Callers override key material and whatever else differs, then
// pass the result to Builder.WithConfig.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     5 * time.Minute,
			SigningMethod: "ed25519",
			Leeway:        30 * time.Second,
		},
		Claims: DefaultClaimsMapping(),
		Cache: CacheConfig{
			Enabled:        true,
			RedisPrefix:    "ta",
			SweepInterval:  5 * time.Minute,
			SweepBatchSize: 256,
		},
		Password: PasswordConfig{
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Grant: GrantConfig{
			CodeTTL:     2 * time.Minute,
			CodeLength:  32,
			RedisPrefix: "ta",
		},
		Security: SecurityConfig{
			ProductionMode:           false,
			EnableIPThrottle:         true,
			EnableIdentifierThrottle: true,
			MaxGrantAttempts:         10,
			GrantCooldown:            time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	if len(cfg.JWT.VerifyKeys) > 0 {
		out.JWT.VerifyKeys = make(map[string][]byte, len(cfg.JWT.VerifyKeys))
		for kid, key := range cfg.JWT.VerifyKeys {
			out.JWT.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks cross-field consistency. Key material is validated in
// depth by the jwt manager; this catches configuration mistakes early.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.SigningMethod != "ed25519" && c.JWT.SigningMethod != "hs256" {
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.SigningMethod == "hs256" && len(c.JWT.PrivateKey) == 0 {
		return errors.New("hs256 requires PrivateKey")
	}
	if c.JWT.SigningMethod == "ed25519" && len(c.JWT.PrivateKey) == 0 && len(c.JWT.PublicKey) == 0 && len(c.JWT.VerifyKeys) == 0 {
		return errors.New("ed25519 requires key material")
	}
	if c.JWT.Leeway < 0 {
		return errors.New("JWT Leeway must be >= 0")
	}

	// Claims
	if err := c.Claims.Validate(); err != nil {
		return err
	}

	// Cache
	if c.Cache.Enabled {
		if c.Cache.RedisPrefix == "" {
			return errors.New("Cache RedisPrefix is required when cache is enabled")
		}
		if c.Cache.SweepInterval < 0 {
			return errors.New("Cache SweepInterval must be >= 0")
		}
		if c.Cache.SweepInterval > 0 && c.Cache.SweepBatchSize <= 0 {
			return errors.New("Cache SweepBatchSize must be > 0 when sweeping is enabled")
		}
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}

	// Grant
	if c.Grant.CodeTTL <= 0 {
		return errors.New("Grant CodeTTL must be > 0")
	}
	if c.Grant.CodeLength < 16 || c.Grant.CodeLength > 64 {
		return errors.New("Grant CodeLength must be between 16 and 64 bytes")
	}
	if c.Grant.RedisPrefix == "" {
		return errors.New("Grant RedisPrefix is required")
	}

	// Security
	if c.Security.EnableIPThrottle || c.Security.EnableIdentifierThrottle {
		if c.Security.MaxGrantAttempts <= 0 {
			return errors.New("MaxGrantAttempts must be > 0 when a grant throttle is enabled")
		}
		if c.Security.GrantCooldown <= 0 {
			return errors.New("GrantCooldown must be > 0 when a grant throttle is enabled")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	if c.Security.ProductionMode {
		if c.JWT.AccessTTL > 15*time.Minute {
			return errors.New("ProductionMode requires JWT AccessTTL <= 15m")
		}
		if c.JWT.SigningMethod == "hs256" && len(c.JWT.PrivateKey) < 32 {
			return errors.New("ProductionMode requires hs256 key length >= 256 bits")
		}
		if c.Password.Memory < 64*1024 {
			return errors.New("ProductionMode requires Password Memory >= 65536 KB")
		}
		if c.Password.Time < 2 {
			return errors.New("ProductionMode requires Password Time >= 2")
		}
		if c.Password.KeyLength < 32 {
			return errors.New("ProductionMode requires Password KeyLength >= 32")
		}
		if !c.Security.EnableIPThrottle || !c.Security.EnableIdentifierThrottle {
			return errors.New("ProductionMode requires grant throttles")
		}
		if c.Grant.CodeTTL > 10*time.Minute {
			return errors.New("ProductionMode requires Grant CodeTTL <= 10m")
		}
	}

	return nil
}
