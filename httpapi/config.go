package httpapi

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	tenauth "github.com/arlox-io/tenauth"
)

// FileConfig is the YAML configuration of the tenauthd daemon.
type FileConfig struct {
	Server struct {
		Addr            string        `yaml:"addr"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	JWT struct {
		SigningMethod string        `yaml:"signing_method"`
		PrivateKey    string        `yaml:"private_key"` // base64
		PublicKey     string        `yaml:"public_key"`  // base64
		Issuer        string        `yaml:"issuer"`
		Audience      string        `yaml:"audience"`
		AccessTTL     time.Duration `yaml:"access_ttl"`
	} `yaml:"jwt"`

	Security struct {
		ProductionMode bool `yaml:"production_mode"`
	} `yaml:"security"`

	Cache struct {
		Enabled *bool `yaml:"enabled"`
	} `yaml:"cache"`

	Audit struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"audit"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"metrics"`

	PoliciesFile string `yaml:"policies_file"`

	Users   []SeedUser   `yaml:"users"`
	Clients []SeedClient `yaml:"clients"`
}

// SeedUser is one pre-provisioned user. PasswordHash is a PHC argon2id
// string; plaintext passwords never appear in configuration.
type SeedUser struct {
	UserID       string   `yaml:"user_id"`
	Identifier   string   `yaml:"identifier"`
	TenantID     string   `yaml:"tenant_id"`
	PasswordHash string   `yaml:"password_hash"`
	Authorities  []string `yaml:"authorities"`
	Scopes       []string `yaml:"scopes"`
}

// SeedClient is one pre-provisioned OAuth2 client.
type SeedClient struct {
	ClientID   string `yaml:"client_id"`
	SecretHash string `yaml:"secret_hash"`
}

// LoadConfig reads and validates a daemon configuration file.
func LoadConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis.addr is required")
	}
	if cfg.PoliciesFile == "" {
		return nil, fmt.Errorf("policies_file is required")
	}
	if len(cfg.Users) == 0 {
		return nil, fmt.Errorf("at least one user is required")
	}
	for i, u := range cfg.Users {
		if u.Identifier == "" || u.UserID == "" || u.PasswordHash == "" {
			return nil, fmt.Errorf("users[%d]: user_id, identifier and password_hash are required", i)
		}
	}
	for i, c := range cfg.Clients {
		if c.ClientID == "" || c.SecretHash == "" {
			return nil, fmt.Errorf("clients[%d]: client_id and secret_hash are required", i)
		}
	}

	return &cfg, nil
}

// EngineConfig translates the file settings onto a tenauth.Config.
func (c *FileConfig) EngineConfig() (tenauth.Config, error) {
	cfg := tenauth.DefaultConfig()

	if c.JWT.SigningMethod != "" {
		cfg.JWT.SigningMethod = c.JWT.SigningMethod
	}
	if c.JWT.PrivateKey != "" {
		key, err := base64.StdEncoding.DecodeString(c.JWT.PrivateKey)
		if err != nil {
			return tenauth.Config{}, fmt.Errorf("decode jwt.private_key: %w", err)
		}
		cfg.JWT.PrivateKey = key
	}
	if c.JWT.PublicKey != "" {
		key, err := base64.StdEncoding.DecodeString(c.JWT.PublicKey)
		if err != nil {
			return tenauth.Config{}, fmt.Errorf("decode jwt.public_key: %w", err)
		}
		cfg.JWT.PublicKey = key
	}
	cfg.JWT.Issuer = c.JWT.Issuer
	cfg.JWT.Audience = c.JWT.Audience
	if c.JWT.AccessTTL > 0 {
		cfg.JWT.AccessTTL = c.JWT.AccessTTL
	}

	cfg.Security.ProductionMode = c.Security.ProductionMode
	if c.Cache.Enabled != nil {
		cfg.Cache.Enabled = *c.Cache.Enabled
	}
	cfg.Audit.Enabled = c.Audit.Enabled
	cfg.Metrics.Enabled = c.Metrics.Enabled

	return cfg, nil
}

// UserProvider builds an in-memory user provider from the seeded users.
func (c *FileConfig) UserProvider() tenauth.UserProvider {
	users := make(seedUserProvider, len(c.Users))
	for _, u := range c.Users {
		users[u.Identifier] = tenauth.UserRecord{
			UserID:       u.UserID,
			Identifier:   u.Identifier,
			TenantID:     u.TenantID,
			PasswordHash: u.PasswordHash,
			Authorities:  append([]string(nil), u.Authorities...),
			Scopes:       append([]string(nil), u.Scopes...),
		}
	}
	return users
}

// ClientProvider builds an in-memory client provider from the seeded
// clients. Returns nil when no clients are configured, which disables
// the authorization-code grant.
func (c *FileConfig) ClientProvider() tenauth.ClientProvider {
	if len(c.Clients) == 0 {
		return nil
	}
	clients := make(seedClientProvider, len(c.Clients))
	for _, cl := range c.Clients {
		clients[cl.ClientID] = tenauth.ClientRecord{
			ClientID:   cl.ClientID,
			SecretHash: cl.SecretHash,
		}
	}
	return clients
}

type seedUserProvider map[string]tenauth.UserRecord

func (p seedUserProvider) GetUserByIdentifier(_ context.Context, identifier string) (tenauth.UserRecord, error) {
	user, ok := p[identifier]
	if !ok {
		return tenauth.UserRecord{}, fmt.Errorf("user %q not found", identifier)
	}
	return user, nil
}

type seedClientProvider map[string]tenauth.ClientRecord

func (p seedClientProvider) GetClientByID(_ context.Context, clientID string) (tenauth.ClientRecord, error) {
	client, ok := p[clientID]
	if !ok {
		return tenauth.ClientRecord{}, fmt.Errorf("client %q not found", clientID)
	}
	return client, nil
}
