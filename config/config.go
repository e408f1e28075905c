// Package config loads verifier settings from YAML, an optional dotenv file
// and TLSN_* environment variables, in that order of precedence (lowest first).
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/anchorageoss/tlsn-verifier/attestation"
	"github.com/anchorageoss/tlsn-verifier/crypto"
	"github.com/anchorageoss/tlsn-verifier/keys"
	"github.com/anchorageoss/tlsn-verifier/logging"
	"github.com/anchorageoss/tlsn-verifier/transcript"
	"github.com/anchorageoss/tlsn-verifier/verify"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "TLSN_"

// Config holds the full verifier configuration
type Config struct {
	Crypto      CryptoConfig      `yaml:"crypto"`
	Notary      NotaryConfig      `yaml:"notary"`
	Policy      PolicyConfig      `yaml:"policy"`
	Attestation AttestationConfig `yaml:"attestation"`
	Log         logging.Config    `yaml:"log"`
	Server      ServerConfig      `yaml:"server"`
}

// CryptoConfig selects the signature scheme and commitment hash
type CryptoConfig struct {
	Scheme string `yaml:"scheme"`
	Hash   string `yaml:"hash"`
}

// NotaryConfig locates the notary key and the trusted set
type NotaryConfig struct {
	Key     string   `yaml:"key"`      // hex
	KeyFile string   `yaml:"key_file"` // hex or PEM
	KeyName string   `yaml:"key_name"` // ~/.config/tlsn/notaries/<name>.pub
	Trusted []string `yaml:"trusted"`
}

// PolicyConfig holds acceptance rules
type PolicyConfig struct {
	RequireSessionTime   bool `yaml:"require_session_time"`
	MaxPresentationBytes int  `yaml:"max_presentation_bytes"`
	MaxTranscriptBytes   int  `yaml:"max_transcript_bytes"`
}

// AttestationConfig configures Nitro attestation checks of the notary
type AttestationConfig struct {
	Enabled            bool   `yaml:"enabled"`
	Require            bool   `yaml:"require"`
	SkipTimestampCheck bool   `yaml:"skip_timestamp_check"`
	PCRs               string `yaml:"pcrs"` // "0:hex,1:hex"
}

// ServerConfig configures the HTTP verification endpoint
type ServerConfig struct {
	Listen         string        `yaml:"listen"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// DefaultConfig returns sane defaults
func DefaultConfig() *Config {
	return &Config{
		Crypto: CryptoConfig{
			Scheme: string(crypto.SchemeP256),
			Hash:   string(crypto.HashSHA256),
		},
		Policy: PolicyConfig{
			MaxPresentationBytes: 4 << 20,
			MaxTranscriptBytes:   transcript.DefaultMaxLength,
		},
		Log: logging.Config{Level: "info"},
		Server: ServerConfig{
			Listen:         ":8080",
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   30 * time.Second,
			RequestTimeout: 15 * time.Second,
		},
	}
}

// Load builds a config from defaults, the YAML file at path and the
// environment. Either path or envFile may be empty.
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from TLSN_* environment variables
func (c *Config) ApplyEnv() error {
	setString := func(name string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			*dst = v
		}
	}
	setBool := func(name string, dst *bool) error {
		v, ok := os.LookupEnv(EnvPrefix + name)
		if !ok {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = b
		return nil
	}

	setString("SCHEME", &c.Crypto.Scheme)
	setString("HASH", &c.Crypto.Hash)
	setString("NOTARY_KEY", &c.Notary.Key)
	setString("NOTARY_KEY_FILE", &c.Notary.KeyFile)
	setString("NOTARY_KEY_NAME", &c.Notary.KeyName)
	setString("ATTESTATION_PCRS", &c.Attestation.PCRs)
	setString("LOG_LEVEL", &c.Log.Level)
	setString("LISTEN", &c.Server.Listen)

	if v, ok := os.LookupEnv(EnvPrefix + "TRUSTED_NOTARIES"); ok {
		c.Notary.Trusted = nil
		for _, k := range strings.Split(v, ",") {
			if k = strings.TrimSpace(k); k != "" {
				c.Notary.Trusted = append(c.Notary.Trusted, k)
			}
		}
	}
	if v, ok := os.LookupEnv(EnvPrefix + "MAX_PRESENTATION_BYTES"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sMAX_PRESENTATION_BYTES: %w", EnvPrefix, err)
		}
		c.Policy.MaxPresentationBytes = n
	}
	if v, ok := os.LookupEnv(EnvPrefix + "MAX_TRANSCRIPT_BYTES"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sMAX_TRANSCRIPT_BYTES: %w", EnvPrefix, err)
		}
		c.Policy.MaxTranscriptBytes = n
	}

	return errors.Join(
		setBool("REQUIRE_SESSION_TIME", &c.Policy.RequireSessionTime),
		setBool("ATTESTATION_ENABLED", &c.Attestation.Enabled),
		setBool("ATTESTATION_REQUIRE", &c.Attestation.Require),
		setBool("LOG_DEVELOPMENT", &c.Log.Development),
	)
}

// Validate checks that values are sane
func (c *Config) Validate() error {
	if _, err := crypto.NewSuite(crypto.Scheme(c.Crypto.Scheme), crypto.HashAlgorithm(c.Crypto.Hash)); err != nil {
		return err
	}
	if c.Policy.MaxPresentationBytes < 0 {
		return fmt.Errorf("max_presentation_bytes must be >= 0")
	}
	if c.Policy.MaxTranscriptBytes < 0 {
		return fmt.Errorf("max_transcript_bytes must be >= 0")
	}
	if c.Notary.Key != "" && c.Notary.KeyFile != "" {
		return fmt.Errorf("notary.key and notary.key_file are mutually exclusive")
	}
	for i, k := range c.Notary.Trusted {
		if _, err := keys.ParseHexKey(k); err != nil {
			return fmt.Errorf("notary.trusted[%d]: %w", i, err)
		}
	}
	if c.Attestation.Require && !c.Attestation.Enabled {
		return fmt.Errorf("attestation.require needs attestation.enabled")
	}
	if _, err := attestation.ParsePCRs(c.Attestation.PCRs); err != nil {
		return fmt.Errorf("attestation.pcrs: %w", err)
	}
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen is required")
	}
	return nil
}

// Suite returns the configured crypto provider
func (c *Config) Suite() (*crypto.Suite, error) {
	return crypto.NewSuite(crypto.Scheme(c.Crypto.Scheme), crypto.HashAlgorithm(c.Crypto.Hash))
}

// KeyProvider returns the configured notary key source, or nil when the
// presentation must carry its own key
func (c *Config) KeyProvider() (keys.Provider, error) {
	switch {
	case c.Notary.Key != "":
		key, err := keys.ParseHexKey(c.Notary.Key)
		if err != nil {
			return nil, err
		}
		return &keys.StaticKeyProvider{Key: key}, nil
	case c.Notary.KeyFile != "" || c.Notary.KeyName != "":
		return &keys.FileKeyProvider{Path: c.Notary.KeyFile, KeyName: c.Notary.KeyName}, nil
	default:
		return nil, nil
	}
}

// Options resolves keys and attestation rules into verification options
func (c *Config) Options(ctx context.Context, logger *zap.Logger) (verify.Options, error) {
	opts := verify.Options{
		RequireSessionTime:   c.Policy.RequireSessionTime,
		MaxPresentationBytes: c.Policy.MaxPresentationBytes,
		MaxTranscriptBytes:   c.Policy.MaxTranscriptBytes,
		RequireAttestation:   c.Attestation.Require,
		Logger:               logger,
	}

	provider, err := c.KeyProvider()
	if err != nil {
		return opts, err
	}
	if provider != nil {
		key, err := provider.NotaryKey(ctx)
		if err != nil {
			return opts, fmt.Errorf("failed to load notary key: %w", err)
		}
		if err := keys.ValidateKey(crypto.Scheme(strings.ToLower(c.Crypto.Scheme)), key); err != nil {
			return opts, fmt.Errorf("invalid notary key: %w", err)
		}
		opts.NotaryKey = key
	}

	for _, k := range c.Notary.Trusted {
		key, err := keys.ParseHexKey(k)
		if err != nil {
			return opts, err
		}
		opts.TrustedNotaries = append(opts.TrustedNotaries, key)
	}

	if c.Attestation.Enabled {
		rules, err := attestation.ParsePCRs(c.Attestation.PCRs)
		if err != nil {
			return opts, err
		}
		opts.Attestation = attestation.NewNitroChecker(c.Attestation.SkipTimestampCheck, rules)
	}
	return opts, nil
}

// NewService builds a verification service from the configuration
func (c *Config) NewService(ctx context.Context, logger *zap.Logger) (*verify.Service, error) {
	suite, err := c.Suite()
	if err != nil {
		return nil, err
	}
	opts, err := c.Options(ctx, logger)
	if err != nil {
		return nil, err
	}
	return verify.NewService(suite, opts), nil
}
