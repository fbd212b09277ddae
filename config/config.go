package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"github.com/slighter12/go-lib/database/postgres"
)

const (
	defaultPath               = "."
	defaultMaxRequestBodySize = "100KB"
	defaultAccessTokenTTL     = time.Hour
	defaultPasswordMinLength  = 6
	defaultPasswordMaxLength  = 128
	defaultMongoCollection    = "users"
	defaultMongoTimeout       = 10 * time.Second

	// scrypt work factors; 128*r*(N+p) bytes of memory per derivation.
	defaultScryptN          = 1 << 14
	defaultScryptR          = 8
	defaultScryptP          = 1
	defaultScryptKeyLength  = 64
	defaultScryptSaltLength = 16
	minScryptSaltLength     = 16

	// MaxScryptMemory is the memory ceiling for a single derivation.
	MaxScryptMemory = 64 << 20
)

// Storage drivers.
const (
	StorageMongo    = "mongo"
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Pub/Sub providers.
const (
	PubSubProviderLocal  = "local"
	PubSubProviderGoogle = "google"
)

type Config struct {
	Env struct {
		Env         string `json:"env" yaml:"env"`
		ServiceName string `json:"serviceName" yaml:"serviceName"`
		Debug       bool   `json:"debug" yaml:"debug"`
		Log         Log    `json:"log" yaml:"log"`
	} `json:"env" yaml:"env"`

	HTTP struct {
		Port               int    `json:"port" yaml:"port"`
		MaxRequestBodySize string `json:"maxRequestBodySize" yaml:"maxRequestBodySize"`
		Timeouts           struct {
			ReadTimeout       time.Duration `json:"readTimeout" yaml:"readTimeout"`
			ReadHeaderTimeout time.Duration `json:"readHeaderTimeout" yaml:"readHeaderTimeout"`
			WriteTimeout      time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
			IdleTimeout       time.Duration `json:"idleTimeout" yaml:"idleTimeout"`
		} `json:"timeouts" yaml:"timeouts"`
	} `json:"http" yaml:"http"`

	Storage StorageConfig `json:"storage" yaml:"storage"`

	Mongo *MongoConfig `json:"mongo" yaml:"mongo"`

	Postgres *postgres.DBConn `json:"postgres" yaml:"postgres" mapstructure:"postgres"`

	SecretKey struct {
		Access string `json:"access" yaml:"access"`
	} `json:"secretKey" yaml:"secretKey"`

	Auth *AuthConfig `json:"auth" yaml:"auth"`

	// PubSub configuration for account event publishing
	PubSub *PubSubConfig `json:"pubsub" yaml:"pubsub"`
}

// StorageConfig selects the account store.
type StorageConfig struct {
	// Driver is one of "mongo", "postgres" or "memory".
	Driver string `json:"driver" yaml:"driver"`
}

// MongoConfig defines the document store connection.
type MongoConfig struct {
	URI            string        `json:"uri" yaml:"uri"`
	Database       string        `json:"database" yaml:"database"`
	Collection     string        `json:"collection" yaml:"collection"`
	ConnectTimeout time.Duration `json:"connectTimeout" yaml:"connectTimeout"`
}

// AuthConfig defines authentication-related configuration
type AuthConfig struct {
	AccessTokenTTL      time.Duration `json:"accessTokenTTL" yaml:"accessTokenTTL"`
	Issuer              string        `json:"issuer" yaml:"issuer"`
	PasswordMinLength   int           `json:"passwordMinLength" yaml:"passwordMinLength"`
	PasswordMaxLength   int           `json:"passwordMaxLength" yaml:"passwordMaxLength"`
	MaxConcurrentHashes int           `json:"maxConcurrentHashes" yaml:"maxConcurrentHashes"`
	Scrypt              ScryptConfig  `json:"scrypt" yaml:"scrypt"`
}

// ScryptConfig holds the KDF work factors applied to new credentials.
type ScryptConfig struct {
	N          int `json:"n" yaml:"n"`
	R          int `json:"r" yaml:"r"`
	P          int `json:"p" yaml:"p"`
	KeyLength  int `json:"keyLength" yaml:"keyLength"`
	SaltLength int `json:"saltLength" yaml:"saltLength"`
}

type Log struct {
	Pretty bool   `json:"pretty" yaml:"pretty"`
	Level  string `json:"level" yaml:"level"`
}

// PubSubConfig defines Pub/Sub configuration for event publishing
type PubSubConfig struct {
	// Provider type: "local" for local HTTP or "google" for Google Pub/Sub
	Provider string `json:"provider" yaml:"provider"`

	// Google Cloud project ID (for google provider)
	ProjectID string `json:"projectId" yaml:"projectId"`

	// Pub/Sub topic ID (for google provider)
	TopicID string `json:"topicId" yaml:"topicId"`

	// Local HTTP endpoint for development (for local provider)
	LocalEndpoint string `json:"localEndpoint" yaml:"localEndpoint"`
}

// LoadWithEnv loads .yaml files through koanf.
func LoadWithEnv[T any](currEnv string, configPath ...string) (*T, error) {
	cfg := new(T)
	koanfInstance := koanf.New(".")

	configFile, err := findConfigFile(currEnv, configPath)
	if err != nil {
		return nil, err
	}

	// Load YAML config file
	if err := koanfInstance.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "read %s config failed", currEnv)
	}

	existingConfigMap := koanfInstance.Raw()

	// Load environment variables
	if err := koanfInstance.Load(env.Provider(".", env.Opt{
		TransformFunc: func(k, v string) (string, any) {
			// Example: SECRETKEY_ACCESS -> secretKey.access (not secretkey.access)
			key := canonicalizeEnvKey(k, existingConfigMap)

			return key, v
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	// Unmarshal into the config struct (case-insensitive to match env vars)
	if err := koanfInstance.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			MatchName: func(mapKey, fieldName string) bool {
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s config failed", currEnv)
	}

	return cfg, nil
}

func findConfigFile(currEnv string, configPath []string) (string, error) {
	searchPaths := []string{defaultPath}
	if len(configPath) != 0 {
		pwd, err := os.Getwd()
		if err != nil {
			return "", errors.Wrap(err, "os.Getwd")
		}
		for _, path := range configPath {
			searchPaths = append(searchPaths, filepath.Join(pwd, path))
		}
	}

	for _, path := range searchPaths {
		candidate := filepath.Join(path, currEnv+".yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", errors.Errorf("config file %s.yaml not found in any search path", currEnv)
}

func New() (*Config, error) {
	cfg, err := LoadWithEnv[Config]("config", "config", "../config", "../../config")
	if err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()

	if cfg.Postgres != nil {
		// POSTGRES_REPLICAS_0_HOST, POSTGRES_REPLICAS_0_PORT, etc.
		cfg.Postgres.Replicas = buildReplicasFromEnv()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyDefaults fills every unset tunable with its default.
func (c *Config) ApplyDefaults() {
	if strings.TrimSpace(c.HTTP.MaxRequestBodySize) == "" {
		c.HTTP.MaxRequestBodySize = defaultMaxRequestBodySize
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = StorageMongo
	}
	if c.Mongo != nil {
		if c.Mongo.Collection == "" {
			c.Mongo.Collection = defaultMongoCollection
		}
		if c.Mongo.ConnectTimeout <= 0 {
			c.Mongo.ConnectTimeout = defaultMongoTimeout
		}
	}

	if c.Auth == nil {
		c.Auth = &AuthConfig{}
	}
	auth := c.Auth
	if auth.AccessTokenTTL <= 0 {
		auth.AccessTokenTTL = defaultAccessTokenTTL
	}
	if auth.PasswordMinLength <= 0 {
		auth.PasswordMinLength = defaultPasswordMinLength
	}
	if auth.PasswordMaxLength <= 0 {
		auth.PasswordMaxLength = defaultPasswordMaxLength
	}
	if auth.MaxConcurrentHashes <= 0 {
		auth.MaxConcurrentHashes = runtime.GOMAXPROCS(0)
	}

	s := &auth.Scrypt
	if s.N == 0 {
		s.N = defaultScryptN
	}
	if s.R == 0 {
		s.R = defaultScryptR
	}
	if s.P == 0 {
		s.P = defaultScryptP
	}
	if s.KeyLength == 0 {
		s.KeyLength = defaultScryptKeyLength
	}
	if s.SaltLength == 0 {
		s.SaltLength = defaultScryptSaltLength
	}
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.SecretKey.Access == "" {
		return errors.New("secretKey.access must be provided")
	}

	switch c.Storage.Driver {
	case StorageMongo:
		if c.Mongo == nil || c.Mongo.URI == "" || c.Mongo.Database == "" {
			return errors.New("mongo.uri and mongo.database are required for the mongo storage driver")
		}
	case StoragePostgres:
		if c.Postgres == nil {
			return errors.New("postgres configuration is required for the postgres storage driver")
		}
	case StorageMemory:
	default:
		return errors.Errorf("unknown storage driver: %s", c.Storage.Driver)
	}

	if c.Auth != nil {
		if c.Auth.PasswordMinLength > c.Auth.PasswordMaxLength {
			return errors.Errorf("auth.passwordMinLength (%d) exceeds auth.passwordMaxLength (%d)",
				c.Auth.PasswordMinLength, c.Auth.PasswordMaxLength)
		}
		if err := c.Auth.Scrypt.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// MemoryBytes is the memory one derivation needs with these work factors.
func (s ScryptConfig) MemoryBytes() int64 {
	return 128 * int64(s.R) * (int64(s.N) + int64(s.P))
}

// Validate checks the work factors against scrypt's constraints and the memory ceiling.
func (s ScryptConfig) Validate() error {
	if s.N <= 1 || s.N&(s.N-1) != 0 {
		return errors.Errorf("auth.scrypt.n must be a power of two greater than 1, got %d", s.N)
	}
	if s.R <= 0 || s.P <= 0 || s.R*s.P >= 1<<30 {
		return errors.Errorf("auth.scrypt.r and auth.scrypt.p out of range: r=%d p=%d", s.R, s.P)
	}
	if s.MemoryBytes() > MaxScryptMemory {
		return errors.Errorf("auth.scrypt parameters exceed the %d byte memory ceiling", MaxScryptMemory)
	}
	if s.KeyLength < 16 {
		return errors.Errorf("auth.scrypt.keyLength must be at least 16, got %d", s.KeyLength)
	}
	if s.SaltLength < minScryptSaltLength {
		return errors.Errorf("auth.scrypt.saltLength must be at least %d, got %d", minScryptSaltLength, s.SaltLength)
	}

	return nil
}

func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for _, segment := range segments {
		if segment == "" {
			continue
		}

		if matched, next, ok := findExistingSegment(current, segment); ok {
			canonical = append(canonical, matched)
			current = next
		} else {
			canonical = append(canonical, segment)
			current = nil
		}
	}

	return strings.Join(canonical, ".")
}

func findExistingSegment(current map[string]any, segment string) (matched string, next map[string]any, ok bool) {
	if len(current) == 0 {
		return "", nil, false
	}

	needle := normalizeToken(segment)
	for key, value := range current {
		if normalizeToken(key) != needle {
			continue
		}

		child, _ := value.(map[string]any)

		return key, child, true
	}

	return "", nil, false
}

func normalizeToken(s string) string {
	var normalized strings.Builder
	normalized.Grow(len(s))

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		normalized.WriteRune(unicode.ToLower(r))
	}

	return normalized.String()
}

// buildReplicasFromEnv builds the replicas slice from environment variables.
// Environment variable format: POSTGRES_REPLICAS_{index}_{field}
func buildReplicasFromEnv() []postgres.ConnectionConfig {
	var replicas []postgres.ConnectionConfig

	for i := 0; ; i++ {
		prefix := "POSTGRES_REPLICAS_" + strconv.Itoa(i) + "_"

		host := os.Getenv(prefix + "HOST")
		port := os.Getenv(prefix + "PORT")
		if host == "" || port == "" {
			break
		}

		replicas = append(replicas, postgres.ConnectionConfig{
			Host:     host,
			Port:     port,
			UserName: os.Getenv(prefix + "USERNAME"),
			Password: os.Getenv(prefix + "PASSWORD"),
		})
	}

	return replicas
}
