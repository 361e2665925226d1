package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Store   StoreConfig   `yaml:"store"`
	Blob    BlobConfig    `yaml:"blob"`
	Minio   MinioConfig   `yaml:"minio"`
	Signing SigningConfig `yaml:"signing"`
	Auth    AuthConfig    `yaml:"auth"`
	CORS    CORSConfig    `yaml:"cors"`
	Users   []User        `yaml:"users"`
}

type ServerConfig struct {
	Port         int           `yaml:"port"`
	MaxUploadMB  int           `yaml:"max_upload_mb"`
	RateLimit    int           `yaml:"rate_limit"` // requests per minute per client
	ShutdownWait time.Duration `yaml:"shutdown_wait"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Record store backends
const (
	StoreMemory   = "memory"
	StoreBolt     = "bolt"
	StorePostgres = "postgres"
)

type StoreConfig struct {
	Backend      string `yaml:"backend"`
	MaxContracts int    `yaml:"max_contracts"`
	BoltPath     string `yaml:"bolt_path"`
	PostgresDSN  string `yaml:"postgres_dsn"`
}

// Blob store backends
const (
	BlobMinio = "minio"
	BlobLocal = "local"
)

type BlobConfig struct {
	Backend      string        `yaml:"backend"`
	LocalDir     string        `yaml:"local_dir"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

type MinioConfig struct {
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	Bucket     string `yaml:"bucket"`
	Region     string `yaml:"region"`
	UseSSL     bool   `yaml:"use_ssl"`
	ExpireDays int    `yaml:"expire_days"`
}

// Fingerprint scopes
const (
	ScopeContract     = "contract"
	ScopePerSignature = "per-signature"
)

type SigningConfig struct {
	FingerprintScope string `yaml:"fingerprint_scope"`
	MaxSignAttempts  int    `yaml:"max_sign_attempts"`
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type User struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"` // bcrypt
}

// Load reads the YAML file at path, then applies a .env file next to it
// (if any) and NDA_* environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	envFile := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}
	cfg.applyEnv()
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	overrides := map[string]*string{
		"NDA_JWT_SECRET":       &c.Auth.JWTSecret,
		"NDA_STORE_BACKEND":    &c.Store.Backend,
		"NDA_BOLT_PATH":        &c.Store.BoltPath,
		"NDA_POSTGRES_DSN":     &c.Store.PostgresDSN,
		"NDA_BLOB_BACKEND":     &c.Blob.Backend,
		"NDA_MINIO_ENDPOINT":   &c.Minio.Endpoint,
		"NDA_MINIO_ACCESS_KEY": &c.Minio.AccessKey,
		"NDA_MINIO_SECRET_KEY": &c.Minio.SecretKey,
		"NDA_LOG_LEVEL":        &c.Log.Level,
	}
	for key, dst := range overrides {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("NDA_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
}

func (c *Config) setDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.MaxUploadMB == 0 {
		c.Server.MaxUploadMB = 20
	}
	if c.Server.RateLimit == 0 {
		c.Server.RateLimit = 100
	}
	if c.Server.ShutdownWait == 0 {
		c.Server.ShutdownWait = 5 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Store.Backend == "" {
		c.Store.Backend = StoreMemory
	}
	if c.Store.BoltPath == "" {
		c.Store.BoltPath = "data/contracts.db"
	}
	if c.Blob.Backend == "" {
		c.Blob.Backend = BlobMinio
	}
	if c.Blob.LocalDir == "" {
		c.Blob.LocalDir = "data/documents"
	}
	if c.Blob.FetchTimeout == 0 {
		c.Blob.FetchTimeout = 10 * time.Second
	}
	if c.Minio.ExpireDays == 0 {
		c.Minio.ExpireDays = 7
	}
	if c.Signing.FingerprintScope == "" {
		c.Signing.FingerprintScope = ScopeContract
	}
	if c.Signing.MaxSignAttempts == 0 {
		c.Signing.MaxSignAttempts = 5
	}
	if c.Auth.TokenExpireHours == 0 {
		c.Auth.TokenExpireHours = 24
	}
}

// Validate rejects unknown backend and scope names
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required (or set NDA_JWT_SECRET)")
	}
	switch c.Store.Backend {
	case StoreMemory, StoreBolt:
	case StorePostgres:
		if c.Store.PostgresDSN == "" {
			return errors.New("store.postgres_dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	switch c.Blob.Backend {
	case BlobMinio, BlobLocal:
	default:
		return fmt.Errorf("unknown blob backend %q", c.Blob.Backend)
	}
	switch strings.ToLower(c.Signing.FingerprintScope) {
	case ScopeContract, ScopePerSignature:
	default:
		return fmt.Errorf("unknown fingerprint scope %q", c.Signing.FingerprintScope)
	}
	return nil
}

// FindUser finds a user by username
func (c *Config) FindUser(username string) *User {
	for i := range c.Users {
		if c.Users[i].Username == username {
			return &c.Users[i]
		}
	}
	return nil
}

// CheckPassword compares password against the stored bcrypt hash
func (u *User) CheckPassword(password string) bool {
	if u == nil || u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// HashPassword returns a bcrypt hash suitable for users[].password_hash
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}
