package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	AuthRateLimit AuthRateLimitConfig
	Password      PasswordConfig
	Fees          FeesConfig
	Paystack      PaystackConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	FeatureFlags  FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"KASUWA_APP_ENV" required:"true"`
	Port         string `envconfig:"KASUWA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"KASUWA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"KASUWA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"KASUWA_DB_DSN"`
	Driver string `envconfig:"KASUWA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"KASUWA_DB_HOST"`
	LegacyPort     int    `envconfig:"KASUWA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"KASUWA_DB_USER"`
	LegacyPassword string `envconfig:"KASUWA_DB_PASSWORD"`
	LegacyName     string `envconfig:"KASUWA_DB_NAME"`
	LegacySSLMode  string `envconfig:"KASUWA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"KASUWA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"KASUWA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"KASUWA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"KASUWA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"KASUWA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"KASUWA_REDIS_ADDR"`
	Password     string        `envconfig:"KASUWA_REDIS_PASSWORD"`
	DB           int           `envconfig:"KASUWA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"KASUWA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"KASUWA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"KASUWA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"KASUWA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"KASUWA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"KASUWA_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"KASUWA_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"KASUWA_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"KASUWA_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"KASUWA_AUTH_RL_LOGIN_WINDOW" default:"5m"`
	LoginIPLimit       int           `envconfig:"KASUWA_AUTH_RL_LOGIN_IP_LIMIT" default:"20"`
	LoginEmailLimit    int           `envconfig:"KASUWA_AUTH_RL_LOGIN_EMAIL_LIMIT" default:"10"`
	RegisterWindow     time.Duration `envconfig:"KASUWA_AUTH_RL_REGISTER_WINDOW" default:"1h"`
	RegisterIPLimit    int           `envconfig:"KASUWA_AUTH_RL_REGISTER_IP_LIMIT" default:"10"`
	RegisterEmailLimit int           `envconfig:"KASUWA_AUTH_RL_REGISTER_EMAIL_LIMIT" default:"5"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"KASUWA_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"KASUWA_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"KASUWA_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"KASUWA_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"KASUWA_ARGON_KEY_LEN" default:"32"`
}

// FeesConfig holds the platform fee schedule, all amounts in kobo.
type FeesConfig struct {
	ListingFeeKobo    int64 `envconfig:"KASUWA_LISTING_FEE_KOBO" default:"10000"`
	PurchaseFeeKobo   int64 `envconfig:"KASUWA_PURCHASE_FEE_KOBO" default:"5000"`
	CommissionPercent int   `envconfig:"KASUWA_COMMISSION_PERCENT" default:"5"`
}

// CommissionKobo computes the platform's cut of a sale amount.
func (f FeesConfig) CommissionKobo(amountKobo int64) int64 {
	if f.CommissionPercent <= 0 {
		return 0
	}
	return amountKobo * int64(f.CommissionPercent) / 100
}

type PaystackConfig struct {
	SecretKey   string        `envconfig:"KASUWA_PAYSTACK_SECRET_KEY" required:"true"`
	BaseURL     string        `envconfig:"KASUWA_PAYSTACK_BASE_URL" default:"https://api.paystack.co"`
	CallbackURL string        `envconfig:"KASUWA_PAYSTACK_CALLBACK_URL"`
	Timeout     time.Duration `envconfig:"KASUWA_PAYSTACK_TIMEOUT" default:"30s"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"KASUWA_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON string `envconfig:"KASUWA_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"KASUWA_PUBSUB_DOMAIN_TOPIC" default:"kasuwa-domain-events"`
	DomainSubscription string `envconfig:"KASUWA_PUBSUB_DOMAIN_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"KASUWA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"KASUWA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"KASUWA_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"KASUWA_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"KASUWA_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
