package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or an env-file loaded in main).
// No business logic should depend on raw environment variables.
type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	Billing  BillingConfig
	Benefits BenefitsConfig
	Session  SessionConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit; production must set it.
	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

// BillingConfig configures the external receipt gateway.
type BillingConfig struct {
	APIURL    string
	CompanyID string
	User      string
	Password  string

	// RequestTimeout bounds every gateway round trip. A slow gateway must
	// never hang a webhook response; expiry is treated as a gateway failure.
	RequestTimeout time.Duration
}

// BenefitsConfig holds the entitlement constants used by the calculator.
type BenefitsConfig struct {
	WorkBenefitBase      int
	BirthBenefitPerChild int
}

type SessionConfig struct {
	// TTL bounds the lifetime of per-call session state.
	TTL time.Duration

	// SubscriptionMonths is the subscription window granted on registration
	// and renewal.
	SubscriptionMonths int
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Billing.APIURL = strings.TrimSpace(os.Getenv("BILLING_API_URL"))
	c.Billing.CompanyID = strings.TrimSpace(os.Getenv("BILLING_COMPANY_ID"))
	c.Billing.User = strings.TrimSpace(os.Getenv("BILLING_USER"))
	c.Billing.Password = os.Getenv("BILLING_PASSWORD")
	c.Billing.RequestTimeout = optDuration("BILLING_REQUEST_TIMEOUT")

	c.Benefits.WorkBenefitBase = optInt("WORK_BENEFIT_BASE")
	c.Benefits.BirthBenefitPerChild = optInt("BIRTH_BENEFIT_PER_CHILD")

	c.Session.TTL = optDuration("SESSION_TTL")
	c.Session.SubscriptionMonths = optInt("SUBSCRIPTION_MONTHS")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Billing.APIURL == "" {
		errs = append(errs, errors.New("BILLING_API_URL is required"))
	}
	if c.IsProduction() {
		if c.Billing.CompanyID == "" {
			errs = append(errs, errors.New("BILLING_COMPANY_ID is required in production"))
		}
		if c.Billing.User == "" {
			errs = append(errs, errors.New("BILLING_USER is required in production"))
		}
		if c.Billing.Password == "" {
			errs = append(errs, errors.New("BILLING_PASSWORD is required in production"))
		}
	}
	if c.Billing.RequestTimeout <= 0 {
		c.Billing.RequestTimeout = 15 * time.Second
	}

	if c.Benefits.WorkBenefitBase <= 0 {
		c.Benefits.WorkBenefitBase = 2000
	}
	if c.Benefits.BirthBenefitPerChild <= 0 {
		c.Benefits.BirthBenefitPerChild = 1500
	}

	if c.Session.TTL <= 0 {
		// An hour comfortably outlives any live call while still bounding
		// session growth across the life of the process.
		c.Session.TTL = time.Hour
	}
	if c.Session.SubscriptionMonths <= 0 {
		c.Session.SubscriptionMonths = 12
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optInt(key string) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func optDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
