package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Environment     string // ENV: production, development, etc.
	Port            string
	Host            string   // Raw HOST env (e.g. https://api.lovedoctor.in)
	AllowedHosts    []string // Hostnames accepted by the production host check
	AllowedOrigins  []string // CORS: from ALLOWED_ORIGINS or FRONTEND_URL(s)
	CoachHostPrefix string   // Requests whose host starts with this are served the coach site
	SiteDir         string
	CoachSiteDir    string
	InternalAPIKey  string // Required on /user-auth and /coach-auth when set
	TrustProxy      bool   // Read client addresses from X-Forwarded-For

	PostgresURI string
	RedisURI    string
	MongoURI    string

	Session    SessionConfig
	OTPless    OTPlessConfig
	Chat       ChatConfig
	Cloudinary CloudinaryConfig
	Analytics  AnalyticsConfig
	Telemetry  TelemetryConfig
	Log        LogConfig

	CoachDirectory string // COACH_UID_MAP: "1:coach-priya-sharma:Priya Sharma,..."
	HandoffTimeout time.Duration
	VerifyLimit    int
	VerifyWindow   time.Duration
}

type SessionConfig struct {
	Secret     string
	Issuer     string
	TTL        time.Duration
	CookieName string
	Secure     bool
}

type OTPlessConfig struct {
	ClientID     string
	ClientSecret string
	URL          string
	Timeout      time.Duration
}

type ChatConfig struct {
	AppID   string
	Region  string
	APIKey  string
	BaseURL string // overrides the region URL, used against local mocks
	Timeout time.Duration
}

type CloudinaryConfig struct {
	Name      string
	APIKey    string
	APISecret string
	Folder    string
}

func (c CloudinaryConfig) Enabled() bool {
	return c.Name != "" && c.APIKey != "" && c.APISecret != ""
}

type AnalyticsConfig struct {
	Collection string
	Salt       string
}

type TelemetryConfig struct {
	ServiceName  string
	OTLPEndpoint string
}

type LogConfig struct {
	Level string
	Dev   bool
}

const defaultSessionSecret = "your-secret-key-change-in-production"

func Load() *Config {
	env := strings.ToLower(strings.TrimSpace(getEnv("ENV", "development")))
	host := getEnv("HOST", "http://localhost:8080")
	hostname := hostnameOf(host)

	// AllowedHosts is only set in production; host check is skipped in development
	var allowedHosts []string
	coachPrefix := getEnv("COACH_HOST_PREFIX", "coaches.")
	if env == "production" && hostname != "" {
		allowedHosts = parseList(getEnv("ALLOWED_HOSTS", ""))
		if len(allowedHosts) == 0 {
			allowedHosts = []string{hostname}
			if domain := parentDomain(hostname); domain != "" {
				allowedHosts = append(allowedHosts, domain, "www."+domain, coachPrefix+domain)
			}
		}
	}

	allowedOrigins := parseList(getEnv("ALLOWED_ORIGINS", ""))
	if len(allowedOrigins) == 0 {
		for _, u := range []string{getEnv("FRONTEND_URL", "http://localhost:3000"), getEnv("COACH_FRONTEND_URL", "")} {
			u = strings.TrimSpace(u)
			if u != "" {
				allowedOrigins = append(allowedOrigins, u)
			}
		}
	}
	// When HOST is an api host (e.g. api.lovedoctor.in), always allow the apex,
	// www and coaches origins of the same domain.
	if hostname != "" && hostname != "localhost" {
		if domain := parentDomain(hostname); domain != "" {
			for _, origin := range []string{"https://" + domain, "https://www." + domain, "https://" + coachPrefix + domain} {
				if !containsOrigin(allowedOrigins, origin) {
					allowedOrigins = append(allowedOrigins, origin)
				}
			}
		}
	}
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000"}
	}

	logDev := getEnvBool("LOG_DEV", env != "production")
	logLevel := getEnv("LOG_LEVEL", "")
	if logLevel == "" {
		if logDev {
			logLevel = "debug"
		} else {
			logLevel = "info"
		}
	}

	return &Config{
		Environment:     env,
		Port:            getEnv("PORT", "8080"),
		Host:            host,
		AllowedHosts:    allowedHosts,
		AllowedOrigins:  allowedOrigins,
		CoachHostPrefix: coachPrefix,
		SiteDir:         getEnv("SITE_DIR", ""),
		CoachSiteDir:    getEnv("COACH_SITE_DIR", ""),
		InternalAPIKey:  getEnv("INTERNAL_API_KEY", ""),
		TrustProxy:      getEnvBool("TRUST_PROXY", false),

		PostgresURI: getEnv("POSTGRES_URI", "postgres://localhost:5432/lovedoctor?sslmode=disable"),
		RedisURI:    getEnv("REDIS_URI", "redis://localhost:6379/0"),
		MongoURI:    getEnv("MONGODB_URI", getEnv("MONGO_URI", "mongodb://localhost:27017/lovedoctor")),

		Session: SessionConfig{
			Secret:     getEnv("SESSION_SECRET", getEnv("JWT_SECRET", defaultSessionSecret)),
			Issuer:     getEnv("SESSION_ISSUER", "lovedoctor"),
			TTL:        getEnvDuration("SESSION_TTL", 7*24*time.Hour),
			CookieName: getEnv("SESSION_COOKIE", "ld_session"),
			Secure:     getEnvBool("SESSION_COOKIE_SECURE", env == "production"),
		},
		OTPless: OTPlessConfig{
			ClientID:     getEnv("OTPLESS_CLIENT_ID", ""),
			ClientSecret: getEnv("OTPLESS_CLIENT_SECRET", ""),
			URL:          getEnv("OTPLESS_URL", "https://user-auth.otpless.app/auth/v1/validate/token"),
			Timeout:      getEnvDuration("OTPLESS_TIMEOUT", 10*time.Second),
		},
		Chat: ChatConfig{
			AppID:   getEnv("COMETCHAT_APP_ID", ""),
			Region:  getEnv("COMETCHAT_REGION", "us"),
			APIKey:  getEnv("COMETCHAT_API_KEY", ""),
			BaseURL: getEnv("COMETCHAT_BASE_URL", ""),
			Timeout: getEnvDuration("COMETCHAT_TIMEOUT", 10*time.Second),
		},
		Cloudinary: CloudinaryConfig{
			Name:      getEnv("CLOUDINARY_CLOUD_NAME", ""),
			APIKey:    getEnv("CLOUDINARY_API_KEY", ""),
			APISecret: getEnv("CLOUDINARY_API_SECRET", ""),
			Folder:    getEnv("CLOUDINARY_FOLDER", "lovedoctor/coaches"),
		},
		Analytics: AnalyticsConfig{
			Collection: getEnv("ANALYTICS_COLLECTION", "analytics_events"),
			Salt:       getEnv("ANALYTICS_SALT", ""),
		},
		Telemetry: TelemetryConfig{
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "lovedoctor-backend"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		},
		Log: LogConfig{Level: logLevel, Dev: logDev},

		CoachDirectory: getEnv("COACH_UID_MAP", ""),
		HandoffTimeout: getEnvDuration("HANDOFF_TIMEOUT", 30*time.Second),
		VerifyLimit:    getEnvInt("VERIFY_RATE_LIMIT", 20),
		VerifyWindow:   getEnvDuration("VERIFY_RATE_WINDOW", 10*time.Minute),
	}
}

// Validate rejects configurations that must never reach production.
func (c *Config) Validate() error {
	var errs []error
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.IsProduction() {
		if c.Session.Secret == "" || c.Session.Secret == defaultSessionSecret {
			errs = append(errs, errors.New("SESSION_SECRET must be set in production"))
		}
		if c.OTPless.ClientID == "" || c.OTPless.ClientSecret == "" {
			errs = append(errs, errors.New("OTPLESS_CLIENT_ID and OTPLESS_CLIENT_SECRET must be set in production"))
		}
	}
	return errors.Join(errs...)
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return strings.ToLower(strings.TrimSpace(c.Environment)) == "production"
}

func hostnameOf(host string) string {
	for _, prefix := range []string{"https://", "http://"} {
		host = strings.TrimPrefix(host, prefix)
	}
	if idx := strings.Index(host, "/"); idx != -1 {
		host = host[:idx]
	}
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}
	return strings.TrimSpace(host)
}

// parentDomain strips the first label: api.lovedoctor.in -> lovedoctor.in.
func parentDomain(hostname string) string {
	parts := strings.Split(hostname, ".")
	if len(parts) < 3 {
		return ""
	}
	return strings.Join(parts[1:], ".")
}

func parseList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func containsOrigin(list []string, o string) bool {
	o = strings.TrimSpace(strings.ToLower(o))
	for _, v := range list {
		if strings.TrimSpace(strings.ToLower(v)) == o {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}
