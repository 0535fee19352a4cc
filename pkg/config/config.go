package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	LLM       LLMConfig
	Registry  RegistryConfig
	Planner   PlannerConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
	Metrics   MetricsConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    int
	WriteTimeout   int
	BodyLimit      int
	Environment    string
	AllowedOrigins []string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type LLMConfig struct {
	Model            string
	APIKey           string
	BaseURL          string
	Temperature      float32
	MaxTokens        int
	MaxAttempts      int
	FailureThreshold int
	CooldownSec      int
}

type RegistryConfig struct {
	BaseURL           string
	TimeoutSec        int
	PageSize          int
	FetchConcurrency  int
	RequestIntervalMs int
	FetchRetries      int
	RetryDelayMs      int
	DefaultTerm       string
	DefaultSubjects   []string
	FallbackTerms     []string
}

type PlannerConfig struct {
	ScanWindow       int
	BatchSize        int
	ExpansionWindow  int
	MinCandidates    int
	TargetCandidates int
	DefaultYears     int
	RequiredCredits  int
	MinSemesterLoad  int
	MaxSemesterLoad  int
	PlanTTLMin       int
	CatalogTTLMin    int
	SubjectTTLMin    int
	TermTTLMin       int
	Timeouts         StageTimeouts
}

// StageTimeouts are in seconds.
type StageTimeouts struct {
	Catalog         int
	Expand          int
	Score           int
	Sequence        int
	Plan            int
	Recommendations int
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
	MaxSizeMB  int
	MaxBackups int
}

type MetricsConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/neu-planner")

	v.SetEnvPrefix("NEU_PLANNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.LLM.APIKey == "" {
		config.LLM.APIKey = v.GetString("openai_api_key")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var config Config
	_ = v.Unmarshal(&config)
	return &config
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 200)
	v.SetDefault("server.bodyLimit", 1048576)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowedOrigins", []string{"*"})

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.maxTokens", 1500)
	v.SetDefault("llm.maxAttempts", 1)
	v.SetDefault("llm.failureThreshold", 5)
	v.SetDefault("llm.cooldownSec", 30)

	v.SetDefault("registry.baseURL", "https://nubanner.neu.edu/StudentRegistrationSsb/ssb")
	v.SetDefault("registry.timeoutSec", 30)
	v.SetDefault("registry.pageSize", 500)
	v.SetDefault("registry.fetchConcurrency", 4)
	v.SetDefault("registry.requestIntervalMs", 200)
	v.SetDefault("registry.fetchRetries", 3)
	v.SetDefault("registry.retryDelayMs", 500)
	v.SetDefault("registry.defaultTerm", "202540")
	v.SetDefault("registry.defaultSubjects", []string{
		"CS", "DS", "IS", "MATH", "PHYS", "CHEM", "BIOL", "EECE",
		"PHIL", "ENGW", "BUSN", "ACCT", "FINA", "MGMT", "ECON", "STAT",
	})
	v.SetDefault("registry.fallbackTerms", []string{"202540", "202530", "202520", "202510"})

	v.SetDefault("planner.scanWindow", 200)
	v.SetDefault("planner.batchSize", 50)
	v.SetDefault("planner.expansionWindow", 100)
	v.SetDefault("planner.minCandidates", 8)
	v.SetDefault("planner.targetCandidates", 16)
	v.SetDefault("planner.defaultYears", 2)
	v.SetDefault("planner.requiredCredits", 128)
	v.SetDefault("planner.minSemesterLoad", 12)
	v.SetDefault("planner.maxSemesterLoad", 20)
	v.SetDefault("planner.planTTLMin", 30)
	v.SetDefault("planner.catalogTTLMin", 30)
	v.SetDefault("planner.subjectTTLMin", 60)
	v.SetDefault("planner.termTTLMin", 120)
	v.SetDefault("planner.timeouts.catalog", 90)
	v.SetDefault("planner.timeouts.expand", 15)
	v.SetDefault("planner.timeouts.score", 60)
	v.SetDefault("planner.timeouts.sequence", 30)
	v.SetDefault("planner.timeouts.plan", 120)
	v.SetDefault("planner.timeouts.recommendations", 180)

	v.SetDefault("rateLimit.requestsPerMinute", 30)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")
	v.SetDefault("logging.maxSizeMB", 100)
	v.SetDefault("logging.maxBackups", 3)

	v.SetDefault("metrics.enabled", true)
}

func (c *Config) Validate() error {
	var errs []error
	p := c.Planner
	if p.BatchSize <= 0 {
		errs = append(errs, errors.New("planner.batchSize must be positive"))
	}
	if p.ScanWindow <= 0 {
		errs = append(errs, errors.New("planner.scanWindow must be positive"))
	}
	if p.MinCandidates <= 0 || p.TargetCandidates < p.MinCandidates {
		errs = append(errs, errors.New("planner.targetCandidates must be at least planner.minCandidates"))
	}
	if p.MinSemesterLoad > p.MaxSemesterLoad {
		errs = append(errs, fmt.Errorf("planner.minSemesterLoad %d exceeds maxSemesterLoad %d", p.MinSemesterLoad, p.MaxSemesterLoad))
	}
	if p.RequiredCredits <= 0 {
		errs = append(errs, errors.New("planner.requiredCredits must be positive"))
	}
	if strings.TrimSpace(c.Registry.DefaultTerm) == "" && len(c.Registry.FallbackTerms) == 0 {
		errs = append(errs, errors.New("registry.defaultTerm or registry.fallbackTerms must name a term"))
	}
	if c.Registry.FetchConcurrency <= 0 {
		errs = append(errs, errors.New("registry.fetchConcurrency must be positive"))
	}
	return errors.Join(errs...)
}

func (p PlannerConfig) PlanTTL() time.Duration    { return time.Duration(p.PlanTTLMin) * time.Minute }
func (p PlannerConfig) CatalogTTL() time.Duration { return time.Duration(p.CatalogTTLMin) * time.Minute }
func (p PlannerConfig) SubjectTTL() time.Duration { return time.Duration(p.SubjectTTLMin) * time.Minute }
func (p PlannerConfig) TermTTL() time.Duration    { return time.Duration(p.TermTTLMin) * time.Minute }
