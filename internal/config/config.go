package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/i474232898/assistant-api-facade/internal/providers"
	"github.com/i474232898/assistant-api-facade/internal/transport"
)

// AppConfig is read once at startup and passed to constructors explicitly.
type AppConfig struct {
	Microservices MicroservicesConfig `mapstructure:"microservices"`

	// SystemUnit is the default unit system for knowledge queries.
	// Anything but "metric" ends up as "imperial".
	SystemUnit string `mapstructure:"system_unit"`

	Federated FederatedConfig `mapstructure:"federated"`
	Endpoints EndpointsConfig `mapstructure:"endpoints"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Pairing   PairingConfig   `mapstructure:"pairing"`

	Port string `mapstructure:"port" validate:"required,numeric"`
}

// MicroservicesConfig holds the operator's personal upstream keys.
// An empty key means the matching provider is not configured.
type MicroservicesConfig struct {
	WolframKey  string `mapstructure:"wolfram_key"`
	OWMKey      string `mapstructure:"owm_key"`
	GeocoderKey string `mapstructure:"geocoder_key"`
}

// FederatedConfig points at the shared intermediary service. Empty disables it.
type FederatedConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// EndpointsConfig overrides upstream base URLs.
type EndpointsConfig struct {
	Weather   string `mapstructure:"weather" validate:"required,url"`
	Knowledge string `mapstructure:"knowledge" validate:"required,url"`
}

// HTTPConfig controls the outbound transport.
type HTTPConfig struct {
	Timeout      time.Duration `mapstructure:"timeout" validate:"gt=0"`
	MaxRetries   int           `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes" validate:"gt=0"`
}

// PairingConfig controls pairing code lifetime.
type PairingConfig struct {
	TTL           time.Duration `mapstructure:"ttl" validate:"gt=0"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" validate:"gt=0"`
	MaxActive     int           `mapstructure:"max_active" validate:"gte=0"`
}

var validate = validator.New()

// Load reads configuration from an optional YAML file and the environment.
// Nested keys map to env vars with "_" separators, e.g. MICROSERVICES_OWM_KEY.
func Load(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	vip := viper.New()
	if path != "" {
		vip.SetConfigFile(path)
	} else {
		vip.SetConfigName("config")
		vip.AddConfigPath("./configs")
		vip.AddConfigPath(".")
	}

	vip.SetConfigType("yaml")
	vip.AutomaticEnv()
	vip.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(vip)

	// Short aliases for existing .env files.
	_ = vip.BindEnv("microservices.owm_key", "MICROSERVICES_OWM_KEY", "OPENWEATHER_API_KEY")
	_ = vip.BindEnv("microservices.wolfram_key", "MICROSERVICES_WOLFRAM_KEY", "WOLFRAM_API_KEY")
	_ = vip.BindEnv("microservices.geocoder_key", "MICROSERVICES_GEOCODER_KEY", "GEOCODER_API_KEY")

	if err := vip.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(vip *viper.Viper) {
	vip.SetDefault("microservices.wolfram_key", "")
	vip.SetDefault("microservices.owm_key", "")
	vip.SetDefault("microservices.geocoder_key", "")
	vip.SetDefault("system_unit", "metric")
	vip.SetDefault("federated.url", "")
	vip.SetDefault("endpoints.weather", providers.DefaultOpenWeatherURL)
	vip.SetDefault("endpoints.knowledge", providers.DefaultWolframURL)
	vip.SetDefault("http.timeout", "10s")
	vip.SetDefault("http.max_retries", 2)
	vip.SetDefault("http.max_body_bytes", transport.DefaultMaxBodyBytes)
	vip.SetDefault("pairing.ttl", "10m")
	vip.SetDefault("pairing.sweep_interval", "1m")
	vip.SetDefault("pairing.max_active", 10000)
	vip.SetDefault("port", "8080")
}
