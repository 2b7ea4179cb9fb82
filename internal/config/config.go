package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	LLM       LLMConfig       `mapstructure:"llm"`
	Server    ServerConfig    `mapstructure:"server"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Store     StoreConfig     `mapstructure:"store"`
	FieldData FieldDataConfig `mapstructure:"field_data"`
	Log       LogConfig       `mapstructure:"log"`
}

// Provider names accepted in llm.provider.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// LLMConfig holds the generative AI endpoint configuration and the default
// generation parameters applied when a request leaves them unset.
type LLMConfig struct {
	Provider     string        `mapstructure:"provider"`
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	Model        string        `mapstructure:"model"`
	SystemPrompt string        `mapstructure:"system_prompt"`
	Temperature  float32       `mapstructure:"temperature"`
	TopK         int32         `mapstructure:"top_k"`
	TopP         float32       `mapstructure:"top_p"`
	MaxTokens    int32         `mapstructure:"max_tokens"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// ChatConfig holds transcript and prompt assembly settings.
type ChatConfig struct {
	MaxHistory    int `mapstructure:"max_history"`
	RetainContext int `mapstructure:"retain_context"`
}

// StoreConfig points at the SQLite file shared by the history archive and the
// analysis records. An empty path keeps everything in memory.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// FieldDataConfig holds the soil and weather API endpoints.
type FieldDataConfig struct {
	SoilURL    string        `mapstructure:"soil_url"`
	WeatherURL string        `mapstructure:"weather_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// LogConfig holds the logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultSystemPrompt frames every assistant reply.
const DefaultSystemPrompt = `You are EcoFarmCast AI, an expert agricultural assistant.
Always provide practical, actionable advice based on:
- Scientific farming principles
- Sustainable practices
- Regional considerations
- Economic viability`

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", ProviderGemini)
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gemini-pro")
	v.SetDefault("llm.system_prompt", DefaultSystemPrompt)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.top_k", 40)
	v.SetDefault("llm.top_p", 0.95)
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.timeout", "60s")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")

	v.SetDefault("chat.max_history", 10)
	v.SetDefault("chat.retain_context", 5)

	v.SetDefault("store.path", "ecofarmcast.db")

	v.SetDefault("field_data.soil_url", "https://rest.isric.org/soilgrids/v2.0/properties/query")
	v.SetDefault("field_data.weather_url", "https://api.open-meteo.com/v1/forecast")
	v.SetDefault("field_data.timeout", "5s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load loads the configuration from the file named by CONFIG_PATH, falling
// back to config.yaml in the working directory. A missing config.yaml is not
// an error; defaults and environment variables still apply.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("CONFIG_PATH"))
}

// LoadFile loads the configuration from path. An empty path searches for
// config.yaml in the working directory.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ECOFARMCAST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("llm.api_key", "ECOFARMCAST_LLM_API_KEY", "GEMINI_API_KEY", "OPENAI_API_KEY")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, err
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
