package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Конечная структура конфигурации приложения.
type Config struct {
	Server struct {
		Address  string `mapstructure:"address"`   // 0.0.0.0
		HTTPPort string `mapstructure:"http_port"` // 8080
		APIToken string `mapstructure:"api_token"` // Bearer для /api/v1
	} `mapstructure:"server"`

	Logging struct {
		Level  string `mapstructure:"level"`  // trace|debug|info|warning|error|fatal
		Format string `mapstructure:"format"` // text|json
		File   string `mapstructure:"file"`   // путь/префикс файла, пусто — только stdout
	} `mapstructure:"logs"`

	Database struct {
		Driver string `mapstructure:"driver"` // "postgres" | "mysql"
		DSN    string `mapstructure:"dsn"`
	} `mapstructure:"database"`

	Redis struct {
		Address  string `mapstructure:"address"` // пусто — локи внутри процесса
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	CRM CRM `mapstructure:"crm"`

	Sync Sync `mapstructure:"sync"`
}

// CRM — общая (дефолтная) локация и агентские реквизиты.
type CRM struct {
	BaseURL             string `mapstructure:"base_url"`
	APIVersion          string `mapstructure:"api_version"`
	DefaultLocationID   string `mapstructure:"default_location_id"`
	DefaultCredential   string `mapstructure:"default_credential"`
	DefaultAutomationID string `mapstructure:"default_automation_id"`
	AgencyCredential    string `mapstructure:"agency_credential"`
	CompanyID           string `mapstructure:"company_id"`
}

type Sync struct {
	MembershipThreshold int64         `mapstructure:"membership_threshold"` // в минорных единицах
	ContactCacheTTL     time.Duration `mapstructure:"contact_cache_ttl"`
	LockTTL             time.Duration `mapstructure:"lock_ttl"`
	LockWait            time.Duration `mapstructure:"lock_wait"`
}

// Load читает конфиг из .env/env/файла с дефолтами.
func Load() (*Config, error) {
	// .env опционален
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.http_port", "8080")
	v.SetDefault("server.api_token", "")

	v.SetDefault("logs.level", "info")
	v.SetDefault("logs.format", "text")
	v.SetDefault("logs.file", "")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "")

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("crm.base_url", "https://services.leadconnectorhq.com")
	v.SetDefault("crm.api_version", "2021-07-28")
	v.SetDefault("crm.default_location_id", "")
	v.SetDefault("crm.default_credential", "")
	v.SetDefault("crm.default_automation_id", "")
	v.SetDefault("crm.agency_credential", "")
	v.SetDefault("crm.company_id", "")

	v.SetDefault("sync.membership_threshold", 100000)
	v.SetDefault("sync.contact_cache_ttl", "24h")
	v.SetDefault("sync.lock_ttl", "30s")
	v.SetDefault("sync.lock_wait", "10s")

	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			v.AddConfigPath(filepath.Join(xdg, "coursesync"))
		}
		v.AddConfigPath("/etc/coursesync")
	}

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return nil, fmt.Errorf("config read error: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Реквизиты CRM здесь не проверяются: их отсутствие — ConfigurationError
// в момент резолва локации, а не ошибка старта.
func validate(c *Config) error {
	if strings.TrimSpace(c.Server.Address) == "" {
		return errors.New("server.address must not be empty")
	}
	if strings.TrimSpace(c.Server.HTTPPort) == "" {
		return errors.New("server.http_port must not be empty")
	}
	if c.Sync.MembershipThreshold <= 0 {
		return errors.New("sync.membership_threshold must be positive")
	}
	if c.Sync.LockTTL <= 0 {
		return errors.New("sync.lock_ttl must be positive")
	}
	return nil
}
