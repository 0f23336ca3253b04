package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port        string `mapstructure:"port"`
		MetricsPort string `mapstructure:"metrics_port"`
		LogLevel    string `mapstructure:"log_level"`
	} `mapstructure:"server"`
	Database struct {
		Driver   string `mapstructure:"driver"` // "sqlite" or "postgres"
		Path     string `mapstructure:"path"`   // sqlite file
		Host     string `mapstructure:"host"`
		Port     string `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
	} `mapstructure:"database"`
	Playout struct {
		// BaselinePath is the YAML file with per-studio baseline timeline
		// objects merged into every build.
		BaselinePath string `mapstructure:"baseline_path"`
		// DefaultDisplayDuration (ms) is the rendered width of parts with
		// no expected duration in the segment view.
		DefaultDisplayDuration int64 `mapstructure:"default_display_duration"`
		SeedDemo               bool  `mapstructure:"seed_demo"`
	} `mapstructure:"playout"`
}

func Load() *Config {
	viper.SetEnvPrefix("PLAYOUT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Register keys
	viper.BindEnv("server.port")
	viper.BindEnv("server.metrics_port")
	viper.BindEnv("server.log_level")

	viper.BindEnv("database.driver")
	viper.BindEnv("database.path")
	viper.BindEnv("database.host")
	viper.BindEnv("database.port")
	viper.BindEnv("database.user")
	viper.BindEnv("database.password")
	viper.BindEnv("database.name")

	viper.BindEnv("playout.baseline_path")
	viper.BindEnv("playout.default_display_duration")
	viper.BindEnv("playout.seed_demo")

	// Defaults
	viper.SetDefault("server.port", ":8081")
	viper.SetDefault("server.metrics_port", ":9091")
	viper.SetDefault("server.log_level", "info")

	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.path", "./playout.db")
	viper.SetDefault("database.port", "5432")

	viper.SetDefault("playout.baseline_path", "./baseline.yaml")
	viper.SetDefault("playout.default_display_duration", 3000)
	viper.SetDefault("playout.seed_demo", true)

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("Warning: Config error: %s", err)
		} else {
			log.Println("Info: config.yaml not found, using Environment Variables only.")
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		log.Fatalf("Unable to decode config: %v", err)
	}

	if cfg.Database.Driver == "postgres" && cfg.Database.Host == "" {
		log.Fatal("Critical: postgres driver selected but no host set (PLAYOUT_DATABASE_HOST)")
	}

	return &cfg
}
