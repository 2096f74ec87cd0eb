package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"forum-keeper/models"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// SetDefaults 注册所有配置项的默认值。
// 只有注册过的键才能被 AutomaticEnv 从环境变量覆盖。
func SetDefaults(v *viper.Viper) {
	v.SetDefault("BOT_TOKEN", "")
	v.SetDefault("bot.adminChannelId", "")
	v.SetDefault("bot.commandGuildId", "")
	v.SetDefault("bot.developers", []string{})
	v.SetDefault("database.path", "data/forum-keeper.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("lifecycle.resolveDelay", 30*time.Minute)
	v.SetDefault("lifecycle.maxResolveDelay", 24*time.Hour)
	v.SetDefault("lifecycle.warningWindow", 24*24*time.Hour)
	v.SetDefault("lifecycle.closeWindow", 30*24*time.Hour)
	v.SetDefault("lifecycle.lockSweepInterval", time.Minute)
	v.SetDefault("lifecycle.staleSweepInterval", 6*time.Hour)
	v.SetDefault("lifecycle.gatewayTimeout", 10*time.Second)
	v.SetDefault("lifecycle.staleSweepAtStartup", true)
	v.SetDefault("lifecycle.backfillAtStartup", true)

	v.SetDefault("audit.retentionDays", 90)
	v.SetDefault("audit.mirror", true)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.exporter", "otlp-http")
	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.serviceName", "forum-keeper")
	v.SetDefault("telemetry.sampleRate", 1.0)
	v.SetDefault("telemetry.metricsEnabled", false)

	v.SetDefault("health.address", "")
	v.SetDefault("guilds.file", "config/guilds.yaml")
}

// LoadConfig 从多个源加载配置：.env 文件、config.yaml、以及环境变量。
// 配置加载顺序:
// 1. .env 文件 (用于环境变量)
// 2. config.yaml，或 configFile 指定的文件
// 环境变量会覆盖配置文件中的同名设置。缺失的文件不是错误。
func LoadConfig(v *viper.Viper, configFile string) error {
	// 1. 从 .env 文件加载环境变量，如果文件不存在则忽略。
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	SetDefaults(v)
	v.AutomaticEnv()                                   // 自动读取匹配的环境变量
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // 将配置键中的'.'替换为'_'以匹配环境变量

	// 2. 读取基础配置文件。
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// 配置文件未找到是正常情况，可以继续。
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// sections mirrors the structured blocks of config.yaml.
// Decoding the whole tree goes through AllSettings, so env overrides of nested keys apply.
type sections struct {
	Lifecycle models.LifecycleConfig `mapstructure:"lifecycle"`
	Audit     models.AuditConfig     `mapstructure:"audit"`
	Telemetry models.TelemetryConfig `mapstructure:"telemetry"`
}

func decode(v *viper.Viper) (sections, error) {
	var s sections
	if err := v.Unmarshal(&s); err != nil {
		return s, fmt.Errorf("invalid config: %w", err)
	}
	return s, nil
}

// Lifecycle decodes the lifecycle block.
func Lifecycle(v *viper.Viper) (models.LifecycleConfig, error) {
	s, err := decode(v)
	if err != nil {
		return s.Lifecycle, err
	}
	cfg := s.Lifecycle
	if cfg.CloseWindow <= cfg.WarningWindow {
		return cfg, fmt.Errorf("lifecycle.closeWindow (%s) must be longer than lifecycle.warningWindow (%s)", cfg.CloseWindow, cfg.WarningWindow)
	}
	return cfg, nil
}

// Audit decodes the audit block.
func Audit(v *viper.Viper) (models.AuditConfig, error) {
	s, err := decode(v)
	return s.Audit, err
}

// Telemetry decodes the telemetry block.
func Telemetry(v *viper.Viper) (models.TelemetryConfig, error) {
	s, err := decode(v)
	return s.Telemetry, err
}
