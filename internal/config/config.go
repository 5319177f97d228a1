package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ==================== 配置结构 ====================

// Config 应用配置
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	SendGrid SendGridConfig `mapstructure:"sendgrid"`
	Payout   PayoutConfig   `mapstructure:"payout"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // debug / release / test
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	LogLevel     string `mapstructure:"log_level"` // silent / error / warn / info
}

// RedisConfig Redis 配置，URL 为空时使用内存队列
type RedisConfig struct {
	URL       string `mapstructure:"url"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// JWTConfig 商户 Token 配置
type JWTConfig struct {
	Secret    string        `mapstructure:"secret"`
	Issuer    string        `mapstructure:"issuer"`
	AccessTTL time.Duration `mapstructure:"access_ttl"`
}

// SendGridConfig 邮件通知配置，APIKey 为空时只打印日志
type SendGridConfig struct {
	APIKey    string `mapstructure:"api_key"`
	FromEmail string `mapstructure:"from_email"`
	FromName  string `mapstructure:"from_name"`
}

// PayoutConfig 佣金结算任务配置
type PayoutConfig struct {
	Concurrency       int           `mapstructure:"concurrency"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	VisibilityTimeout time.Duration `mapstructure:"visibility_timeout"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	ReapSpec          string        `mapstructure:"reap_spec"`
	Cooldown          time.Duration `mapstructure:"cooldown"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json / console
}

// ==================== 加载 ====================

// Load 加载配置
// 优先级：环境变量 (APP_ 前缀) > 配置文件 > 默认值
// path 为空时只读取环境变量
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("读取配置文件失败: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验必要配置
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return errors.New("database.dsn 不能为空")
	}
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret 不能为空")
	}
	if c.Payout.Concurrency <= 0 {
		return fmt.Errorf("payout.concurrency 必须大于 0，当前 %d", c.Payout.Concurrency)
	}
	if c.Payout.MaxAttempts <= 0 {
		return fmt.Errorf("payout.max_attempts 必须大于 0，当前 %d", c.Payout.MaxAttempts)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	// Database
	v.SetDefault("database.dsn", "host=localhost user=affiliate password=affiliate dbname=affiliate port=5432 sslmode=disable")
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.log_level", "warn")

	// Redis
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.key_prefix", "affiliate")

	// JWT
	v.SetDefault("jwt.secret", "affiliate-secret-key-change-in-production")
	v.SetDefault("jwt.issuer", "affiliate-order")
	v.SetDefault("jwt.access_ttl", 2*time.Hour)

	// SendGrid
	v.SetDefault("sendgrid.api_key", "")
	v.SetDefault("sendgrid.from_email", "no-reply@example.com")
	v.SetDefault("sendgrid.from_name", "Affiliate Program")

	// Payout
	v.SetDefault("payout.concurrency", 5)
	v.SetDefault("payout.max_attempts", 5)
	v.SetDefault("payout.visibility_timeout", 2*time.Minute)
	v.SetDefault("payout.poll_interval", 500*time.Millisecond)
	v.SetDefault("payout.reap_spec", "0 * * * * *")
	v.SetDefault("payout.cooldown", time.Minute)

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
