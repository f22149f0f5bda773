package platform

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// Config 汇总服务启动所需的全部配置，进程启动时构建一次
type Config struct {
	Port        string
	CORSOrigins []string
	UploadDir   string
	LogDir      string

	Database DatabaseConfig
	JWT      JWTConfig
	LLM      LLMConfig
	Reminder ReminderConfig
	SMTP     SMTPConfig

	StrictOwnership bool
}

type DatabaseConfig struct {
	Driver string
	URL    string
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

type LLMConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int64
	Temperature float64
}

type ReminderConfig struct {
	Schedule string
	Window   time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Enabled 未配置 SMTP_HOST 时不发送提醒邮件
func (c SMTPConfig) Enabled() bool {
	return c.Host != ""
}

func (c SMTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

var requiredKeys = []string{"JWT_SECRET", "DATABASE_URL", "LLM_API_KEY"}

var supportedDrivers = map[string]bool{"postgres": true, "mysql": true, "sqlite": true}

// LoadConfig 读取 .env（存在时）和环境变量，校验必填项
func LoadConfig(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			if err := godotenv.Load(f); err != nil {
				return nil, fmt.Errorf("load %s: %w", f, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat %s: %w", f, err)
		}
	}

	v := viper.New()
	v.SetDefault("PORT", "3005")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("UPLOAD_DIR", "./uploads")
	v.SetDefault("LOG_DIR", "./log")
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("JWT_TTL", 7*24*time.Hour)
	v.SetDefault("LLM_MODEL", "gpt-4o-mini")
	v.SetDefault("LLM_MAX_TOKENS", 300)
	v.SetDefault("LLM_TEMPERATURE", 0.7)
	v.SetDefault("AI_STRICT_OWNERSHIP", false)
	v.SetDefault("REMINDER_CRON", "0 8 * * *")
	v.SetDefault("REMINDER_WINDOW", 24*time.Hour)
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_FROM", "noreply@studyhub.local")
	v.AutomaticEnv()

	var missing []string
	for _, key := range requiredKeys {
		if strings.TrimSpace(v.GetString(key)) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	driver := strings.ToLower(strings.TrimSpace(v.GetString("DB_DRIVER")))
	if !supportedDrivers[driver] {
		return nil, fmt.Errorf("invalid DB_DRIVER value %q", driver)
	}

	port := strings.TrimSpace(v.GetString("PORT"))
	if _, err := portValue(v, "PORT"); err != nil {
		return nil, err
	}

	ttl, err := cast.ToDurationE(v.Get("JWT_TTL"))
	if err != nil || ttl <= 0 {
		return nil, fmt.Errorf("invalid JWT_TTL value %q, must be a positive duration", v.GetString("JWT_TTL"))
	}

	maxTokens, err := cast.ToInt64E(v.Get("LLM_MAX_TOKENS"))
	if err != nil || maxTokens <= 0 {
		return nil, fmt.Errorf("invalid LLM_MAX_TOKENS value %q, must be a positive integer", v.GetString("LLM_MAX_TOKENS"))
	}

	temperature, err := cast.ToFloat64E(v.Get("LLM_TEMPERATURE"))
	if err != nil || temperature < 0 || temperature > 2 {
		return nil, fmt.Errorf("invalid LLM_TEMPERATURE value %q, must be between 0 and 2", v.GetString("LLM_TEMPERATURE"))
	}

	window, err := cast.ToDurationE(v.Get("REMINDER_WINDOW"))
	if err != nil || window <= 0 {
		return nil, fmt.Errorf("invalid REMINDER_WINDOW value %q, must be a positive duration", v.GetString("REMINDER_WINDOW"))
	}

	smtpPort, err := portValue(v, "SMTP_PORT")
	if err != nil {
		return nil, err
	}

	strict, err := cast.ToBoolE(v.Get("AI_STRICT_OWNERSHIP"))
	if err != nil {
		return nil, fmt.Errorf("invalid AI_STRICT_OWNERSHIP value %q", v.GetString("AI_STRICT_OWNERSHIP"))
	}

	cfg := &Config{
		Port:        port,
		CORSOrigins: splitList(v.GetString("CORS_ORIGINS")),
		UploadDir:   v.GetString("UPLOAD_DIR"),
		LogDir:      v.GetString("LOG_DIR"),
		Database: DatabaseConfig{
			Driver: driver,
			URL:    v.GetString("DATABASE_URL"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("JWT_SECRET"),
			TTL:    ttl,
		},
		LLM: LLMConfig{
			BaseURL:     strings.TrimSpace(v.GetString("LLM_BASE_URL")),
			APIKey:      v.GetString("LLM_API_KEY"),
			Model:       v.GetString("LLM_MODEL"),
			MaxTokens:   maxTokens,
			Temperature: temperature,
		},
		Reminder: ReminderConfig{
			Schedule: v.GetString("REMINDER_CRON"),
			Window:   window,
		},
		SMTP: SMTPConfig{
			Host:     strings.TrimSpace(v.GetString("SMTP_HOST")),
			Port:     smtpPort,
			Username: v.GetString("SMTP_USERNAME"),
			Password: v.GetString("SMTP_PASSWORD"),
			From:     v.GetString("SMTP_FROM"),
		},
		StrictOwnership: strict,
	}
	return cfg, nil
}

// portValue 端口必须是 1-65535 的整数
func portValue(v *viper.Viper, key string) (int, error) {
	port, err := cast.ToIntE(strings.TrimSpace(v.GetString(key)))
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("invalid %s value %q, must be a port between 1 and 65535", key, v.GetString(key))
	}
	return port, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
