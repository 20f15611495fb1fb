package config

import (
	"bytes"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppCfg struct {
	Name string
	Env  string
	Host string
	Port int
}

type AdminCfg struct {
	BearerToken string
}

type LogCfg struct {
	Level string
}

type DBCfg struct {
	DSN         string
	MaxOpen     int
	MaxIdle     int
	AutoMigrate bool
}

type RedisCfg struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

type MQCfg struct {
	URL      string
	Exchange string
}

type S3Cfg struct {
	Endpoint         string
	Region           string
	AccessKey        string
	SecretKey        string
	Bucket           string
	UsePathStyle     bool
	PresignExpireSec int
	SSE              string
}

type SunoCfg struct {
	BaseURL     string
	APIKey      string
	CallTimeout time.Duration
}

type CoverArtCfg struct {
	BaseURL     string
	APIKey      string
	CallTimeout time.Duration
}

type PollerCfg struct {
	Interval    time.Duration
	MaxAttempts int
	MinCallGap  time.Duration
	SnapshotTTL time.Duration
}

type TelemetryCfg struct {
	Enabled      bool
	OtlpEndpoint string
	SampleRatio  float64
}

type Config struct {
	App       AppCfg
	Admin     AdminCfg
	Log       LogCfg
	Database  DBCfg
	Redis     RedisCfg
	RabbitMQ  MQCfg
	S3        S3Cfg
	Suno      SunoCfg
	CoverArt  CoverArtCfg
	Poller    PollerCfg
	Telemetry TelemetryCfg
}

func Load() (*Config, error) {
	base := viper.New()
	base.SetConfigName("config")
	base.SetConfigType("yaml")
	base.AddConfigPath("./configs")
	base.AddConfigPath(".")
	base.AutomaticEnv()
	base.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	base.SetEnvPrefix("APP") // e.g. APP_APP_PORT -> app.port

	// Defaults apply whether or not a config file exists.
	setDefaults(base)

	if err := base.ReadInConfig(); err == nil {
		// Expand ${ENV} references in the file once, then parse the
		// expanded content with a fresh viper carrying the same env setup.
		path := base.ConfigFileUsed()
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		expanded := os.ExpandEnv(string(raw))

		v := viper.New()
		v.SetConfigType("yaml")
		if err := v.ReadConfig(bytes.NewBufferString(expanded)); err != nil {
			return nil, err
		}
		v.AutomaticEnv()
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.SetEnvPrefix("APP")
		setDefaults(v)

		cfg := new(Config)
		if err := v.Unmarshal(&cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	// No file: env + defaults only.
	cfg := new(Config)
	if err := base.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "spivanka")
	v.SetDefault("app.env", "debug")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("admin.bearerToken", "spivanka-admin")
	v.SetDefault("log.level", "info")
	v.SetDefault("redis.poolSize", 10)
	v.SetDefault("rabbitmq.exchange", "spivanka.events")
	v.SetDefault("s3.region", "auto")
	v.SetDefault("s3.usePathStyle", true)
	v.SetDefault("s3.presignExpireSec", 900)
	v.SetDefault("suno.baseURL", "https://api.sunoapi.org")
	v.SetDefault("suno.callTimeout", 30*time.Second)
	v.SetDefault("coverart.callTimeout", 60*time.Second)
	v.SetDefault("poller.interval", 5*time.Second)
	v.SetDefault("poller.maxAttempts", 60)
	v.SetDefault("poller.minCallGap", 500*time.Millisecond)
	v.SetDefault("poller.snapshotTTL", 24*time.Hour)
	v.SetDefault("telemetry.sampleRatio", 1.0)
}
