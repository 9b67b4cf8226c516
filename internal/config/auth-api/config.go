package auth_api_config

import (
	"time"

	"github.com/NordCoder/Gatehouse/internal/obs"

	pg "github.com/NordCoder/Gatehouse/internal/repository/postgres"
	redisrepo "github.com/NordCoder/Gatehouse/internal/repository/redis"
)

type App struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

func (a App) IsProd() bool { return a.Env == "prod" }

type Server struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
}

type OTEL struct {
	Enable       bool    `mapstructure:"enable"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

func (oc *OTEL) AsOTELConfig() *obs.OTELConfig {
	return &obs.OTELConfig{
		Enable:      oc.Enable,
		Endpoint:    oc.OTLPEndpoint,
		ServiceName: oc.ServiceName,
		SampleRatio: oc.SampleRatio,
	}
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func (lc *Log) AsLoggerConfig(app App) obs.LogConfig {
	return obs.LogConfig{
		Level:  lc.Level,
		Pretty: lc.Pretty,
		App:    app.Name,
		Env:    app.Env,
		Ver:    app.Version,
	}
}

type Auth struct {
	AccessSecret  string        `mapstructure:"access_secret"`
	RefreshSecret string        `mapstructure:"refresh_secret"`
	AccessTTL     time.Duration `mapstructure:"access_ttl"`
	RefreshTTL    time.Duration `mapstructure:"refresh_ttl"`
	CodeTTL       time.Duration `mapstructure:"code_ttl"`
	VerifiedTTL   time.Duration `mapstructure:"verified_ttl"`
	AdminAPIKey   string        `mapstructure:"admin_api_key"`
}

type RateLimit struct {
	AuthLimit  int           `mapstructure:"auth_limit"`
	AuthWindow time.Duration `mapstructure:"auth_window"`
	APILimit   int           `mapstructure:"api_limit"`
	APIWindow  time.Duration `mapstructure:"api_window"`
}

type Kafka struct {
	Brokers  []string `mapstructure:"brokers"`
	SMSTopic string   `mapstructure:"sms_topic"`
}

type Config struct {
	App       App              `mapstructure:"app"`
	Server    Server           `mapstructure:"server"`
	DB        pg.Config        `mapstructure:"db"`
	Redis     redisrepo.Config `mapstructure:"redis"`
	Kafka     Kafka            `mapstructure:"kafka"`
	OTEL      OTEL             `mapstructure:"otel"`
	Log       Log              `mapstructure:"log"`
	Auth      Auth             `mapstructure:"auth"`
	RateLimit RateLimit        `mapstructure:"rate_limit"`
}
