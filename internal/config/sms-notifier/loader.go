package sms_notifier_config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		_ = v.ReadInConfig()
	}

	v.SetDefault("app.name", "sms-notifier")
	v.SetDefault("app.env", "dev")

	v.SetDefault("kafka_in.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka_in.topic", "sms.outbound")
	v.SetDefault("kafka_in.group_id", "sms-notifier")
	v.SetDefault("kafka_in.from_beginning", false)

	v.SetDefault("gateway.kind", "log")
	v.SetDefault("gateway.timeout", "5s")

	v.SetDefault("server.metrics_addr", ":9102")

	v.SetDefault("otel.enable", false)
	v.SetDefault("otel.service_name", "sms-notifier")
	v.SetDefault("otel.sample_ratio", 1.0)
	v.SetDefault("otel.otlp_endpoint", "localhost:4317")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.Gateway.Kind == "http" && cfg.Gateway.URL == "" {
		return nil, errors.New("gateway.url is required for the http gateway")
	}
	return &cfg, nil
}
