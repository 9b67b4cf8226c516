package sms_notifier_config

import (
	"time"

	"github.com/NordCoder/Gatehouse/internal/obs"
	kafkarepo "github.com/NordCoder/Gatehouse/internal/repository/kafka"
)

type App struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type KafkaIn struct {
	Brokers       []string `mapstructure:"brokers"`
	Topic         string   `mapstructure:"topic"`
	GroupID       string   `mapstructure:"group_id"`
	FromBeginning bool     `mapstructure:"from_beginning"`
}

func (k *KafkaIn) AsConsumerConfig() *kafkarepo.ConsumerConfig {
	return &kafkarepo.ConsumerConfig{
		Brokers:       k.Brokers,
		Topic:         k.Topic,
		GroupID:       k.GroupID,
		FromBeginning: k.FromBeginning,
	}
}

// Gateway selects the SMS delivery backend: "log" writes to the log (dev),
// "http" posts to a carrier webhook.
type Gateway struct {
	Kind    string        `mapstructure:"kind"`
	URL     string        `mapstructure:"url"`
	APIKey  string        `mapstructure:"api_key"`
	From    string        `mapstructure:"from"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type Server struct {
	MetricsAddr string `mapstructure:"metrics_addr"`
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

type Config struct {
	App     App     `mapstructure:"app"`
	In      KafkaIn `mapstructure:"kafka_in"`
	Gateway Gateway `mapstructure:"gateway"`
	Server  Server  `mapstructure:"server"`
	OTEL    OTEL    `mapstructure:"otel"`
	Log     Log     `mapstructure:"log"`
}
