package sweeper_config

import (
	"time"

	"github.com/NordCoder/Gatehouse/internal/obs"
	pg "github.com/NordCoder/Gatehouse/internal/repository/postgres"
)

type App struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type Sweep struct {
	Interval    time.Duration `mapstructure:"interval"`
	MetricsAddr string        `mapstructure:"metrics_addr"`
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
	App   App       `mapstructure:"app"`
	DB    pg.Config `mapstructure:"db"`
	Sweep Sweep     `mapstructure:"sweep"`
	Log   Log       `mapstructure:"log"`
}
