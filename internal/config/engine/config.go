package engine_config

import (
	"time"

	"github.com/Vaarun-C/UptimeMonitor/internal/obs"
	pginfra "github.com/Vaarun-C/UptimeMonitor/internal/repository/postgres"
)

type Sweep struct {
	Interval       time.Duration `mapstructure:"interval"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	Window         time.Duration `mapstructure:"window"`
	ShutdownGrace  time.Duration `mapstructure:"shutdown_grace"`
	MetricsAddr    string        `mapstructure:"metrics_addr"`
}

type Probe struct {
	Timeout         time.Duration `mapstructure:"timeout"`
	Method          string        `mapstructure:"method"`
	UserAgent       string        `mapstructure:"user_agent"`
	FollowRedirects bool          `mapstructure:"follow_redirects"`
	VerifyTLS       bool          `mapstructure:"verify_tls"`
}

type Kafka struct {
	Enable  bool     `mapstructure:"enable"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type SMTP struct {
	Enable         bool          `mapstructure:"enable"`
	Addr           string        `mapstructure:"addr"`
	From           string        `mapstructure:"from"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	UseTLS         bool          `mapstructure:"use_tls"`
	Timeout        time.Duration `mapstructure:"timeout"`
	SubjPrefix     string        `mapstructure:"subj_prefix"`
	ReportInterval time.Duration `mapstructure:"report_interval"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
	Env    string `mapstructure:"env"`
}

func (l Log) AsLoggerConfig() obs.LogConfig {
	return obs.LogConfig{
		Level:  l.Level,
		Pretty: l.Pretty,
		App:    "uptime-engine",
		Env:    l.Env,
	}
}

type OTEL struct {
	Enable       bool    `mapstructure:"enable"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
}

func (o OTEL) AsOTELConfig() *obs.OTELConfig {
	return &obs.OTELConfig{
		Enable:      o.Enable,
		Endpoint:    o.OTLPEndpoint,
		ServiceName: o.ServiceName,
		SampleRatio: o.SampleRatio,
	}
}

type Config struct {
	DB    pginfra.Config `mapstructure:"db"`
	Sweep Sweep          `mapstructure:"sweep"`
	Probe Probe          `mapstructure:"probe"`
	Kafka Kafka          `mapstructure:"kafka"`
	SMTP  SMTP           `mapstructure:"smtp"`
	OTEL  OTEL           `mapstructure:"otel"`
	Log   Log            `mapstructure:"log"`
}
