package config

import (
	"fmt"
	"net/url"

	"github.com/caarlos0/env/v11"
)

// Config is the full server configuration. Every field has a fallback
// default so the server never refuses to start on missing environment.
type Config struct {
	Addr   string `env:"QUIZWIRE_ADDR" envDefault:":8080"`
	DBPath string `env:"QUIZWIRE_DB" envDefault:"quizwire.db"`
	Broker Broker
}

// Broker holds the AMQP connection settings for the answer fanout queue.
type Broker struct {
	Host     string `env:"QUIZWIRE_AMQP_HOST" envDefault:"localhost"`
	Port     int    `env:"QUIZWIRE_AMQP_PORT" envDefault:"5672"`
	User     string `env:"QUIZWIRE_AMQP_USER" envDefault:"guest"`
	Password string `env:"QUIZWIRE_AMQP_PASSWORD" envDefault:"guest"`
	VHost    string `env:"QUIZWIRE_AMQP_VHOST" envDefault:"/"`
	Queue    string `env:"QUIZWIRE_AMQP_QUEUE" envDefault:"answers"`
}

// Load reads configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// URL renders the broker settings as an AMQP URI. The default vhost "/"
// maps to an empty path per the AMQP URI spec.
func (b Broker) URL() string {
	vhost := b.VHost
	if vhost == "/" {
		vhost = ""
	} else {
		vhost = url.PathEscape(vhost)
	}
	return fmt.Sprintf("amqp://%s:%s@%s:%d/%s", b.User, b.Password, b.Host, b.Port, vhost)
}
