package main

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"restaurant/pkg/restaurant/infrastructure/amqp"
	"restaurant/pkg/restaurant/infrastructure/cache"
	"restaurant/pkg/restaurant/infrastructure/repository"
)

const appID = "restaurant"

type config struct {
	ServeHTTPAddress string `envconfig:"serve_http_address" default:":8080"`
	GRPCAddress      string `envconfig:"grpc_address"`
	LogLevel         string `envconfig:"log_level" default:"info"`

	DBDriver         string        `envconfig:"db_driver" default:"mysql"`
	DBHost           string        `envconfig:"db_host" default:"localhost"`
	DBPort           int           `envconfig:"db_port" default:"3306"`
	DBUser           string        `envconfig:"db_user" default:"root"`
	DBPassword       string        `envconfig:"db_password"`
	DBName           string        `envconfig:"db_name" default:"restaurant"`
	DBMaxConnections int           `envconfig:"db_max_connections" default:"10"`
	DBConnectTimeout time.Duration `envconfig:"db_connect_timeout" default:"5s"`

	RedisAddress  string        `envconfig:"redis_address"`
	RedisPassword string        `envconfig:"redis_password"`
	RedisDB       int           `envconfig:"redis_db" default:"0"`
	TableCacheTTL time.Duration `envconfig:"table_cache_ttl" default:"5m"`

	AMQPURL      string `envconfig:"amqp_url"`
	AMQPExchange string `envconfig:"amqp_exchange" default:"restaurant.orders"`

	StrictStatusTransitions bool          `envconfig:"strict_status_transitions" default:"false"`
	SubmitTimeout           time.Duration `envconfig:"submit_timeout" default:"10s"`
	SessionSendBuffer       int           `envconfig:"session_send_buffer" default:"64"`
	HealthCheckInterval     time.Duration `envconfig:"health_check_interval" default:"10s"`
}

func parseEnv() (*config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file loaded")
	}

	c := new(config)
	if err := envconfig.Process(appID, c); err != nil {
		return nil, errors.Wrap(err, "failed to parse env")
	}
	if c.DBDriver != repository.DriverMySQL && c.DBDriver != repository.DriverPgx {
		return nil, errors.Errorf("RESTAURANT_DB_DRIVER must be %q or %q", repository.DriverMySQL, repository.DriverPgx)
	}
	return c, nil
}

func (c *config) database() repository.Config {
	return repository.Config{
		Driver:         c.DBDriver,
		Host:           c.DBHost,
		Port:           c.DBPort,
		User:           c.DBUser,
		Password:       c.DBPassword,
		Name:           c.DBName,
		MaxConnections: c.DBMaxConnections,
		ConnectTimeout: c.DBConnectTimeout,
	}
}

func (c *config) redis() cache.Config {
	return cache.Config{Address: c.RedisAddress, Password: c.RedisPassword, DB: c.RedisDB}
}

func (c *config) broker() amqp.Config {
	return amqp.Config{URL: c.AMQPURL, Exchange: c.AMQPExchange}
}
