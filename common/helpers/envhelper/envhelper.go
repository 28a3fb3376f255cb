package envhelper

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Environment struct {
	CHAIN_ID         uint
	ETH_RPC_HTTP     string
	SALE_CONTRACT    string
	ROUTER_CONTRACT  string
	TOKEN_CONTRACT   string
	WALLET_PRIV_KEY  string
	NATIVE_FIAT_RATE string

	SYNC_INTERVAL_SECONDS uint
	CONFIRM_POLL_SECONDS  uint
	LEADERBOARD_PAGE_SIZE uint
	SITE_ORIGIN           string
	HTTP_PORT             uint
	LOG_LEVEL             string
	LOG_FORMAT            string

	POSTGRES_HOST     string
	POSTGRES_PORT     string
	POSTGRES_USER     string
	POSTGRES_PASSWORD string
	POSTGRES_DB_NAME  string
	POSTGRES_SSL_MODE string

	KAFKA_SERVER          string
	KAFKA_PURCHASES_TOPIC string

	REDIS_SERVER string
}

var env *Environment

func GetEnv() (*Environment, error) {
	if env != nil {
		return env, nil
	}

	env = &Environment{}
	err := load()
	if err != nil {
		env = nil
		return nil, err
	}
	return env, nil
}

// PostgresEnabled reports whether the purchase journal should be wired.
func (e *Environment) PostgresEnabled() bool {
	return e.POSTGRES_HOST != ""
}

func (e *Environment) KafkaEnabled() bool {
	return e.KAFKA_SERVER != ""
}

func (e *Environment) RedisEnabled() bool {
	return e.REDIS_SERVER != ""
}

const _CHAIN_ID = "CHAIN_ID"
const _ETH_RPC_HTTP = "ETH_RPC_HTTP"
const _SALE_CONTRACT = "SALE_CONTRACT"
const _ROUTER_CONTRACT = "ROUTER_CONTRACT"
const _TOKEN_CONTRACT = "TOKEN_CONTRACT"
const _WALLET_PRIV_KEY = "WALLET_PRIV_KEY"
const _NATIVE_FIAT_RATE = "NATIVE_FIAT_RATE"

const _SYNC_INTERVAL_SECONDS = "SYNC_INTERVAL_SECONDS"
const _CONFIRM_POLL_SECONDS = "CONFIRM_POLL_SECONDS"
const _LEADERBOARD_PAGE_SIZE = "LEADERBOARD_PAGE_SIZE"
const _SITE_ORIGIN = "SITE_ORIGIN"
const _HTTP_PORT = "HTTP_PORT"
const _LOG_LEVEL = "LOG_LEVEL"
const _LOG_FORMAT = "LOG_FORMAT"

const _POSTGRES_HOST = "POSTGRES_HOST"
const _POSTGRES_PORT = "POSTGRES_PORT"
const _POSTGRES_USER = "POSTGRES_USER"
const _POSTGRES_PASSWORD = "POSTGRES_PASSWORD"
const _POSTGRES_DB_NAME = "POSTGRES_DB_NAME"
const _POSTGRES_SSL_MODE = "POSTGRES_SSL_MODE"

const _KAFKA_SERVER = "KAFKA_SERVER"
const _KAFKA_PURCHASES_TOPIC = "KAFKA_PURCHASES_TOPIC"

const _REDIS_SERVER = "REDIS_SERVER"

func load() error {
	godotenv.Load()

	chainID, err := strconv.Atoi(os.Getenv(_CHAIN_ID))
	if err != nil || chainID <= 0 {
		return buildLoadingEnvError(_CHAIN_ID)
	}
	env.CHAIN_ID = uint(chainID)

	env.ETH_RPC_HTTP = os.Getenv(_ETH_RPC_HTTP)
	if env.ETH_RPC_HTTP == "" {
		return buildLoadingEnvError(_ETH_RPC_HTTP)
	}

	env.SALE_CONTRACT = os.Getenv(_SALE_CONTRACT)
	if env.SALE_CONTRACT == "" {
		return buildLoadingEnvError(_SALE_CONTRACT)
	}

	env.ROUTER_CONTRACT = os.Getenv(_ROUTER_CONTRACT)
	if env.ROUTER_CONTRACT == "" {
		return buildLoadingEnvError(_ROUTER_CONTRACT)
	}

	env.TOKEN_CONTRACT = os.Getenv(_TOKEN_CONTRACT)
	if env.TOKEN_CONTRACT == "" {
		return buildLoadingEnvError(_TOKEN_CONTRACT)
	}

	//optional: without a key the service runs read-only
	env.WALLET_PRIV_KEY = os.Getenv(_WALLET_PRIV_KEY)
	env.NATIVE_FIAT_RATE = getOr(_NATIVE_FIAT_RATE, "3000")
	env.SITE_ORIGIN = getOr(_SITE_ORIGIN, "http://localhost:3000")
	env.LOG_LEVEL = getOr(_LOG_LEVEL, "info")
	env.LOG_FORMAT = getOr(_LOG_FORMAT, "console")

	if env.SYNC_INTERVAL_SECONDS, err = getUintOr(_SYNC_INTERVAL_SECONDS, 30); err != nil {
		return err
	}
	if env.CONFIRM_POLL_SECONDS, err = getUintOr(_CONFIRM_POLL_SECONDS, 2); err != nil {
		return err
	}
	if env.LEADERBOARD_PAGE_SIZE, err = getUintOr(_LEADERBOARD_PAGE_SIZE, 10); err != nil {
		return err
	}
	if env.HTTP_PORT, err = getUintOr(_HTTP_PORT, 8080); err != nil {
		return err
	}

	env.POSTGRES_HOST = os.Getenv(_POSTGRES_HOST)
	if env.POSTGRES_HOST != "" {
		env.POSTGRES_PORT = os.Getenv(_POSTGRES_PORT)
		if env.POSTGRES_PORT == "" {
			return buildLoadingEnvError(_POSTGRES_PORT)
		}

		env.POSTGRES_DB_NAME = os.Getenv(_POSTGRES_DB_NAME)
		if env.POSTGRES_DB_NAME == "" {
			return buildLoadingEnvError(_POSTGRES_DB_NAME)
		}

		env.POSTGRES_USER = os.Getenv(_POSTGRES_USER)
		if env.POSTGRES_USER == "" {
			return buildLoadingEnvError(_POSTGRES_USER)
		}

		env.POSTGRES_PASSWORD = os.Getenv(_POSTGRES_PASSWORD)
		env.POSTGRES_SSL_MODE = getOr(_POSTGRES_SSL_MODE, "disable")
	}

	env.KAFKA_SERVER = os.Getenv(_KAFKA_SERVER)
	if env.KAFKA_SERVER != "" {
		env.KAFKA_PURCHASES_TOPIC = os.Getenv(_KAFKA_PURCHASES_TOPIC)
		if env.KAFKA_PURCHASES_TOPIC == "" {
			return buildLoadingEnvError(_KAFKA_PURCHASES_TOPIC)
		}
	}

	env.REDIS_SERVER = os.Getenv(_REDIS_SERVER)

	return nil
}

func getOr(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getUintOr(key string, fallback uint) (uint, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, buildLoadingEnvError(key)
	}
	return uint(n), nil
}

func buildLoadingEnvError(key string) error {
	return fmt.Errorf("error with variable: %s", key)
}
