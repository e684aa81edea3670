package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// this is a pointer so that if someone attempts to use it before loading it will
// panic and force them to load it first.
// it is also private so that it cannot be modified after loading.
var _loaded *Config

// Config is the main configuration structure
type Config struct {
	Common Common `yaml:"common"`
}

// Store drivers understood by the server.
const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverNeo4j    = "neo4j"
	DriverMemory   = "memory"
)

// Load loads the configuration following proper precedence: defaults → config file → environment variables.
// An empty filename falls back to USERSVC_CONFIG_FILE and then usersvc.yaml.
// The merged result is validated, so a bad environment value is an error too.
func Load(filename string) error {
	cfg := defaultConfig
	_loaded = &cfg

	if filename == "" {
		filename = os.Getenv("USERSVC_CONFIG_FILE")
	}
	if filename == "" {
		filename = "usersvc.yaml"
	}

	if err := LoadFromFile(filename); err != nil {
		log.Printf("Failed to load config file: %v, using defaults", err)
	} else {
		log.Printf("Successfully loaded config from file: %s", filename)
	}

	// Environment variables have the highest priority
	ApplyEnvOverrides()

	if err := _loaded.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func LoadDefault() {
	config := defaultConfig
	_loaded = &config
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults
	cfg := defaultConfig

	// Merge YAML values over defaults
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config file %s: %w", filename, err)
	}

	_loaded = &cfg
	return nil
}

// Validate checks the values that cannot be defaulted away.
func (c *Config) Validate() error {
	switch c.Common.Store.Driver {
	case DriverMongo, DriverPostgres, DriverSQLite, DriverNeo4j, DriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.Common.Store.Driver)
	}
	if c.Common.Http.Port <= 0 || c.Common.Http.Port > 65535 {
		return fmt.Errorf("http port %d out of range", c.Common.Http.Port)
	}
	if c.Common.Http.MaxRequestSize <= 0 {
		return fmt.Errorf("max_request_size must be a positive integer")
	}
	if _, err := time.ParseDuration(c.Common.Store.OperationTimeout); err != nil {
		return fmt.Errorf("invalid store operation_timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.Common.Mongo.ConnectTimeout); err != nil {
		return fmt.Errorf("invalid mongo connect_timeout: %w", err)
	}
	return nil
}

// set sane defaults for all of the config options. when loading the config from
// the file, any options that are not set will be set to these defaults.
var defaultConfig = Config{
	Common: Common{
		Log: logConfig{
			Level:  "info",
			Format: "json",
		},
		Http: httpConfig{
			Host:           "0.0.0.0",
			Port:           3000,
			MaxRequestSize: 102400,
		},
		Store: storeConfig{
			Driver:           DriverMongo,
			OperationTimeout: "10s",
		},
		Postgres: postgresConfig{
			User:               "postgres",
			Password:           "postgres",
			Host:               "localhost",
			Port:               5432,
			Database:           "mydb",
			MaxOpenConnections: 10,
		},
		SQLite: sqliteConfig{
			Path: "usersvc.db",
		},
		Mongo: mongoConfig{
			URI:            "mongodb://mongo:27017",
			Database:       "mydb",
			Collection:     "users",
			ConnectTimeout: "10s",
		},
		Neo4j: neo4jConfig{
			URI:      "bolt://localhost:7687",
			Username: "neo4j",
			Password: "password",
			Database: "neo4j",
		},
	},
}

type Common struct {
	Log      logConfig      `yaml:"log"`
	Http     httpConfig     `yaml:"http"`
	Store    storeConfig    `yaml:"store"`
	Postgres postgresConfig `yaml:"postgres"`
	SQLite   sqliteConfig   `yaml:"sqlite"`
	Mongo    mongoConfig    `yaml:"mongo"`
	Neo4j    neo4jConfig    `yaml:"neo4j"`
}

type logConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type httpConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	MaxRequestSize int64  `yaml:"max_request_size"`
}

type storeConfig struct {
	Driver                string `yaml:"driver"`            // mongo, postgres, sqlite, neo4j or memory
	OperationTimeout      string `yaml:"operation_timeout"` // "0s" disables the per-call deadline
	RequireHealthyStartup bool   `yaml:"require_healthy_startup"`
}

// Timeout returns the parsed operation timeout. Validate has already rejected bad values.
func (c storeConfig) Timeout() time.Duration {
	d, _ := time.ParseDuration(c.OperationTimeout)
	return d
}

type postgresConfig struct {
	User               string `yaml:"user"`
	Password           string `yaml:"password"`
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	Database           string `yaml:"database"`
	MaxOpenConnections int    `yaml:"max_open_connections"`
}

func (c postgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		url.QueryEscape(c.Database),
	)
}

type sqliteConfig struct {
	Path string `yaml:"path"` // file path or ":memory:"
}

type mongoConfig struct {
	URI            string `yaml:"uri"`
	Database       string `yaml:"database"`
	Collection     string `yaml:"collection"`
	ConnectTimeout string `yaml:"connect_timeout"`
}

func (c mongoConfig) Timeout() time.Duration {
	d, _ := time.ParseDuration(c.ConnectTimeout)
	return d
}

type neo4jConfig struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// there should be a getter for each top level field in the config struct.
// these getters will panic if the config has not been loaded.

func Logger() logConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.Log
}

func Http() httpConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.Http
}

func Store() storeConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.Store
}

func Postgres() postgresConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.Postgres
}

func SQLite() sqliteConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.SQLite
}

func Mongo() mongoConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.Mongo
}

func Neo4j() neo4jConfig {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded.Common.Neo4j
}

// Get returns the full configuration
func Get() *Config {
	if _loaded == nil {
		panic("config not loaded - call Load() first")
	}
	return _loaded
}

func ApplyEnvOverrides() {
	if _loaded == nil {
		return
	}

	if level := os.Getenv("USERSVC_LOG_LEVEL"); level != "" {
		_loaded.Common.Log.Level = level
	}
	if format := os.Getenv("USERSVC_LOG_FORMAT"); format != "" {
		_loaded.Common.Log.Format = format
	}

	if httpHost := os.Getenv("USERSVC_HTTP_HOST"); httpHost != "" {
		_loaded.Common.Http.Host = httpHost
	}
	if httpPort := os.Getenv("USERSVC_HTTP_PORT"); httpPort != "" {
		if port, err := strconv.Atoi(httpPort); err == nil {
			_loaded.Common.Http.Port = port
		}
	}

	if driver := os.Getenv("USERSVC_STORE_DRIVER"); driver != "" {
		_loaded.Common.Store.Driver = driver
	}
	if timeout := os.Getenv("USERSVC_STORE_OPERATION_TIMEOUT"); timeout != "" {
		if _, err := time.ParseDuration(timeout); err == nil {
			_loaded.Common.Store.OperationTimeout = timeout
		}
	}
	if strict := os.Getenv("USERSVC_STORE_REQUIRE_HEALTHY_STARTUP"); strict != "" {
		if enabled, err := strconv.ParseBool(strict); err == nil {
			_loaded.Common.Store.RequireHealthyStartup = enabled
		}
	}

	if dbHost := os.Getenv("USERSVC_DB_HOST"); dbHost != "" {
		_loaded.Common.Postgres.Host = dbHost
	}
	if dbPort := os.Getenv("USERSVC_DB_PORT"); dbPort != "" {
		if port, err := strconv.Atoi(dbPort); err == nil {
			_loaded.Common.Postgres.Port = port
		}
	}
	if dbUser := os.Getenv("USERSVC_DB_USER"); dbUser != "" {
		_loaded.Common.Postgres.User = dbUser
	}
	if dbPassword := os.Getenv("USERSVC_DB_PASSWORD"); dbPassword != "" {
		_loaded.Common.Postgres.Password = dbPassword
	}
	if dbName := os.Getenv("USERSVC_DB_NAME"); dbName != "" {
		_loaded.Common.Postgres.Database = dbName
	}

	if sqlitePath := os.Getenv("USERSVC_SQLITE_PATH"); sqlitePath != "" {
		_loaded.Common.SQLite.Path = sqlitePath
	}

	if mongoURI := os.Getenv("USERSVC_MONGO_URI"); mongoURI != "" {
		_loaded.Common.Mongo.URI = mongoURI
	}
	if mongoDatabase := os.Getenv("USERSVC_MONGO_DATABASE"); mongoDatabase != "" {
		_loaded.Common.Mongo.Database = mongoDatabase
	}

	if neo4jURI := os.Getenv("USERSVC_NEO4J_URI"); neo4jURI != "" {
		_loaded.Common.Neo4j.URI = neo4jURI
	}
	if neo4jUsername := os.Getenv("USERSVC_NEO4J_USERNAME"); neo4jUsername != "" {
		_loaded.Common.Neo4j.Username = neo4jUsername
	}
	if neo4jPassword := os.Getenv("USERSVC_NEO4J_PASSWORD"); neo4jPassword != "" {
		_loaded.Common.Neo4j.Password = neo4jPassword
	}
	if neo4jDatabase := os.Getenv("USERSVC_NEO4J_DATABASE"); neo4jDatabase != "" {
		_loaded.Common.Neo4j.Database = neo4jDatabase
	}
}
