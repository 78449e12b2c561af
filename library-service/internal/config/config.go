package config

import (
	"cmp"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

const (
	defaultAddr        = "localhost"
	defaultPort        = 8080
	defaultDBDsn       = "mongodb://localhost:27017/lms_database"
	defaultMigratePath = "migrations"
	defaultTokenTTL    = 24 * time.Hour
	defaultFinePerDay  = 5
)

type Config struct {
	Addr          string
	Debug         bool
	DBDsn         string
	MigratePath   string
	JWTSecret     string `json:"-"`
	TokenTTL      time.Duration
	RedisAddr     string
	RedisPassword string `json:"-"`
	FinePerDay    int
	AdminKey      string `json:"-"`
}

// fileConfig is the optional YAML layer. It sits below flags and env.
type fileConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	Debug         bool   `yaml:"debug"`
	DBDsn         string `yaml:"dbDsn"`
	MigratePath   string `yaml:"migratePath"`
	JWTSecret     string `yaml:"jwtSecret"`
	TokenTTL      string `yaml:"tokenTTL"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	FinePerDay    int    `yaml:"finePerDay"`
	AdminKey      string `yaml:"adminKey"`
}

func ReadConfig() (*Config, error) {
	return Parse(os.Args[1:], os.Getenv)
}

// Parse builds the config from command line args, the environment and an
// optional YAML file. Precedence: env, explicit flag, file, flag default.
func Parse(args []string, getenv func(string) string) (*Config, error) {
	var host, dbDsn, migratePath, secret, ttl, redisAddr, redisPass, adminKey, cfgPath string
	var port, finePerDay int
	var debug bool

	fs := flag.NewFlagSet("library-service", flag.ContinueOnError)
	fs.StringVar(&host, "addr", defaultAddr, "flag to set the server startup host")
	fs.IntVar(&port, "port", defaultPort, "flag to set the server startup port")
	fs.BoolVar(&debug, "debug", false, "flag to set Debug logger level")
	fs.StringVar(&dbDsn, "db", defaultDBDsn, "database connection address (mongodb://, postgres:// or memory://)")
	fs.StringVar(&migratePath, "m", defaultMigratePath, "path to migrations")
	fs.StringVar(&secret, "jwt-secret", "", "secret used to sign access tokens")
	fs.StringVar(&ttl, "token-ttl", defaultTokenTTL.String(), "access token lifetime")
	fs.StringVar(&redisAddr, "redis", "", "redis address for token revocation, in-memory when empty")
	fs.StringVar(&redisPass, "redis-password", "", "redis password")
	fs.IntVar(&finePerDay, "fine", defaultFinePerDay, "overdue fine per day")
	fs.StringVar(&adminKey, "admin-key", "", "registration key that grants the admin role, disabled when empty")
	fs.StringVar(&cfgPath, "config", "", "path to a YAML config file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
	given := func(name, val string) string {
		if explicit[name] {
			return val
		}
		return ""
	}

	var file fileConfig
	if path := cmp.Or(getenv("CONFIG_PATH"), cfgPath); path != "" {
		var err error
		if file, err = loadFile(path); err != nil {
			return nil, err
		}
	}
	fileInt := func(v int) string {
		if v == 0 {
			return ""
		}
		return strconv.Itoa(v)
	}

	host = cmp.Or(getenv("SERVER_HOST"), given("addr", host), file.Host, host)
	p := cmp.Or(getenv("SERVER_PORT"), given("port", strconv.Itoa(port)), fileInt(file.Port), strconv.Itoa(port))
	port, err := strconv.Atoi(p)
	if err != nil {
		return nil, fmt.Errorf("invalid port %q: %w", p, err)
	}
	if d := getenv("DEBUG"); d != "" {
		if debug, err = strconv.ParseBool(d); err != nil {
			return nil, fmt.Errorf("invalid DEBUG %q: %w", d, err)
		}
	} else if !explicit["debug"] {
		debug = file.Debug
	}
	dbDsn = cmp.Or(getenv("DB_DSN"), given("db", dbDsn), file.DBDsn, dbDsn)
	migratePath = cmp.Or(getenv("MIGRATE_PATH"), given("m", migratePath), file.MigratePath, migratePath)
	secret = cmp.Or(getenv("JWT_SECRET"), secret, file.JWTSecret)
	ttl = cmp.Or(getenv("TOKEN_TTL"), given("token-ttl", ttl), file.TokenTTL, ttl)
	tokenTTL, err := time.ParseDuration(ttl)
	if err != nil {
		return nil, fmt.Errorf("invalid token ttl %q: %w", ttl, err)
	}
	redisAddr = cmp.Or(getenv("REDIS_ADDR"), redisAddr, file.RedisAddr)
	redisPass = cmp.Or(getenv("REDIS_PASSWORD"), redisPass, file.RedisPassword)
	f := cmp.Or(getenv("FINE_PER_DAY"), given("fine", strconv.Itoa(finePerDay)), fileInt(file.FinePerDay), strconv.Itoa(finePerDay))
	if finePerDay, err = strconv.Atoi(f); err != nil {
		return nil, fmt.Errorf("invalid fine per day %q: %w", f, err)
	}
	adminKey = cmp.Or(getenv("ADMIN_KEY"), adminKey, file.AdminKey)

	cfg := &Config{
		Addr:          fmt.Sprintf("%s:%d", host, port),
		Debug:         debug,
		DBDsn:         dbDsn,
		MigratePath:   migratePath,
		JWTSecret:     secret,
		TokenTTL:      tokenTTL,
		RedisAddr:     redisAddr,
		RedisPassword: redisPass,
		FinePerDay:    finePerDay,
		AdminKey:      adminKey,
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("port %d out of range", port)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var result *multierror.Error
	if c.JWTSecret == "" {
		result = multierror.Append(result, errors.New("jwt secret is required (-jwt-secret or JWT_SECRET)"))
	}
	if c.TokenTTL <= 0 {
		result = multierror.Append(result, fmt.Errorf("token ttl must be positive, got %s", c.TokenTTL))
	}
	if c.FinePerDay <= 0 {
		result = multierror.Append(result, fmt.Errorf("fine per day must be positive, got %d", c.FinePerDay))
	}
	if c.DBDsn == "" {
		result = multierror.Append(result, errors.New("database dsn is required"))
	}
	return result.ErrorOrNil()
}

func loadFile(path string) (fileConfig, error) {
	var fc fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse config: %w", err)
	}
	return fc, nil
}
