package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config is the runtime configuration of the server.
type Config struct {
	Addr          string
	Path          string
	MaxBody       int64
	Notifications bool
	Debug         bool
	GreetPrefix   string
}

func defaultConfig() Config {
	return Config{
		Addr:        "127.0.0.1:8842",
		Path:        "/api",
		MaxBody:     1 << 20,
		GreetPrefix: "Hello ",
	}
}

const envPrefix = "RPCSERVE_"

// loadConfig reads defaults, then envFile, then the process environment.
// Variables already set in the environment win over the file, as with
// godotenv.Load. A missing envFile is only an error when required is set.
func loadConfig(envFile string, required bool) (Config, error) {
	fileVars := map[string]string{}
	if envFile != "" {
		vars, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			fileVars = vars
		case errors.Is(err, fs.ErrNotExist) && !required:
		default:
			return Config{}, fmt.Errorf("rpcserve: read %s: %w", envFile, err)
		}
	}
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileVars[key]
		return v, ok
	}
	return configFrom(lookup)
}

func configFrom(lookup func(string) (string, bool)) (Config, error) {
	cfg := defaultConfig()
	var errs []error

	if v, ok := lookup(envPrefix + "ADDR"); ok {
		cfg.Addr = v
	}
	if v, ok := lookup(envPrefix + "PATH"); ok {
		cfg.Path = v
	}
	if v, ok := lookup(envPrefix + "GREET_PREFIX"); ok {
		cfg.GreetPrefix = v
	}
	if v, ok := lookup(envPrefix + "MAX_BODY"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			errs = append(errs, fmt.Errorf("rpcserve: %sMAX_BODY: invalid size %q", envPrefix, v))
		} else {
			cfg.MaxBody = n
		}
	}
	for key, dst := range map[string]*bool{
		"NOTIFICATIONS": &cfg.Notifications,
		"DEBUG":         &cfg.Debug,
	} {
		v, ok := lookup(envPrefix + key)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("rpcserve: %s%s: invalid bool %q", envPrefix, key, v))
			continue
		}
		*dst = b
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("rpcserve: empty listen address"))
	}
	if len(c.Path) == 0 || c.Path[0] != '/' {
		errs = append(errs, fmt.Errorf("rpcserve: path %q must start with /", c.Path))
	}
	if c.MaxBody < 0 {
		errs = append(errs, fmt.Errorf("rpcserve: negative max body %d", c.MaxBody))
	}
	return errors.Join(errs...)
}
