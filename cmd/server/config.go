package main

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/cumbres7/dashboard/internal/keystone"
	"github.com/cumbres7/dashboard/internal/krypto"
	"github.com/cumbres7/dashboard/internal/web"
)

// defaultSpreadsheetURL is the published Cumbres 7 spreadsheet.
const defaultSpreadsheetURL = "https://docs.google.com/spreadsheets/d/e/2PACX-1vQnhCiDNliaGXEIXO3FFyWgZ0nLFeiaAp77ASDVZjQML8CzZTXsdhdgKyMxUyImmPAoRnirPWQxFY7K/pubhtml?widget=true&headers=true"

// httpConfig is the configuration for the HTTP server.
type httpConfig struct {
	addr            string
	readTimeout     time.Duration
	writeTimeout    time.Duration
	idleTimeout     time.Duration
	shutdownTimeout time.Duration
	viewDir         string
	cookieKeys      []krypto.Key
	server          web.ServerConfig
}

// graphqlConfig is the configuration for the members API client.
type graphqlConfig struct {
	settings keystone.Settings
	timeout  time.Duration
}

// config is the configuration for the server command.
type config struct {
	http     httpConfig
	graphql  graphqlConfig
	logLevel slog.Level
}

// defaultConfig returns a config with sane default values.
func defaultConfig() config {
	spreadsheetURL, err := url.Parse(defaultSpreadsheetURL)
	if err != nil {
		panic("invalid default spreadsheet url: " + err.Error())
	}

	return config{
		http: httpConfig{
			addr:            ":8888",
			readTimeout:     time.Second * 5,
			writeTimeout:    time.Second * 10,
			idleTimeout:     time.Second * 120,
			shutdownTimeout: time.Second * 15,
			server: web.ServerConfig{
				SecureCookie:   true,
				SpreadsheetURL: spreadsheetURL,
				LoginRate:      0.5,
				LoginBurst:     5,
			},
		},
		graphql: graphqlConfig{
			timeout: time.Second * 10,
		},
		logLevel: slog.LevelInfo,
	}
}

// requiredEnvKeys lists the environment variables without a default.
var requiredEnvKeys = []string{
	"HTTP_COOKIE_KEYS",
	"HTTP_CSRF_KEY",
	"GRAPHQL_ENDPOINT",
}

// envMap maps environment variable names to fields in the config struct.
var envMap = map[string]func(v string, c *config) error{
	"HTTP_ADDR": func(v string, c *config) error {
		c.http.addr = v
		return nil
	},
	"HTTP_READ_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.http.readTimeout, 0, math.MaxInt64)
	},
	"HTTP_WRITE_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.http.writeTimeout, 0, math.MaxInt64)
	},
	"HTTP_IDLE_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.http.idleTimeout, 0, math.MaxInt64)
	},
	"HTTP_SHUTDOWN_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.http.shutdownTimeout, 0, math.MaxInt64)
	},
	"HTTP_VIEW_DIR": func(v string, c *config) error {
		c.http.viewDir = v
		return nil
	},
	"HTTP_COOKIE_KEYS": func(v string, c *config) error {
		keys, err := krypto.ParseKeys(v)
		if err != nil {
			return err
		}

		// gorilla/sessions expects pairs of hash and block keys.
		if len(keys)%2 != 0 {
			return fmt.Errorf("got %d keys, need (hash, block) pairs", len(keys))
		}

		c.http.cookieKeys = keys
		return nil
	},
	"HTTP_CSRF_KEY": func(v string, c *config) error {
		return confKey(v, &c.http.server.CSRFKey)
	},
	"HTTP_SECURE_COOKIE": func(v string, c *config) error {
		return confBool(v, &c.http.server.SecureCookie)
	},
	"HTTP_LOGIN_RATE": func(v string, c *config) error {
		return confFloat(v, &c.http.server.LoginRate, math.SmallestNonzeroFloat64, math.MaxFloat64)
	},
	"HTTP_LOGIN_BURST": func(v string, c *config) error {
		return confInt(v, &c.http.server.LoginBurst, 1, math.MaxInt)
	},
	"GRAPHQL_ENDPOINT": func(v string, c *config) error {
		return confURL(v, &c.graphql.settings.Endpoint, "http", "https")
	},
	"GRAPHQL_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.graphql.timeout, time.Millisecond, math.MaxInt64)
	},
	"GRAPHQL_TOKEN": func(v string, c *config) error {
		c.graphql.settings.Token = krypto.NewSecret(v)
		return nil
	},
	"DASHBOARD_SPREADSHEET_URL": func(v string, c *config) error {
		return confURL(v, &c.http.server.SpreadsheetURL, "https")
	},
	"LOG_LEVEL": func(v string, c *config) error {
		return c.logLevel.UnmarshalText([]byte(v))
	},
}

// configFromEnv returns a config with values from the environment. It falls
// back to default values for any missing environment variables.
//
// It does a best effort to validate provided values, so that mistakes are
// caught ASAP. However, there is no guarantee that the returned config
// is valid and will work.
func configFromEnv() (config, error) {
	c := defaultConfig()

	var errs []error
	for _, key := range requiredEnvKeys {
		if _, ok := os.LookupEnv(key); !ok {
			errs = append(errs, fmt.Errorf("missing required env variable %s", key))
		}
	}

	for key, mf := range envMap {
		if val, ok := os.LookupEnv(key); ok {
			if err := mf(val, &c); err != nil {
				errs = append(errs, fmt.Errorf("invalid env variable %s: %w", key, err))
			}
		}
	}

	return c, errors.Join(errs...)
}

// confDuration attempts to parse v into tgt and checks if the result is in
// the provided range (inclusive).
func confDuration(v string, tgt *time.Duration, min, max time.Duration) error {
	dur, err := time.ParseDuration(v)
	if err != nil {
		return err
	}

	if dur < min || dur > max {
		return fmt.Errorf("duration %s not in range [%s, %s] (inclusive)", dur, min, max)
	}

	*tgt = dur

	return nil
}

func confInt(v string, tgt *int, min, max int) error {
	i, err := strconv.Atoi(v)
	if err != nil {
		return err
	}

	if i < min || i > max {
		return fmt.Errorf("%d not in range [%d, %d] (inclusive)", i, min, max)
	}

	*tgt = i

	return nil
}

func confFloat(v string, tgt *float64, min, max float64) error {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return err
	}

	if f < min || f > max {
		return fmt.Errorf("%g not in range [%g, %g] (inclusive)", f, min, max)
	}

	*tgt = f

	return nil
}

func confBool(v string, tgt *bool) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}

	*tgt = b

	return nil
}

func confKey(v string, tgt *krypto.Key) error {
	k, err := krypto.ParseKey(v)
	if err != nil {
		return err
	}

	*tgt = k

	return nil
}

// confURL parses v as an absolute URL with one of the given schemes.
func confURL(v string, tgt **url.URL, schemes ...string) error {
	u, err := url.Parse(v)
	if err != nil {
		return err
	}

	if u.Host == "" {
		return fmt.Errorf("url %q has no host", v)
	}

	for _, s := range schemes {
		if u.Scheme == s {
			*tgt = u
			return nil
		}
	}

	return fmt.Errorf("url %q has scheme %q, want one of %v", v, u.Scheme, schemes)
}
