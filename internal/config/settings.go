package config

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/Funclose/Ef-HomeWork/pkg/errorbank"
)

const (
	// DefaultPath is the settings file read when no path is given.
	DefaultPath = "appsettings.json"

	// ConnectionKey names the connection string used by the store.
	ConnectionKey = "ConnectionStrings.DefaultConnection"

	readConnectionKey = "ConnectionStrings.ReadConnection"
	driverKey         = "Database.Driver"

	// Variables like EFSHOP_ConnectionStrings__DefaultConnection override
	// file keys. Key case must match the file.
	envPrefix = "EFSHOP_"
)

// ResolveConnection reads the settings file at path and returns the default
// connection it names.
func ResolveConnection(path string) (Connection, error) {
	settings, err := loadSettings(path)
	if err != nil {
		return Connection{}, err
	}
	return connectionFrom(settings)
}

func loadSettings(path string) (*koanf.Koanf, error) {
	if path == "" {
		path = DefaultPath
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), kjson.Parser()); err != nil {
		return nil, errorbank.Configuration("settings file unavailable",
			errorbank.WithDetail("path", path),
			errorbank.WithCause(err),
		)
	}

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.TrimPrefix(s, envPrefix), "__", ".")
	}), nil)
	if err != nil {
		return nil, errorbank.Configuration("environment overrides unreadable", errorbank.WithCause(err))
	}

	return k, nil
}

func connectionFrom(k *koanf.Koanf) (Connection, error) {
	conn := Connection{
		Driver: strings.ToLower(strings.TrimSpace(k.String(driverKey))),
		DSN:    strings.TrimSpace(k.String(ConnectionKey)),
	}
	if conn.Driver == "" {
		conn.Driver = getEnv("DB_DRIVER", "sqlite")
	}

	if conn.DSN == "" {
		return Connection{}, errorbank.Configuration("missing "+ConnectionKey, errorbank.WithDetail("key", ConnectionKey))
	}

	if err := validate.Struct(conn); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 && fieldErrs[0].Field() == "Driver" {
			return Connection{}, errorbank.Configuration("unsupported database driver: "+conn.Driver, errorbank.WithCause(err))
		}
		return Connection{}, errorbank.Configuration("invalid connection settings", errorbank.WithCause(err))
	}

	return conn, nil
}
