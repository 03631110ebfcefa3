package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"

	"tedgrid/internal/dblib"
)

// ConnectionFlags are the command line overrides for a connection.
type ConnectionFlags struct {
	Database string
	Host     string
	Port     string
	Username string
	Password string
	Type     string
}

// DatabaseConfig is one named connection in connections.yaml.
type DatabaseConfig struct {
	Name     string            `yaml:"name"`
	Type     string            `yaml:"type"`
	Host     string            `yaml:"host,omitempty"`
	Port     string            `yaml:"port,omitempty"`
	User     string            `yaml:"user,omitempty"`
	Password string            `yaml:"password,omitempty"`
	DBName   string            `yaml:"dbname,omitempty"`
	Path     string            `yaml:"path,omitempty"`
	Params   map[string]string `yaml:"params,omitempty"`
}

// Config is the parsed connections file.
type Config struct {
	Connections []DatabaseConfig `yaml:"connections"`
}

func getConnectionsPath() (string, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "connections.yaml"), nil
}

// loadConfig reads connections.yaml. A missing file is an empty config.
func loadConfig() (*Config, error) {
	path, err := getConnectionsPath()
	if err != nil {
		return nil, err
	}
	return loadConfigFile(path)
}

func loadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not read connections file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("could not parse connections file %s: %w", path, err)
	}
	for i, c := range config.Connections {
		if c.Name == "" {
			return nil, fmt.Errorf("connection %d in %s has no name", i+1, path)
		}
	}
	return &config, nil
}

// GetDatabase returns the named connection.
func (c *Config) GetDatabase(name string) (DatabaseConfig, bool) {
	for _, db := range c.Connections {
		if db.Name == name {
			return db, true
		}
	}
	return DatabaseConfig{}, false
}

// detectDatabaseType guesses the backend from a bare name: files with a
// SQLite extension, or anything that exists on disk, are SQLite.
func detectDatabaseType(name string) dblib.DatabaseType {
	lower := strings.ToLower(name)
	for _, ext := range []string{".sqlite", ".sqlite3", ".db"} {
		if strings.HasSuffix(lower, ext) {
			return dblib.SQLite
		}
	}
	if st, err := os.Stat(name); err == nil && !st.IsDir() {
		return dblib.SQLite
	}
	return dblib.PostgreSQL
}

// merge applies command line overrides.
func (c DatabaseConfig) merge(flags ConnectionFlags) DatabaseConfig {
	if flags.Type != "" {
		c.Type = flags.Type
	}
	if flags.Database != "" {
		c.DBName = flags.Database
	}
	if flags.Host != "" {
		c.Host = flags.Host
	}
	if flags.Port != "" {
		c.Port = flags.Port
	}
	if flags.Username != "" {
		c.User = flags.Username
	}
	if flags.Password != "" {
		c.Password = flags.Password
	}
	return c
}

func currentUsername() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return os.Getenv("USER")
}

// DSN builds the driver connection string.
func (c DatabaseConfig) DSN() (string, dblib.DatabaseType, error) {
	dbType, err := dblib.ParseDatabaseType(c.Type)
	if err != nil {
		return "", 0, err
	}

	switch dbType {
	case dblib.SQLite:
		path := c.Path
		if path == "" {
			path = c.DBName
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return "", dbType, fmt.Errorf("sqlite file does not exist: %s", path)
		}
		dsn := "file:" + path + "?_foreign_keys=on"
		for k, v := range c.Params {
			dsn += "&" + k + "=" + v
		}
		return dsn, dbType, nil

	case dblib.PostgreSQL:
		parts := []string{"dbname=" + quotePQ(c.DBName)}
		if c.Host != "" {
			parts = append(parts, "host="+quotePQ(c.Host))
		}
		if c.Port != "" {
			parts = append(parts, "port="+quotePQ(c.Port))
		}
		username := c.User
		if username == "" {
			username = currentUsername()
		}
		parts = append(parts, "user="+quotePQ(username))
		if c.Password != "" {
			parts = append(parts, "password="+quotePQ(c.Password))
		}
		sslmode := "disable"
		if v, ok := c.Params["sslmode"]; ok {
			sslmode = v
		}
		parts = append(parts, "sslmode="+sslmode)
		return strings.Join(parts, " "), dbType, nil

	case dblib.MySQL:
		cfg := mysql.NewConfig()
		cfg.User = c.User
		if cfg.User == "" {
			cfg.User = currentUsername()
		}
		cfg.Passwd = c.Password
		cfg.Net = "tcp"
		host, port := c.Host, c.Port
		if host == "" {
			host = "localhost"
		}
		if port == "" {
			port = "3306"
		}
		cfg.Addr = net.JoinHostPort(host, port)
		cfg.DBName = c.DBName
		cfg.ParseTime = true
		// Report matched rows rather than changed rows, so rewriting a value
		// with itself is not mistaken for a lost row.
		cfg.ClientFoundRows = true
		if len(c.Params) > 0 {
			cfg.Params = c.Params
		}
		return cfg.FormatDSN(), dbType, nil
	}
	return "", dbType, fmt.Errorf("unsupported database type %v", dbType)
}

// quotePQ quotes a libpq keyword/value when it contains spaces or quotes.
func quotePQ(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// connectToDatabase opens the configured connection.
func connectToDatabase(ctx context.Context, config DatabaseConfig) (*dblib.SQLDriver, error) {
	dsn, dbType, err := config.DSN()
	if err != nil {
		return nil, err
	}
	return dblib.Open(ctx, dbType, dsn)
}

// resolveConnection finds the connection for name: a configured entry, a
// SQLite file, or a local server database tried as PostgreSQL then MySQL.
func resolveConnection(ctx context.Context, config *Config, name string, flags ConnectionFlags) (*dblib.SQLDriver, DatabaseConfig, error) {
	if dbConfig, ok := config.GetDatabase(name); ok {
		dbConfig = dbConfig.merge(flags)
		d, err := connectToDatabase(ctx, dbConfig)
		return d, dbConfig, err
	}

	if flags.Type != "" || detectDatabaseType(name) == dblib.SQLite {
		dbConfig := DatabaseConfig{Name: name, Type: flags.Type, DBName: name}
		if dbConfig.Type == "" {
			dbConfig.Type = dblib.SQLite.String()
		}
		dbConfig = dbConfig.merge(flags)
		if dbConfig.DBName == "" {
			dbConfig.DBName = name
		}
		d, err := connectToDatabase(ctx, dbConfig)
		return d, dbConfig, err
	}

	return tryFallbackConnections(ctx, name, flags)
}

func tryFallbackConnections(ctx context.Context, dbName string, flags ConnectionFlags) (*dblib.SQLDriver, DatabaseConfig, error) {
	candidates := []DatabaseConfig{
		{Name: dbName, Type: "postgres", DBName: dbName, Host: "localhost", Port: "5432"},
		{Name: dbName, Type: "mysql", DBName: dbName, Host: "localhost", Port: "3306", User: "root"},
	}

	var errs []error
	for _, c := range candidates {
		c = c.merge(flags)
		d, err := connectToDatabase(ctx, c)
		if err == nil {
			return d, c, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", c.Type, err))
	}
	return nil, DatabaseConfig{}, fmt.Errorf("failed to connect to %s: %w", dbName, errors.Join(errs...))
}
