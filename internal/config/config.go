// Package config loads the INI configuration file described in spec.md §6
// (component C6 of SPEC_FULL.md). It is an external collaborator: the core
// (internal/scalar, internal/geometry, internal/dedup, internal/store,
// internal/coordinator) never imports this package — main wires a plain
// Config struct into the core instead.
package config

import (
	"fmt"

	"gopkg.in/ini.v1"
)

// Config is the fully parsed, typed configuration for one worker process.
type Config struct {
	ClientID      int32
	BatchID       int32
	PrecisionBits int
	PointDigits   int
	PrintDigits   int
	MaxIterations int
	Epsilon       string

	SeedFile           string
	SeedFileLineBuffer int

	UpdateIntervalSec     int
	CheckpointIntervalSec int
	BenchmarkTimeSec      int

	MaxPointCache int

	WritePointsToFile bool
	OutputFilename    string

	StatusPort int

	Schema SchemaConfig
	DB     DBConfig
}

// SchemaConfig names the tables and column shapes the store operates on
// (spec.md §6 mysql_schema; read here under the pg_schema section since this
// port targets Postgres — see DESIGN.md's Open Question decisions).
type SchemaConfig struct {
	TableWorking string
	TableKnown   string
	TableStatus  string

	PointCharDigits  int
	DecimalPrecision int
	DecimalScale     int
}

// DBConfig is the Postgres connection (spec.md §6 mysql section, read under
// postgres).
type DBConfig struct {
	Server   string
	User     string
	Password string
	Database string
}

// Load reads path and returns a Config, or a Configuration error per spec.md
// §7 (fatal at startup) when the file cannot be read or one of the keys
// checked below is missing or invalid. Every other key has a default, and a
// value for such a key that does not parse is not reported: the default is
// used in its place.
func Load(path string) (*Config, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	app := f.Section("app")
	schema := f.Section("pg_schema")
	db := f.Section("postgres")

	cfg := &Config{
		ClientID:              int32(app.Key("CLIENT_ID").MustInt(-1)),
		BatchID:               int32(app.Key("BATCH_ID").MustInt(-1)),
		PrecisionBits:         app.Key("GMP_PRECISION_BITS").MustInt(0),
		PointDigits:           app.Key("STR_POINT_DIGITS").MustInt(0),
		PrintDigits:           app.Key("PRINT_DIGITS").MustInt(6),
		MaxIterations:         app.Key("MAX_ITERATIONS").MustInt(0),
		Epsilon:               app.Key("STR_EPSILON").String(),
		SeedFile:              app.Key("STARTING_POINTS_FILE").String(),
		SeedFileLineBuffer:    app.Key("STARTING_POINTS_FILE_LINE_BUFFER").MustInt(4096),
		UpdateIntervalSec:     app.Key("UPDATE_INTERVAL_SEC").MustInt(0),
		CheckpointIntervalSec: app.Key("CHECKPOINT_INTERVAL_SEC").MustInt(0),
		BenchmarkTimeSec:      app.Key("BENCHMARK_TIME_SEC").MustInt(0),
		MaxPointCache:         app.Key("MAX_POINT_CACHE").MustInt(0),
		WritePointsToFile:     app.Key("WRITE_POINTS_TO_FILE").MustBool(false),
		OutputFilename:        app.Key("OUTPUT_FILENAME").String(),
		StatusPort:            app.Key("STATUS_PORT").MustInt(0),

		Schema: SchemaConfig{
			TableWorking:     schema.Key("DB_TABLE_NAME_WORKING").MustString("points_working"),
			TableKnown:       schema.Key("DB_TABLE_NAME_KNOWN").MustString("points_known"),
			TableStatus:      schema.Key("DB_TABLE_NAME_STATUS").MustString("run_status"),
			PointCharDigits:  schema.Key("DB_POINT_CHAR_DIGITS").MustInt(128),
			DecimalPrecision: schema.Key("DB_POINT_DECIMAL_DIGITS_PRECISION").MustInt(65),
			DecimalScale:     schema.Key("DB_POINT_DECIMAL_DIGITS_SCALE").MustInt(30),
		},
		DB: DBConfig{
			Server:   db.Key("DB_SERVER").String(),
			User:     db.Key("DB_USER").String(),
			Password: db.Key("DB_PASSWORD").String(),
			Database: db.Key("DB_DATABASE_NAME").String(),
		},
	}

	if cfg.ClientID < 0 {
		return nil, fmt.Errorf("config: app.CLIENT_ID is required")
	}
	if cfg.BatchID < 0 {
		return nil, fmt.Errorf("config: app.BATCH_ID is required")
	}
	if cfg.PrecisionBits <= 0 {
		return nil, fmt.Errorf("config: app.GMP_PRECISION_BITS must be positive")
	}
	if cfg.PointDigits <= 0 {
		return nil, fmt.Errorf("config: app.STR_POINT_DIGITS must be positive")
	}
	if cfg.Epsilon == "" {
		return nil, fmt.Errorf("config: app.STR_EPSILON is required")
	}
	if cfg.DB.Server == "" || cfg.DB.Database == "" {
		return nil, fmt.Errorf("config: postgres.DB_SERVER and DB_DATABASE_NAME are required")
	}

	return cfg, nil
}

// IsRoot reports whether this process is the root worker (client_id 0).
func (c *Config) IsRoot() bool { return c.ClientID == 0 }

// ConnString builds a libpq connection string from DBConfig.
func (c DBConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s", c.User, c.Password, c.Server, c.Database)
}
