// Package config holds the settings of a transfer run.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"golang.org/x/xerrors"
)

// Config holds all application configuration.
type Config struct {
	Port          string `env:"PORT" envDefault:"8080"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	PrettyLogging bool   `env:"PRETTY_LOGGING" envDefault:"false"`

	GCPProject         string `env:"GOOGLE_CLOUD_PROJECT"`
	GCPCredentialsFile string `env:"GOOGLE_CREDENTIALS_FILE"`

	// BigQueryTable is the fully qualified source table, project.dataset.table.
	BigQueryTable          string `env:"BIGQUERY_TABLE,required,notEmpty"`
	BigQueryTimestampField string `env:"BIGQUERY_TIMESTAMP_FIELD" envDefault:"timestamp"`
	BigQueryResourceField  string `env:"BIGQUERY_RESOURCE_FIELD" envDefault:"resource"`
	BigQueryPayloadField   string `env:"BIGQUERY_PAYLOAD_FIELD" envDefault:"jsonPayload"`

	AWSRegion          string `env:"AWS_REGION,required,notEmpty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`

	S3Bucket string `env:"S3_BUCKET,required,notEmpty"`
	S3Prefix string `env:"S3_PREFIX" envDefault:"temp_athena_load"`

	AthenaDatabase       string        `env:"ATHENA_DATABASE,required,notEmpty"`
	AthenaTable          string        `env:"ATHENA_TABLE,required,notEmpty"`
	AthenaWorkGroup      string        `env:"ATHENA_WORKGROUP"`
	AthenaOutputLocation string        `env:"ATHENA_OUTPUT_LOCATION"`
	AthenaStagingTable   string        `env:"ATHENA_STAGING_TABLE" envDefault:"temp_csv_source_table"`
	PollInterval         time.Duration `env:"ATHENA_POLL_INTERVAL" envDefault:"5s"`
	QueryTimeout         time.Duration `env:"ATHENA_QUERY_TIMEOUT" envDefault:"300s"`

	// ForwardSessionTimes carries duracion, tiempo_por_sesion and horafinal
	// into the destination table instead of blanking them.
	ForwardSessionTimes bool `env:"FORWARD_SESSION_TIMES" envDefault:"false"`

	ArchiveBucket string `env:"ARCHIVE_GCS_BUCKET"`

	SlackToken   string `env:"SLACK_TOKEN"`
	SlackChannel string `env:"SLACK_CHANNEL"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, xerrors.Errorf("failed to parse environment: %w", err)
	}

	if cfg.AthenaOutputLocation == "" {
		cfg.AthenaOutputLocation = fmt.Sprintf("s3://%s/athena_query_results/", cfg.S3Bucket)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadDotEnv reads filenames, .env by default, into the environment. Missing
// files are skipped; a file that fails to parse is an error.
func loadDotEnv(filenames ...string) error {
	if err := godotenv.Load(filenames...); err != nil && !xerrors.Is(err, os.ErrNotExist) {
		return xerrors.Errorf("failed to load dotenv file: %w", err)
	}
	return nil
}

// Validate checks values the environment parser cannot.
func (c *Config) Validate() error {
	if c.PollInterval <= 0 {
		return xerrors.Errorf("ATHENA_POLL_INTERVAL must be positive, got %s", c.PollInterval)
	}
	if c.QueryTimeout <= 0 {
		return xerrors.Errorf("ATHENA_QUERY_TIMEOUT must be positive, got %s", c.QueryTimeout)
	}
	if (c.AWSAccessKeyID == "") != (c.AWSSecretAccessKey == "") {
		return xerrors.New("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set together")
	}
	return nil
}

// SlackEnabled reports whether run notifications should be sent.
func (c *Config) SlackEnabled() bool {
	return c.SlackToken != "" && c.SlackChannel != ""
}
