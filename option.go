package bqathena

import (
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/xerrors"
)

// Option configures a Pipeline.
type Option interface {
	apply(*pipeline) error
}

type optionFunc func(*pipeline) error

func (f optionFunc) apply(p *pipeline) error {
	return f(p)
}

// WithPrettyLogging configures the pipeline to print human friendly logs.
func WithPrettyLogging() Option {
	return optionFunc(func(p *pipeline) error {
		p.prettyLogging = true
		return nil
	})
}

// WithLogLevel sets the log level: trace, debug, info, warn, error, fatal or panic.
func WithLogLevel(level string) Option {
	return optionFunc(func(p *pipeline) error {
		l, err := zerolog.ParseLevel(level)
		if err != nil {
			return xerrors.Errorf("invalid log level %q: %w", level, err)
		}
		p.logLevel = l
		return nil
	})
}

// WithExtractor replaces the BigQuery source reader.
func WithExtractor(e Extractor) Option {
	return optionFunc(func(p *pipeline) error {
		p.extractor = e
		return nil
	})
}

// WithUploader replaces the S3 sink.
func WithUploader(u Uploader) Option {
	return optionFunc(func(p *pipeline) error {
		p.uploader = u
		return nil
	})
}

// WithArchive adds a second sink receiving a copy of every uploaded file.
func WithArchive(u Uploader) Option {
	return optionFunc(func(p *pipeline) error {
		p.archive = u
		return nil
	})
}

// WithCatalog replaces the Athena catalog loader.
func WithCatalog(c Catalog) Option {
	return optionFunc(func(p *pipeline) error {
		p.catalog = c
		return nil
	})
}

// WithNotifier reports every run result to n.
func WithNotifier(n Notifier) Option {
	return optionFunc(func(p *pipeline) error {
		p.notifier = n
		return nil
	})
}

// WithClock overrides the time source used to name uploaded objects.
func WithClock(now func() time.Time) Option {
	return optionFunc(func(p *pipeline) error {
		p.now = now
		return nil
	})
}
