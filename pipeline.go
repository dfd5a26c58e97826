package bqathena

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"

	"github.com/samuelzaleta/bigquery-athena/config"
	"github.com/samuelzaleta/bigquery-athena/session"
)

// Pipeline transfers session logs from BigQuery to Athena.
type Pipeline interface {
	Run(context.Context) (*Result, error)
}

// New builds a Pipeline. Collaborators not supplied through options are
// built from cfg.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (Pipeline, error) {
	p := &pipeline{
		cfg:      cfg,
		logLevel: zerolog.InfoLevel,
		now:      time.Now,
	}

	for _, o := range opts {
		if err := o.apply(p); err != nil {
			return nil, err
		}
	}

	var w io.Writer = os.Stderr
	if p.prettyLogging {
		w = zerolog.ConsoleWriter{Out: os.Stderr}
	}
	p.logger = zerolog.New(w).Level(p.logLevel).With().Timestamp().Logger()

	if err := p.buildDefaults(ctx); err != nil {
		return nil, err
	}

	return p, nil
}

// MustNew is like New but panics on error.
func MustNew(ctx context.Context, cfg *config.Config, opts ...Option) Pipeline {
	p, err := New(ctx, cfg, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

type pipeline struct {
	cfg *config.Config

	extractor Extractor
	uploader  Uploader
	archive   Uploader
	catalog   Catalog
	notifier  Notifier

	logger        zerolog.Logger
	logLevel      zerolog.Level
	prettyLogging bool
	now           func() time.Time

	// mu serializes runs; the destination table is appended to.
	mu sync.Mutex
}

func (p *pipeline) buildDefaults(ctx context.Context) error {
	if p.extractor == nil {
		ex, err := newBigQueryExtractor(ctx, p.cfg)
		if err != nil {
			return err
		}
		p.extractor = ex
	}

	if p.uploader == nil || p.catalog == nil {
		awsCfg, err := loadAWSConfig(ctx, p.cfg)
		if err != nil {
			return err
		}
		if p.uploader == nil {
			p.uploader = newS3Uploader(s3.NewFromConfig(awsCfg), p.cfg.S3Bucket)
		}
		if p.catalog == nil {
			p.catalog = newAthenaCatalog(athena.NewFromConfig(awsCfg), p.cfg)
		}
	}

	if p.archive == nil && p.cfg.ArchiveBucket != "" {
		a, err := newGCSUploader(ctx, p.cfg.ArchiveBucket)
		if err != nil {
			return err
		}
		p.archive = a
	}

	if p.notifier == nil && p.cfg.SlackEnabled() {
		p.notifier = &SlackNotifier{Token: p.cfg.SlackToken, Channel: p.cfg.SlackChannel}
	}

	return nil
}

func loadAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return awsCfg, xerrors.Errorf("failed to load aws config for %s: %w", cfg.AWSRegion, err)
	}
	return awsCfg, nil
}

// objectKey names the uploaded file inside a folder unique to the run. The
// folder is what the staging table points at.
func objectKey(prefix string, t time.Time) (folder, key string) {
	t = t.UTC()
	folder = fmt.Sprintf("%s/%s_%06d/", prefix, t.Format("20060102_150405"), t.Nanosecond()/1000)
	return folder, folder + "data.csv"
}

// Run executes one extraction: read, transform, upload, load.
func (p *pipeline) Run(ctx context.Context) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	started := p.now()
	res := &Result{RunID: uuid.NewString(), StartedAt: started}

	l := p.logger.With().Str("run_id", res.RunID).Logger()
	ctx = l.WithContext(ctx)
	ctx = withRunID(withStartedTime(ctx, started), res.RunID)

	l.Info().Msg("transfer started")
	defer func() {
		runDuration.Observe(time.Since(started).Seconds())
		l.Info().Dur("elapsed", time.Since(started)).Msg("transfer finished")
	}()

	err := p.run(ctx, res)
	res.Error = err

	status := "succeeded"
	switch {
	case err != nil:
		status = "failed"
		l.Error().Err(err).Msg("transfer failed")
	case res.Object == "":
		status = "empty"
	}
	runsTotal.WithLabelValues(status).Inc()

	p.notify(ctx, res)

	return res, err
}

func (p *pipeline) run(ctx context.Context, res *Result) error {
	l := log.Ctx(ctx)

	events, err := p.extractor.Extract(ctx)
	if err != nil {
		return xerrors.Errorf("failed to extract: %w", err)
	}
	res.Events = len(events)
	eventsRead.Add(float64(len(events)))

	if len(events) == 0 {
		l.Info().Msg("no records found in BigQuery")
		return nil
	}

	sessions, err := session.Transform(events)
	if err != nil {
		return xerrors.Errorf("failed to transform: %w", err)
	}
	res.Sessions = len(sessions)

	l.Info().Int("events", res.Events).Int("sessions", res.Sessions).Msg("transformed events")

	started, _ := startedTimeFrom(ctx)
	folder, key := objectKey(p.cfg.S3Prefix, started)

	s := &sink{primary: p.uploader, archive: p.archive}
	object, archive, err := s.write(ctx, key, sessions)
	if err != nil {
		return xerrors.Errorf("failed to upload: %w", err)
	}
	if object == "" {
		return nil
	}
	res.Object, res.Archive = object, archive
	sessionsWritten.Add(float64(len(sessions)))

	location := fmt.Sprintf("s3://%s/%s", p.cfg.S3Bucket, folder)
	execs, err := p.catalog.Load(ctx, location, res.RunID)
	res.Executions = execs
	if err != nil {
		return xerrors.Errorf("failed to load into athena: %w", err)
	}

	return nil
}

func (p *pipeline) notify(ctx context.Context, res *Result) {
	if p.notifier == nil {
		return
	}

	if err := p.notifier.Notify(ctx, res); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("failed to notify run result")
	}
}
