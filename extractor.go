package bqathena

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/samuelzaleta/bigquery-athena/config"
	"github.com/samuelzaleta/bigquery-athena/session"
)

// Extractor reads the raw events of one run from the warehouse.
type Extractor interface {
	Extract(context.Context) ([]session.RawEvent, error)
}

// columns names the warehouse columns holding each part of an event.
type columns struct {
	timestamp string
	resource  string
	payload   string
}

type bigqueryExtractor struct {
	bq    *bigquery.Client
	query string
	cols  columns
}

func newBigQueryExtractor(ctx context.Context, cfg *config.Config) (Extractor, error) {
	project := cfg.GCPProject
	if project == "" {
		project = bigquery.DetectProjectID
	}

	var opts []option.ClientOption
	if cfg.GCPCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.GCPCredentialsFile))
	}

	bq, err := bigquery.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, xerrors.Errorf("failed to build bigquery client for %s: %w", project, err)
	}

	return &bigqueryExtractor{
		bq:    bq,
		query: selectAllQuery(cfg.BigQueryTable),
		cols: columns{
			timestamp: cfg.BigQueryTimestampField,
			resource:  cfg.BigQueryResourceField,
			payload:   cfg.BigQueryPayloadField,
		},
	}, nil
}

func selectAllQuery(table string) string {
	return fmt.Sprintf("SELECT * FROM `%s`", table)
}

func (e *bigqueryExtractor) Extract(ctx context.Context) ([]session.RawEvent, error) {
	l := log.Ctx(ctx)

	l.Info().Str("query", e.query).Msg("running bigquery query")

	it, err := e.bq.Query(e.query).Read(ctx)
	if err != nil {
		return nil, xerrors.Errorf("failed to run query %q: %w", e.query, err)
	}

	var events []session.RawEvent
	for {
		var row map[string]bigquery.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, xerrors.Errorf("failed to read row %d: %w", len(events), err)
		}

		ev, err := e.cols.event(row)
		if err != nil {
			return nil, xerrors.Errorf("failed to decode row %d: %w", len(events), err)
		}
		events = append(events, ev)
	}

	l.Info().Int("rows", len(events)).Msg("bigquery query completed")

	return events, nil
}

// event decodes one warehouse row. A missing timestamp is left zero for the
// transform to reject.
func (c columns) event(row map[string]bigquery.Value) (session.RawEvent, error) {
	var ev session.RawEvent

	if v, ok := row[c.timestamp]; ok && v != nil {
		ts, err := asTime(v)
		if err != nil {
			return ev, xerrors.Errorf("column %s: %w", c.timestamp, err)
		}
		ev.Timestamp = ts.UTC()
	}

	var err error
	if ev.Resource, err = asBag(row[c.resource]); err != nil {
		return ev, xerrors.Errorf("column %s: %w", c.resource, err)
	}
	if ev.Payload, err = asBag(row[c.payload]); err != nil {
		return ev, xerrors.Errorf("column %s: %w", c.payload, err)
	}

	return ev, nil
}

func asTime(v bigquery.Value) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999Z07:00", "2006-01-02 15:04:05.999999999"} {
			if t, err := time.Parse(layout, x); err == nil {
				return t, nil
			}
		}
		return time.Time{}, xerrors.Errorf("cannot parse %q as a timestamp", x)
	default:
		return time.Time{}, xerrors.Errorf("unexpected timestamp type %T", v)
	}
}

// asBag converts a RECORD or JSON column into a plain nested map.
func asBag(v bigquery.Value) (map[string]interface{}, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case map[string]bigquery.Value:
		return plainMap(x), nil
	case string:
		if x == "" {
			return nil, nil
		}
		var m map[string]interface{}
		if err := json.Unmarshal([]byte(x), &m); err != nil {
			return nil, xerrors.Errorf("failed to unmarshal json: %w", err)
		}
		return m, nil
	default:
		return nil, xerrors.Errorf("unexpected attribute bag type %T", v)
	}
}

func plainMap(m map[string]bigquery.Value) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = plainValue(v)
	}
	return out
}

func plainValue(v bigquery.Value) interface{} {
	switch x := v.(type) {
	case map[string]bigquery.Value:
		return plainMap(x)
	case []bigquery.Value:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = plainValue(e)
		}
		return out
	case *big.Rat:
		return x.RatString()
	default:
		return x
	}
}
