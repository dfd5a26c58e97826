package bqathena

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/athena/types"
	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"

	"github.com/samuelzaleta/bigquery-athena/config"
	"github.com/samuelzaleta/bigquery-athena/session"
)

// ErrQueryTimeout is returned when a query does not reach a terminal state in time.
var ErrQueryTimeout = xerrors.New("athena query timed out")

// QueryError reports a query that ended FAILED or CANCELLED.
type QueryError struct {
	ID     string
	State  string
	Reason string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("athena query %s ended %s: %s", e.ID, e.State, e.Reason)
}

// Catalog registers an uploaded file and merges it into the destination table.
type Catalog interface {
	Load(ctx context.Context, location, runID string) ([]Execution, error)
}

// Execution is one statement submitted to the query engine.
type Execution struct {
	Statement string
	ID        string
	State     string
}

// athenaAPI is the part of the Athena client the catalog uses.
type athenaAPI interface {
	StartQueryExecution(context.Context, *athena.StartQueryExecutionInput, ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error)
	GetQueryExecution(context.Context, *athena.GetQueryExecutionInput, ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error)
}

type athenaCatalog struct {
	client athenaAPI

	database       string
	table          string
	stagingPrefix  string
	workGroup      string
	outputLocation string
	forwardTimes   bool

	interval time.Duration
	timeout  time.Duration
}

func newAthenaCatalog(client athenaAPI, cfg *config.Config) *athenaCatalog {
	return &athenaCatalog{
		client:         client,
		database:       cfg.AthenaDatabase,
		table:          cfg.AthenaTable,
		stagingPrefix:  cfg.AthenaStagingTable,
		workGroup:      cfg.AthenaWorkGroup,
		outputLocation: cfg.AthenaOutputLocation,
		forwardTimes:   cfg.ForwardSessionTimes,
		interval:       cfg.PollInterval,
		timeout:        cfg.QueryTimeout,
	}
}

// Load creates a staging external table over location, inserts its rows into
// the destination table and drops the staging table. A failed drop is logged
// and does not fail the load.
func (c *athenaCatalog) Load(ctx context.Context, location, runID string) ([]Execution, error) {
	l := log.Ctx(ctx)

	staging := stagingTableName(c.stagingPrefix, runID)
	var execs []Execution

	create, err := c.run(ctx, "create", createExternalTableQuery(c.database, staging, location))
	execs = append(execs, create)
	if err != nil {
		return execs, xerrors.Errorf("failed to create staging table %s: %w", staging, err)
	}

	insert, err := c.run(ctx, "insert", insertSelectQuery(c.database, c.table, staging, c.forwardTimes))
	execs = append(execs, insert)
	if err != nil {
		return execs, xerrors.Errorf("failed to insert into %s.%s: %w", c.database, c.table, err)
	}

	drop, err := c.run(ctx, "drop", dropTableQuery(c.database, staging))
	execs = append(execs, drop)
	if err != nil {
		l.Warn().Err(err).Str("table", staging).Msg("failed to drop staging table; it may need to be dropped manually")
	}

	return execs, nil
}

func (c *athenaCatalog) run(ctx context.Context, statement, query string) (Execution, error) {
	l := log.Ctx(ctx)
	e := Execution{Statement: statement}

	l.Debug().Str("statement", statement).Msg(query)

	in := &athena.StartQueryExecutionInput{
		QueryString:           aws.String(query),
		QueryExecutionContext: &types.QueryExecutionContext{Database: aws.String(c.database)},
		ResultConfiguration:   &types.ResultConfiguration{OutputLocation: aws.String(c.outputLocation)},
	}
	if c.workGroup != "" {
		in.WorkGroup = aws.String(c.workGroup)
	}

	out, err := c.client.StartQueryExecution(ctx, in)
	if err != nil {
		return e, xerrors.Errorf("failed to start %s query: %w", statement, err)
	}
	e.ID = aws.ToString(out.QueryExecutionId)

	l.Info().Str("statement", statement).Str("execution_id", e.ID).Msg("athena query started")

	state, err := c.wait(ctx, e.ID)
	e.State = string(state)
	athenaQueries.WithLabelValues(statement, queryStateLabel(e.State, err)).Inc()
	if err != nil {
		return e, err
	}

	l.Info().Str("statement", statement).Str("execution_id", e.ID).Str("state", e.State).Msg("athena query completed")

	return e, nil
}

// wait polls the execution until it reaches a terminal state or the timeout
// elapses.
func (c *athenaCatalog) wait(ctx context.Context, id string) (types.QueryExecutionState, error) {
	l := log.Ctx(ctx)

	pollCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	var state types.QueryExecutionState
	for {
		out, err := c.client.GetQueryExecution(pollCtx, &athena.GetQueryExecutionInput{
			QueryExecutionId: aws.String(id),
		})
		if err != nil {
			if ctx.Err() == nil && pollCtx.Err() != nil {
				return state, xerrors.Errorf("query %s after %s: %w", id, c.timeout, ErrQueryTimeout)
			}
			return state, xerrors.Errorf("failed to get query execution %s: %w", id, err)
		}

		var reason string
		if qe := out.QueryExecution; qe != nil && qe.Status != nil {
			state = qe.Status.State
			reason = aws.ToString(qe.Status.StateChangeReason)
		}

		l.Debug().Str("execution_id", id).Str("state", string(state)).Msg("athena query status")

		switch state {
		case types.QueryExecutionStateSucceeded:
			return state, nil
		case types.QueryExecutionStateFailed, types.QueryExecutionStateCancelled:
			if reason == "" {
				reason = "unknown athena error"
			}
			return state, &QueryError{ID: id, State: string(state), Reason: reason}
		}

		select {
		case <-pollCtx.Done():
			if err := ctx.Err(); err != nil {
				return state, err
			}
			return state, xerrors.Errorf("query %s after %s: %w", id, c.timeout, ErrQueryTimeout)
		case <-ticker.C:
		}
	}
}

func queryStateLabel(state string, err error) string {
	if xerrors.Is(err, ErrQueryTimeout) {
		return "TIMEOUT"
	}
	if state == "" {
		return "ERROR"
	}
	return state
}

func stagingTableName(prefix, runID string) string {
	suffix := strings.ToLower(strings.ReplaceAll(runID, "-", ""))
	if suffix == "" {
		return prefix
	}
	return prefix + "_" + suffix
}

// destinationColumns are the columns of the destination table, in order.
var destinationColumns = []string{
	"timestamp", "sessionid", "lineanegocio", "motivoinicial", "respuesta",
	"transacciondurantellamada", "nombretransaccion", "concluyeenvoice",
	"transferenciaasesor", "datollave", "canal", "tramiteseleccionado",
	"tramiteaccion", "intentprevio", "isfallback", "fallbackmessage",
	"isderivacion", "duracion", "tiempo_por_sesion", "horafinal",
	"__index_level_0__", "prestamoend", "flujoterminado", "year", "month",
}

// sessionTimeColumns are left blank in the destination unless forwarded.
var sessionTimeColumns = map[string]bool{
	"duracion":          true,
	"tiempo_por_sesion": true,
	"horafinal":         true,
}

func createExternalTableQuery(database, table, location string) string {
	defs := make([]string, len(session.Columns))
	for i, col := range session.Columns {
		typ := "STRING"
		if session.BoolColumns[col] {
			typ = "BOOLEAN"
		}
		defs[i] = fmt.Sprintf("  `%s` %s", col, typ)
	}

	if !strings.HasSuffix(location, "/") {
		location += "/"
	}

	return fmt.Sprintf("CREATE EXTERNAL TABLE IF NOT EXISTS `%s`.`%s` (\n%s\n)\n"+
		"ROW FORMAT SERDE 'org.apache.hadoop.hive.serde2.OpenCSVSerde'\n"+
		"WITH SERDEPROPERTIES (\n"+
		"  'separatorChar' = ',',\n"+
		"  'quoteChar' = '\"',\n"+
		"  'escapeChar' = '\\\\'\n"+
		")\n"+
		"LOCATION '%s'\n"+
		"TBLPROPERTIES ('skip.header.line.count'='1', 'external.table.purge'='TRUE')",
		database, table, strings.Join(defs, ",\n"), location)
}

func insertSelectQuery(database, table, staging string, forwardTimes bool) string {
	exprs := make([]string, len(destinationColumns))
	for i, col := range destinationColumns {
		switch {
		case session.BoolColumns[col]:
			exprs[i] = fmt.Sprintf(`CAST("%s" AS VARCHAR) AS "%s"`, col, col)
		case sessionTimeColumns[col] && !forwardTimes:
			exprs[i] = fmt.Sprintf(`'' AS "%s"`, col)
		default:
			exprs[i] = fmt.Sprintf(`"%s"`, col)
		}
	}

	return fmt.Sprintf("INSERT INTO \"%s\".\"%s\"\nSELECT\n  %s\nFROM \"%s\".\"%s\"",
		database, table, strings.Join(exprs, ",\n  "), database, staging)
}

func dropTableQuery(database, table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS `%s`.`%s`", database, table)
}
