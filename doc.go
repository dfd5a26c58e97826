/*

Package bqathena transfers conversation session logs from BigQuery into an
Athena table.

One run reads every event of the configured BigQuery table, reduces them to
one row per conversation session (see package session), uploads the rows as a
CSV file to S3 and loads it into the destination Athena table through a
temporary external table.

Getting started

Build a pipeline from the environment and serve it over HTTP.

	package main

	import (
		"context"
		"net/http"

		"github.com/rs/zerolog/log"

		bqathena "github.com/samuelzaleta/bigquery-athena"
		"github.com/samuelzaleta/bigquery-athena/config"
	)

	func main() {
		cfg, err := config.Load()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load config")
		}

		p := bqathena.MustNew(context.Background(), cfg, bqathena.WithLogLevel(cfg.LogLevel))

		http.ListenAndServe(":"+cfg.Port, bqathena.NewServer(p, log.Logger))
	}

Each GET / triggers one run. The response body is a human readable summary
and the status code is 200 on success, including runs with nothing to load,
and 500 on failure.

*/
package bqathena
