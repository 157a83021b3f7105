package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/syntrixbase/livequery/pkg/model"
)

// rootOptions holds the flags shared by every command.
type rootOptions struct {
	ConfigDir string
	DataDir   string
	Verbose   bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "livequery",
		Short: "Live paginated queries over a document store",
		Long: `livequery keeps paginated query results in sync with a document store.

A watch streams count, data, deleteItem and exhausted events for one query
as JSON lines. Mutations issued through insert, update and remove are
applied to the store and, with the change feed enabled, reach every
watching process.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigDir, "config-dir", "config", "directory holding config.yml and config.local.yml")
	cmd.PersistentFlags().StringVar(&opts.DataDir, "data-dir", ".", "base directory for logs and database files")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(newWatchCommand(opts))
	cmd.AddCommand(newInsertCommand(opts))
	cmd.AddCommand(newUpdateCommand(opts))
	cmd.AddCommand(newRemoveCommand(opts))

	return cmd
}

// parseQuery decodes a JSON query. An empty string matches everything.
func parseQuery(s string) (model.Query, error) {
	var q model.Query
	if strings.TrimSpace(s) == "" {
		return q, nil
	}
	if err := json.Unmarshal([]byte(s), &q); err != nil {
		return q, fmt.Errorf("%w: parse filter: %v", model.ErrInvalidQuery, err)
	}
	return q, q.Validate()
}

// parseDocument decodes a JSON object.
func parseDocument(s string) (model.Document, error) {
	var doc model.Document
	if err := json.Unmarshal([]byte(s), &doc); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("parse document: expected a JSON object")
	}
	return doc, nil
}

// selector builds the query for update and remove from --id or --filter.
func selector(id, filter string) (model.Query, error) {
	switch {
	case id != "" && filter != "":
		return model.Query{}, fmt.Errorf("--id and --filter are mutually exclusive")
	case id != "":
		return model.ByID(id), nil
	case filter != "":
		return parseQuery(filter)
	default:
		return model.Query{}, fmt.Errorf("one of --id or --filter is required")
	}
}
