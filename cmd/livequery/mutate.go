package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
)

type mutateOptions struct {
	Doc    string
	ID     string
	Filter string
}

type mutationResult struct {
	Op string `json:"op"`
	ID string `json:"id,omitempty"`
}

func newInsertCommand(root *rootOptions) *cobra.Command {
	opts := &mutateOptions{}

	cmd := &cobra.Command{
		Use:     "insert",
		Short:   "Insert a document",
		Example: `  livequery insert --doc '{"id":"r1","rank":10,"group":"a"}'`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInsert(cmd.Context(), cmd.OutOrStdout(), root, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Doc, "doc", "", "document as a JSON object; a missing id is generated")
	_ = cmd.MarkFlagRequired("doc")

	return cmd
}

func newUpdateCommand(root *rootOptions) *cobra.Command {
	opts := &mutateOptions{}

	cmd := &cobra.Command{
		Use:     "update",
		Short:   "Replace the first document matching --id or --filter",
		Example: `  livequery update --id r1 --doc '{"id":"r1","rank":99}'`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(cmd.Context(), cmd.OutOrStdout(), root, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Doc, "doc", "", "replacement document as a JSON object")
	cmd.Flags().StringVar(&opts.ID, "id", "", "id of the document to replace")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "query selecting the document, as JSON")
	_ = cmd.MarkFlagRequired("doc")

	return cmd
}

func newRemoveCommand(root *rootOptions) *cobra.Command {
	opts := &mutateOptions{}

	cmd := &cobra.Command{
		Use:     "remove",
		Aliases: []string{"rm"},
		Short:   "Remove the first document matching --id or --filter",
		Example: `  livequery remove --id r1`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemove(cmd.Context(), cmd.OutOrStdout(), root, opts)
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "id of the document to remove")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "query selecting the document, as JSON")

	return cmd
}

func runInsert(ctx context.Context, out io.Writer, root *rootOptions, opts *mutateOptions) error {
	doc, err := parseDocument(opts.Doc)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, root)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	if err := a.mutator().Insert(ctx, doc); err != nil {
		return err
	}
	return json.NewEncoder(out).Encode(mutationResult{Op: "insert", ID: doc.GetID()})
}

func runUpdate(ctx context.Context, out io.Writer, root *rootOptions, opts *mutateOptions) error {
	query, err := selector(opts.ID, opts.Filter)
	if err != nil {
		return err
	}
	doc, err := parseDocument(opts.Doc)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, root)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	if err := a.mutator().Update(ctx, query, doc); err != nil {
		return err
	}
	id := doc.GetID()
	if id == "" {
		id = opts.ID
	}
	return json.NewEncoder(out).Encode(mutationResult{Op: "update", ID: id})
}

func runRemove(ctx context.Context, out io.Writer, root *rootOptions, opts *mutateOptions) error {
	query, err := selector(opts.ID, opts.Filter)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, root)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	if err := a.mutator().Remove(ctx, query); err != nil {
		return err
	}
	return json.NewEncoder(out).Encode(mutationResult{Op: "remove", ID: opts.ID})
}
