package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rpattn/nodequery/internal/domain"
	"github.com/rpattn/nodequery/internal/engine"
	"github.com/rpattn/nodequery/internal/export"
	"github.com/rpattn/nodequery/internal/middleware"
)

// queryRequest is the JSON form of a query accepted by --query.
type queryRequest struct {
	Type             string        `json:"type"`
	Filter           domain.Filter `json:"filter"`
	Sort             *domain.Sort  `json:"sort"`
	Group            []string      `json:"group"`
	Distinct         string        `json:"distinct"`
	FirstOnly        bool          `json:"firstOnly"`
	AllowedTypeNames []string      `json:"allowedTypeNames"`
}

func (r queryRequest) engineQuery() engine.Query {
	return engine.Query{
		Args: domain.QueryArgs{
			Filter:   r.Filter,
			Sort:     r.Sort,
			Group:    r.Group,
			Distinct: r.Distinct,
		},
		Type:             r.Type,
		FirstOnly:        r.FirstOnly,
		AllowedTypeNames: r.AllowedTypeNames,
	}
}

type queryOptions struct {
	query     string
	queryFile string
	typeName  string
	first     bool
	format    string
	xlsx      string
}

func newQueryCmd(root *rootOptions) *cobra.Command {
	opts := &queryOptions{}
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run a query and print the matching nodes",
		Example: `  nodequery query --query '{"type":"Post","filter":{"tags":{"in":["go"]}},"sort":{"fields":["date"],"order":["desc"]}}'
  nodequery query --type Post --first --query '{"filter":{"id":{"eq":"post-1"}}}'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, root, opts)
		},
	}
	cmd.Flags().StringVar(&opts.query, "query", "", "query as JSON")
	cmd.Flags().StringVar(&opts.queryFile, "query-file", "", "file containing the query as JSON")
	cmd.Flags().StringVar(&opts.typeName, "type", "", "queried node type, overrides the query's type")
	cmd.Flags().BoolVar(&opts.first, "first", false, "return at most one node")
	cmd.Flags().StringVar(&opts.format, "format", export.FormatJSON, "output format: json or csv")
	cmd.Flags().StringVar(&opts.xlsx, "xlsx", "", "write the result to this XLSX file instead of stdout")
	return cmd
}

func runQuery(cmd *cobra.Command, root *rootOptions, opts *queryOptions) error {
	req, err := readQuery(opts)
	if err != nil {
		return err
	}

	e, err := loadEnv(root)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	s, err := openStore(ctx, e.cfg.Store, e.logger)
	if err != nil {
		return err
	}
	defer s.Close()

	eng := engine.New(s.NodeStore, e.registry,
		engine.WithLogger(e.logger),
		engine.WithConcurrency(e.cfg.Resolver.Concurrency),
		engine.WithBatchOptions(e.cfg.Resolver.LoaderOptions()),
		engine.WithMiddleware(middleware.ResolverLogger(e.logger)),
	)
	result, err := eng.Run(ctx, req.engineQuery())
	if err != nil {
		return err
	}
	if result.NoResult {
		e.logger.Info("no nodes matched", "type", req.Type)
	}

	if opts.xlsx != "" {
		f, err := os.Create(opts.xlsx)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", opts.xlsx, err)
		}
		if err := export.WriteXLSX(f, result.Nodes); err != nil {
			_ = f.Close()
			return err
		}
		return f.Close()
	}
	return export.Write(cmd.OutOrStdout(), opts.format, result.Nodes)
}

func readQuery(opts *queryOptions) (queryRequest, error) {
	var req queryRequest
	raw := strings.TrimSpace(opts.query)
	if opts.queryFile != "" {
		data, err := readFileOrStdin(opts.queryFile)
		if err != nil {
			return req, err
		}
		raw = strings.TrimSpace(string(data))
	}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			return req, fmt.Errorf("invalid query: %w", err)
		}
	}
	if opts.typeName != "" {
		req.Type = opts.typeName
	}
	if opts.first {
		req.FirstOnly = true
	}
	if req.Type == "" {
		return req, fmt.Errorf("a node type is required (--type or \"type\" in the query)")
	}
	return req, nil
}

func readFileOrStdin(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read query file: %w", err)
	}
	return data, nil
}
