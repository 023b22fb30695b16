// Command graphctl drives the change-log API from a terminal.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/interfaces/client"
	pkgerrors "github.com/HansC-anafter/mindscape-ai-local-core-sub007/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// exitErr carries a numeric exit code through the cobra error path.
type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string { return e.msg }

func codeError(code int, format string, args ...any) error {
	return &exitErr{code: code, msg: fmt.Sprintf(format, args...)}
}

// globalFlags are shared by every subcommand
type globalFlags struct {
	server    string
	token     string
	workspace string
	timeout   time.Duration
	output    string
	verbose   bool
}

type app struct {
	flags  globalFlags
	out    io.Writer
	logger *zap.Logger
	client *client.Client
}

func main() {
	a := &app{out: os.Stdout}
	root := newRootCommand(a)

	if err := root.Execute(); err != nil {
		var ee *exitErr
		if errors.As(err, &ee) {
			fmt.Fprintln(os.Stderr, "Error:", ee.msg)
			os.Exit(ee.code)
		}
		os.Exit(1)
	}
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "graphctl",
		Short:         "Review and apply proposed graph changes",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.flags.server, "server", envOr("GRAPH_API_URL", "http://localhost:8080"), "Change-log API base URL")
	f.StringVar(&a.flags.token, "token", os.Getenv("GRAPH_API_TOKEN"), "Bearer token")
	f.StringVarP(&a.flags.workspace, "workspace", "w", os.Getenv("GRAPH_WORKSPACE"), "Workspace id")
	f.DurationVar(&a.flags.timeout, "timeout", 10*time.Second, "Per-request timeout")
	f.StringVarP(&a.flags.output, "output", "o", "text", "Output format: text or json")
	f.BoolVarP(&a.flags.verbose, "verbose", "v", false, "Log requests to stderr")

	root.AddCommand(
		newPendingCommand(a),
		newProposeCommand(a),
		newResolveCommand(a),
		newHistoryCommand(a),
		newUndoCommand(a),
		newGraphCommand(a),
		newWatchCommand(a),
	)
	return root
}

func (a *app) init() error {
	if a.flags.output != "text" && a.flags.output != "json" {
		return codeError(3, "unknown output format %q", a.flags.output)
	}
	a.logger = zap.NewNop()
	if a.flags.verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		a.logger = logger
	}
	a.client = client.New(client.Config{
		BaseURL: a.flags.server,
		Token:   a.flags.token,
		Timeout: a.flags.timeout,
	}, a.logger)
	return nil
}

func (a *app) requireWorkspace() (string, error) {
	if a.flags.workspace == "" {
		return "", codeError(3, "--workspace is required")
	}
	return a.flags.workspace, nil
}

func (a *app) context(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, a.flags.timeout)
}

// fail maps API errors onto exit codes: 4 for transport, 1 otherwise
func (a *app) fail(err error) error {
	if pkgerrors.IsRetryable(err) {
		return codeError(4, "%s (retry later)", pkgerrors.Reason(err))
	}
	return codeError(1, "%s", pkgerrors.Reason(err))
}

// printJSON is used for -o json and for payloads with no text rendering
func (a *app) printJSON(v interface{}) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
