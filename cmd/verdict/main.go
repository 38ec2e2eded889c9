// Command verdict decides whether a change to an image library is
// acceptable by running a smoke test and the library's full test suite.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/deixis/verdict"
	"github.com/deixis/verdict/internal/config"
	"github.com/deixis/verdict/internal/logging"
	vmcp "github.com/deixis/verdict/internal/mcp"
	"github.com/deixis/verdict/internal/report"
	"github.com/deixis/verdict/internal/runner"
	"github.com/deixis/verdict/internal/workflow"
	"github.com/fatih/color"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("verdict: ")

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "validate":
		err = validateMain(args)
	case "inspect":
		err = inspectMain(args)
	case "mcp":
		err = mcpMain(args)
	case "version":
		fmt.Println(verdict.Version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "verdict: unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: verdict <command> [flags]

Commands:
  validate    Run the smoke test, then the full test suite, and print the verdict
  inspect     Show the raw output of a stage from a stored run
  mcp         Start the MCP server
  version     Print the version
  help        Show this help

Use "verdict <command> -h" for command-specific flags.`)
}

// --- validate ---

func validateMain(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	python := fs.String("python", "python3", "interpreter executable used for the smoke test and the suite")
	options := mappingFlag{}
	fs.Var(options, "set", "configuration KEY=VALUE (repeatable), e.g. ACCEPTABLE_FAILURE_THRESHOLD=5")
	jsonFlag := fs.Bool("json", false, "output the run result as JSON")
	verboseFlag := fs.Bool("v", false, "verbose output, including debug logs and the raw log on failure")
	legacyFlag := fs.Bool("suite-only", false, "run only the full suite with no smoke test or threshold (deprecated)")
	_ = fs.Parse(args)

	// A positional argument is accepted as the interpreter path.
	if fs.NArg() > 0 {
		*python = fs.Arg(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger := logging.New(os.Stderr, logging.Options{Verbose: *verboseFlag})
	env, err := newEnv(logger, options)
	if err != nil {
		return err
	}

	var v *workflow.Verdict
	if *legacyFlag {
		v, err = env.engine.ValidateSuiteOnly(ctx, *python) //nolint:staticcheck // explicit opt-in
	} else {
		v, err = env.engine.Validate(ctx, *python)
	}
	if err != nil {
		return fmt.Errorf("validate: %w", err)
	}

	if saved, err := saveRun(env.cfg, env.store, v.RunResult); err != nil {
		logger.Warn("saving run result", slog.String("run_id", v.RunResult.ID), slog.Any("error", err))
	} else if !saved {
		logger.Debug("run not saved: results_dir is not configured", slog.String("run_id", v.RunResult.ID))
	}

	if *jsonFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v.RunResult); err != nil {
			return err
		}
	} else {
		printVerdict(os.Stdout, v, *verboseFlag)
	}

	if !v.Success {
		os.Exit(1)
	}
	return nil
}

func printVerdict(w io.Writer, v *workflow.Verdict, verbose bool) {
	if v.Success {
		color.New(color.FgGreen, color.Bold).Fprintln(w, "PASS")
	} else {
		color.New(color.FgRed, color.Bold).Fprintln(w, "FAIL")
	}
	fmt.Fprintln(w)

	for _, s := range v.RunResult.Stages {
		switch s.Status {
		case report.StatusPass:
			fmt.Fprintf(w, "  %-8s ok\n", s.Name)
		case report.StatusSoftPass:
			fmt.Fprintf(w, "  %-8s %s\n", s.Name, color.YellowString("ok (soft pass)"))
		case report.StatusSkipped:
			fmt.Fprintf(w, "  %-8s -\n", s.Name)
		default:
			fmt.Fprintf(w, "  %-8s %s (exit %d)\n", s.Name, color.RedString("FAIL"), s.ExitCode)
		}
	}
	fmt.Fprintln(w)

	if v.Summary != "" {
		fmt.Fprintln(w, v.Summary)
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "Run: %s\n", v.RunResult.ID)

	if !v.Success && verbose && v.Log != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, v.Log)
	}
}

// --- inspect ---

func inspectMain(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	runID := fs.String("run", "", "run ID printed by validate")
	stage := fs.String("stage", "", "smoke or suite (default: the stage that decided the verdict)")
	_ = fs.Parse(args)

	if *runID == "" {
		return fmt.Errorf("inspect: -run is required")
	}

	workspace, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determining workspace: %w", err)
	}
	loaded, err := config.Load(workspace)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if loaded.Config.ResultsDir == "" {
		return fmt.Errorf("inspect: results_dir is not set in %s; runs are only kept for the lifetime of the process", config.FileName)
	}

	store := report.NewDiskStore(resultsDir(loaded))
	rr, err := store.Load(*runID)
	if err != nil {
		return fmt.Errorf("inspect: %w", err)
	}

	st := rr.LastStage()
	if *stage != "" {
		st = rr.Stage(*stage)
	}
	if st == nil {
		return fmt.Errorf("inspect: run %s has no stage %q", *runID, *stage)
	}
	fmt.Print(vmcp.FormatStage(rr, st))
	return nil
}

// --- mcp ---

func mcpMain(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	instructions := fs.Bool("instructions", false, "print model instructions and exit")
	httpAddr := fs.String("http", "", "start HTTP server on address (e.g. :9090)")
	verboseFlag := fs.Bool("v", false, "verbose logging")
	_ = fs.Parse(args)

	if *instructions {
		fmt.Print(vmcp.Instructions)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Stdout carries the protocol; logs go to stderr as JSON.
	logger := logging.New(os.Stderr, logging.Options{JSON: true, Verbose: *verboseFlag})
	env, err := newEnv(logger, nil)
	if err != nil {
		return err
	}
	server := vmcp.NewServer(env.cfg, env.runner, report.NewLRUStore(10, env.store), logger)

	if *httpAddr != "" {
		return serveHTTP(ctx, server, *httpAddr)
	}
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

func serveHTTP(ctx context.Context, server *mcpsdk.Server, addr string) error {
	handler := mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	log.Printf("listening on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// --- shared ---

type env struct {
	cfg    *config.Config
	runner *runner.Runner
	engine *workflow.Engine
	store  *report.DiskStore
}

func newEnv(logger *slog.Logger, overrides map[string]string) (*env, error) {
	workspace, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("determining workspace: %w", err)
	}

	loaded, err := config.Load(workspace)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg := loaded.Config
	if err := cfg.Apply(overrides); err != nil {
		return nil, fmt.Errorf("applying options: %w", err)
	}

	// Commands run from the invocation directory: the smoke script and the
	// suite directory are resolved against it.
	r := &runner.Runner{
		Workspace: workspace,
		Timeout:   cfg.Timeout(),
		MaxOutput: cfg.MaxOutputBytes(),
		Logger:    logger,
	}

	eng, err := workflow.NewEngine(cfg, r, logger)
	if err != nil {
		return nil, err
	}

	return &env{
		cfg:    cfg,
		runner: r,
		engine: eng,
		store:  report.NewDiskStore(resultsDir(loaded)),
	}, nil
}

// saveRun stores rr when results_dir is configured. It reports whether the
// run was written.
func saveRun(cfg *config.Config, store report.Store, rr *report.RunResult) (bool, error) {
	if cfg.ResultsDir == "" {
		return false, nil
	}
	if err := store.Save(rr); err != nil {
		return false, err
	}
	return true, nil
}

// resultsDir resolves the configured results directory against the repo root.
func resultsDir(loaded *config.LoadResult) string {
	dir := loaded.Config.ResultsDir
	if dir == "" || filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(loaded.RepoRoot, dir)
}
