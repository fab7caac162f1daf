package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/reoring/conformance"
	"github.com/reoring/conformance/i18n"
	"github.com/reoring/conformance/internal/apiclient"
	"github.com/reoring/conformance/internal/config"
	"github.com/reoring/conformance/internal/logger"
	"github.com/reoring/conformance/internal/runner"
	"github.com/reoring/conformance/internal/server"
	"github.com/reoring/conformance/middleware"
	"github.com/reoring/conformance/openapi"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	sub := os.Args[1]
	switch sub {
	case "payload":
		os.Exit(payloadCmd(os.Args[2:], os.Stdout))
	case "api":
		os.Exit(apiCmd(os.Args[2:], os.Stdout))
	case "serve":
		serveCmd(os.Args[2:])
	case "schemas":
		schemasCmd(os.Args[2:], os.Stdout)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "conformance CLI\n\nUsage:\n  conformance payload [-config f] [-model f] [-json] [-workers n] files...\n  conformance api [-config f] [-model f] [-json]\n  conformance serve [-config f] [-model f]\n  conformance schemas [-config f] [-model f]\n\nEnvironment variables prefixed CONFORMANCE_ override the config file (CONFORMANCE_MODEL__PATH=...).")
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(2)
}

type env struct {
	cfg *config.Config
	log *logger.Logger
	eng *conformance.Engine
}

// setup loads the config, builds the logger and loads the model document.
// modelPath, when set, wins over model.path.
func setup(configPath, modelPath string) env {
	cfg, err := config.Load(configPath)
	if err != nil {
		fatalf("config: %v", err)
	}
	if modelPath != "" {
		cfg.Model.Path = modelPath
	}
	if cfg.Model.Path == "" {
		fatalf("no model document: pass -model or set model.path")
	}
	log := logger.New("cli", logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	i18n.SetLanguage(cfg.Model.Language)

	m, diag, err := openapi.LoadFile(cfg.Model.Path, openapi.Options{})
	if err != nil {
		fatalf("model: %v", err)
	}
	for _, w := range diag.Warnings() {
		log.Warn().Str("model", cfg.Model.Path).Msg(w)
	}
	eng := conformance.NewEngine(m,
		conformance.WithMaxDepth(cfg.Model.MaxDepth),
		conformance.WithDuplicateKeyRejection(cfg.Model.RejectDuplicateKeys),
		conformance.WithStrictResponses(cfg.Model.StrictResponses),
		conformance.WithLogger(log.Logger),
	)
	return env{cfg: cfg, log: log, eng: eng}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

type fileReport struct {
	File string `json:"file"`
	middleware.Report
	Fault string `json:"fault,omitempty"`
}

func payloadCmd(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("payload", flag.ExitOnError)
	var configPath, modelPath string
	var asJSON bool
	var workers int
	fs.StringVar(&configPath, "config", "", "config file (yaml)")
	fs.StringVar(&modelPath, "model", "", "model document (OpenAPI yaml/json)")
	fs.BoolVar(&asJSON, "json", false, "print reports as JSON")
	fs.IntVar(&workers, "workers", 0, "files validated concurrently (default: config workers)")
	_ = fs.Parse(args)
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}
	e := setup(configPath, modelPath)
	if workers <= 0 {
		workers = e.cfg.Workers
	}

	ctx, stop := signalContext()
	defer stop()
	results, err := e.eng.ValidateFiles(ctx, fs.Args(), workers)
	if err != nil {
		fatalf("payload: %v", err)
	}

	failed := false
	reports := make([]fileReport, 0, len(results))
	for _, r := range results {
		rep := fileReport{File: r.Path, Report: middleware.NewReport("", r.Schema, r.Errors)}
		rep.Valid = r.Valid() && r.Err == nil
		if r.Err != nil {
			rep.Fault = r.Err.Error()
		}
		failed = failed || !rep.Valid
		reports = append(reports, rep)
	}
	if asJSON {
		writeJSON(out, reports)
	} else {
		for _, rep := range reports {
			printReport(out, rep.File, rep.Report, rep.Fault)
		}
	}
	if failed {
		return 1
	}
	return 0
}

func apiCmd(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("api", flag.ExitOnError)
	var configPath, modelPath string
	var asJSON bool
	fs.StringVar(&configPath, "config", "", "config file (yaml)")
	fs.StringVar(&modelPath, "model", "", "model document (OpenAPI yaml/json)")
	fs.BoolVar(&asJSON, "json", false, "print results as JSON")
	_ = fs.Parse(args)
	e := setup(configPath, modelPath)
	if len(e.cfg.Target.Operations) == 0 {
		fatalf("api: no target.operations configured")
	}

	client := apiclient.New(apiclient.Config{
		BaseURL: e.cfg.Target.BaseURL,
		Timeout: e.cfg.Target.Timeout,
		Headers: e.cfg.Target.Headers,
	}, e.log.Child())
	r := runner.New(e.eng, client, e.cfg.Target, e.cfg.Workers, e.log)

	ctx, stop := signalContext()
	defer stop()
	results, err := r.Run(ctx)
	if err != nil {
		fatalf("api: %v", err)
	}

	reports := make([]fileReport, 0, len(results))
	for _, res := range results {
		rep := fileReport{File: res.URL, Report: middleware.NewReport(res.Operation, "", res.Errors)}
		rep.Valid = res.Passed()
		if res.Err != nil {
			rep.Fault = res.Err.Error()
		}
		reports = append(reports, rep)
	}
	if asJSON {
		writeJSON(out, reports)
	} else {
		for _, rep := range reports {
			printReport(out, rep.ID+" "+rep.File, rep.Report, rep.Fault)
		}
	}
	s := runner.Summarize(results)
	fmt.Fprintf(out, "%d pages, %d passed, %d failed, %d errors\n", s.Pages, s.Passed, s.Failed, s.Errors)
	if s.Failed > 0 {
		return 1
	}
	return 0
}

func serveCmd(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	var configPath, modelPath string
	fs.StringVar(&configPath, "config", "", "config file (yaml)")
	fs.StringVar(&modelPath, "model", "", "model document (OpenAPI yaml/json)")
	_ = fs.Parse(args)
	e := setup(configPath, modelPath)

	srvLog := logger.New("server", logger.Config{Level: e.cfg.Log.Level, Format: e.cfg.Log.Format})
	srv := server.New(e.eng, e.cfg.Server, srvLog)

	ctx, stop := signalContext()
	defer stop()
	if err := srv.Run(ctx); err != nil {
		fatalf("serve: %v", err)
	}
}

func schemasCmd(args []string, out io.Writer) {
	fs := flag.NewFlagSet("schemas", flag.ExitOnError)
	var configPath, modelPath string
	fs.StringVar(&configPath, "config", "", "config file (yaml)")
	fs.StringVar(&modelPath, "model", "", "model document (OpenAPI yaml/json)")
	_ = fs.Parse(args)
	m := setup(configPath, modelPath).eng.Model()

	fmt.Fprintln(out, "schemas:")
	for _, name := range m.SchemaNames() {
		fmt.Fprintf(out, "  %s\n", name)
	}
	fmt.Fprintln(out, "payloads:")
	for _, n := range m.PayloadCandidates() {
		fmt.Fprintf(out, "  %s\n", n.Name())
	}
	fmt.Fprintln(out, "operations:")
	for _, rd := range m.Responses() {
		fmt.Fprintf(out, "  %s %d -> %s\n", rd.OperationID, rd.Code, rd.Schema)
	}
}

func printReport(out io.Writer, subject string, rep middleware.Report, fault string) {
	status := "PASS"
	if !rep.Valid {
		status = "FAIL"
	}
	if rep.Model != "" {
		fmt.Fprintf(out, "%s %s (%s)\n", status, subject, rep.Model)
	} else {
		fmt.Fprintf(out, "%s %s\n", status, subject)
	}
	for _, e := range rep.Errors {
		fmt.Fprintf(out, "  %s %s: %s\n", e.Kind, e.Path, e.Description)
	}
	if fault != "" {
		fmt.Fprintf(out, "  fault: %s\n", fault)
	}
}

func writeJSON(out io.Writer, v any) {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatalf("encode: %v", err)
	}
}
