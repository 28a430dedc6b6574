package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/peterbourgon/ff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xagent-cli/xagent/core/client"
	"github.com/xagent-cli/xagent/core/client/middleware"
	"github.com/xagent-cli/xagent/core/config"
	"github.com/xagent-cli/xagent/internal/echovendor"
	"github.com/xagent-cli/xagent/providers/ai"
	"github.com/xagent-cli/xagent/providers/observability"
	"github.com/xagent-cli/xagent/providers/observability/promobs"
	"github.com/xagent-cli/xagent/providers/observability/slogobs"
)

const envVarPrefix = "XAGENT"

const usage = `usage: xagent-wire <command> [flags]

commands:
  complete      send a prompt and print the full response
  stream        send a prompt and print the response as it arrives
  models        list the models the endpoint offers
  echo-vendor   serve a local fake vendor that echoes the last message`

var errUsage = errors.New(usage)

// common holds the flags shared by the client commands.
type common struct {
	configPath  string
	envFile     string
	baseURL     string
	apiKey      string
	model       string
	timeout     time.Duration
	logFormat   string
	logLevel    string
	logDetail   string
	metricsAddr string
}

func (c *common) bind(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "YAML configuration file")
	fs.StringVar(&c.envFile, "env-file", ".env", "dotenv file read when present")
	fs.StringVar(&c.baseURL, "base-url", "", "vendor base URL")
	fs.StringVar(&c.apiKey, "api-key", "", "vendor API key")
	fs.StringVar(&c.model, "model", "", "model identifier")
	fs.DurationVar(&c.timeout, "timeout", 0, "per-call timeout, zero for none")
	fs.StringVar(&c.logFormat, "log-format", string(slogobs.FormatFromEnv()), "log format: compact, text or json")
	fs.StringVar(&c.logLevel, "log-level", slogobs.LevelFromEnv().String(), "log level")
	fs.StringVar(&c.logDetail, "log-detail", "standard", "observer detail: minimal, standard or verbose")
	fs.StringVar(&c.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
}

// prompt holds the completion flags.
type prompt struct {
	system      string
	temperature float64
	maxTokens   int
	thinking    int
}

func (p *prompt) bind(fs *flag.FlagSet) {
	fs.StringVar(&p.system, "system", "", "system prompt")
	fs.Float64Var(&p.temperature, "temperature", -1, "sampling temperature, negative for the default")
	fs.IntVar(&p.maxTokens, "max-tokens", 0, "maximum output tokens")
	fs.IntVar(&p.thinking, "thinking-budget", 0, "reasoning token budget")
}

func (p *prompt) options() ai.CompletionOptions {
	options := ai.CompletionOptions{
		SystemPrompt:   p.system,
		MaxTokens:      p.maxTokens,
		ThinkingBudget: p.thinking,
	}
	if p.temperature >= 0 {
		temperature := p.temperature
		options.Temperature = &temperature
	}
	return options
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	command, args := args[0], args[1:]

	switch command {
	case "complete", "stream":
		return runPrompt(ctx, command, args, stdout, stderr)
	case "models":
		return runModels(ctx, args, stdout, stderr)
	case "echo-vendor":
		return runEchoVendor(ctx, args)
	case "help", "-h", "--help":
		fmt.Fprintln(stdout, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n%s", command, usage)
	}
}

// parse applies flags, then XAGENT_* environment variables for flags left
// unset, and returns the positional arguments.
func parse(fs *flag.FlagSet, args []string) ([]string, error) {
	ffs := ff.NewFlagSetFrom(fs.Name(), fs)
	err := ff.Parse(ffs, slices.Clone(args), ff.WithEnvVarPrefix(envVarPrefix))
	if errors.Is(err, ff.ErrHelp) {
		fs.Usage()
		return nil, flag.ErrHelp
	}
	return ffs.GetArgs(), err
}

func runPrompt(ctx context.Context, command string, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.SetOutput(stderr)
	var flags common
	var p prompt
	flags.bind(fs)
	p.bind(fs)
	positional, err := parse(fs, args)
	if err != nil {
		return ignoreHelp(err)
	}

	text := strings.Join(positional, " ")
	if text == "" {
		return fmt.Errorf("%s: a prompt is required", command)
	}

	c, stop, err := flags.client(ctx, stderr)
	if err != nil {
		return err
	}
	defer stop()

	messages := []ai.Message{ai.NewTextMessage(ai.RoleUser, text)}
	if command == "stream" {
		return printStream(stdout, stderr, c.Stream(ctx, messages, p.options()))
	}

	response, err := c.Complete(ctx, messages, p.options())
	if err != nil {
		return err
	}
	printResponse(stdout, response)
	return nil
}

func runModels(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("models", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var flags common
	flags.bind(fs)
	if _, err := parse(fs, args); err != nil {
		return ignoreHelp(err)
	}

	c, stop, err := flags.client(ctx, stderr)
	if err != nil {
		return err
	}
	defer stop()

	models, err := c.Models(ctx)
	if err != nil {
		return err
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(stdout)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"ID", "Name", "Family"})
	for _, model := range models {
		tw.AppendRow(table.Row{model.ID, model.DisplayName, model.Family})
	}
	tw.Render()
	return nil
}

func runEchoVendor(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("echo-vendor", flag.ContinueOnError)
	addr := fs.String("addr", "127.0.0.1:8089", "listen address")
	apiKey := fs.String("api-key", "", "require this key from clients")
	models := fs.String("models", "", "comma-separated model list")
	if _, err := parse(fs, args); err != nil {
		return ignoreHelp(err)
	}

	vendor := echovendor.New()
	vendor.APIKey = *apiKey
	if *models != "" {
		vendor.Models = strings.Split(*models, ",")
	}
	return vendor.Run(ctx, *addr)
}

// client builds a client from the config file, the environment and flags,
// in increasing priority. The returned stop func closes the client and the
// metrics server.
func (c *common) client(ctx context.Context, stderr io.Writer) (*client.Client, func(), error) {
	level, err := slogobs.ParseLevel(c.logLevel)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slogobs.NewHandler(slogobs.ParseFormat(c.logFormat), level, stderr))
	slog.SetDefault(logger)

	file := config.File{}
	if c.configPath != "" {
		if file, err = config.Load(c.configPath); err != nil {
			return nil, nil, err
		}
	}
	env, err := config.FromEnv(c.envFile)
	if err != nil {
		return nil, nil, err
	}
	file = file.Merge(env).Merge(config.File{BaseURL: c.baseURL, APIKey: c.apiKey, Model: c.model})
	if err := file.Validate(); err != nil {
		return nil, nil, err
	}

	observers := []observability.Observer{slogobs.New(slogobs.WithLogger(logger), slogobs.WithDetail(slogobs.ParseDetail(c.logDetail)))}
	stopMetrics := func() {}
	if c.metricsAddr != "" {
		metrics := promobs.New()
		registry := prometheus.NewRegistry()
		registry.MustRegister(metrics)
		observers = append(observers, metrics)
		stopMetrics = serveMetrics(ctx, c.metricsAddr, registry)
	}

	cfg := file.ClientConfig()
	cfg.Observer = observability.Multi(observers...)
	if c.timeout > 0 {
		cfg.Middlewares = append(cfg.Middlewares, middleware.NewTimeoutMiddleware(c.timeout))
	}

	wire, err := client.New(cfg)
	if err != nil {
		stopMetrics()
		return nil, nil, err
	}
	slog.Debug("client ready", "family", wire.Endpoint().Family, "url", wire.Endpoint().URL())

	stop := func() {
		_ = wire.Close()
		stopMetrics()
	}
	return wire, stop, nil
}

func serveMetrics(ctx context.Context, addr string, registry *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "error", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}
}

func printResponse(w io.Writer, response *ai.CompletionResponse) {
	message := response.Message()
	if message.Reasoning != "" {
		fmt.Fprintf(w, "[reasoning] %s\n", message.Reasoning)
	}
	if text := message.Content.String(); text != "" {
		fmt.Fprintln(w, text)
	}
	for _, call := range message.ToolCalls {
		fmt.Fprintf(w, "[tool_call %s] %s %s\n", call.ID, call.Function.Name, call.Function.Arguments)
	}
	if usage := response.Usage; usage != nil {
		fmt.Fprintf(w, "[%s, %d prompt + %d completion tokens]\n", response.FinishReason(), usage.PromptTokens, usage.CompletionTokens)
	} else {
		fmt.Fprintf(w, "[%s]\n", response.FinishReason())
	}
}

func printStream(stdout, stderr io.Writer, stream *ai.Stream) error {
	for event := range stream.Events() {
		switch event.Type {
		case ai.StreamEventText:
			fmt.Fprint(stdout, event.Text)
		case ai.StreamEventReasoning:
			fmt.Fprint(stderr, event.Reasoning)
		case ai.StreamEventToolCall:
			if event.ToolCall.Name != "" {
				fmt.Fprintf(stdout, "\n[tool_call %s] %s ", event.ToolCall.ID, event.ToolCall.Name)
			}
			fmt.Fprint(stdout, event.ToolCall.Arguments)
		case ai.StreamEventDone:
			fmt.Fprintf(stdout, "\n[%s]\n", event.FinishReason)
		case ai.StreamEventError:
			fmt.Fprintln(stdout)
			return event.Err
		}
	}
	return nil
}

func ignoreHelp(err error) error {
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	return err
}
