package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/time/rate"

	"github.com/byte4ever/reqflow"
	"github.com/byte4ever/reqflow/httpx"
)

var version = "0.1.0"

type doFlags struct {
	configPath     string
	descriptorPath string
	baseURL        string
	path           string
	method         string
	headers        []string
	params         []string
	jsonBody       bool
	retries        int
	delay          time.Duration
	schemaPath     string
	mapErrors      bool
	trace          bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "reqflow",
		Short:         "Execute declarative HTTP requests with retries",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.SetOut(stdout)
	root.SetErr(stderr)
	root.AddCommand(newDoCmd(stdout, stderr))

	return root
}

func newDoCmd(stdout, stderr io.Writer) *cobra.Command {
	var flags doFlags

	cmd := &cobra.Command{
		Use:   "do",
		Short: "Execute a request described by flags or a descriptor file",
		Example: `  reqflow do --base https://jsonplaceholder.typicode.com --path /todos/1
  reqflow do --file descriptor.yaml --config reqflow.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := runDo(cmd.Context(), &flags, stdout, stderr)
			if err != nil {
				printError(stderr, err)
			}

			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.configPath, "config", "", "configuration file (YAML or JSON)")
	f.StringVarP(&flags.descriptorPath, "file", "f", "", "descriptor file (YAML or JSON)")
	f.StringVar(&flags.baseURL, "base", "", "base URL")
	f.StringVar(&flags.path, "path", "", "path appended to the base URL")
	f.StringVarP(&flags.method, "method", "X", "GET", "HTTP method")
	f.StringArrayVarP(&flags.headers, "header", "H", nil, `header as "Name: value" (repeatable)`)
	f.StringArrayVarP(&flags.params, "param", "p", nil, `parameter as "key=value" (repeatable)`)
	f.BoolVar(&flags.jsonBody, "json", false, "send parameters as a JSON body")
	f.IntVar(&flags.retries, "retries", -1, "retries after the first attempt (default from config)")
	f.DurationVar(&flags.delay, "delay", -1, "delay between attempts (default from config)")
	f.StringVar(&flags.schemaPath, "schema", "", "JSON schema the response must satisfy")
	f.BoolVar(&flags.mapErrors, "map-errors", false, "classify timeouts and unreachable hosts")
	f.BoolVar(&flags.trace, "trace", false, "print the call's trace spans to stderr")

	return cmd
}

func runDo(ctx context.Context, flags *doFlags, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := reqflow.LoadConfig(flags.configPath)
	if err != nil {
		return err //nolint:wrapcheck // already prefixed
	}

	d, err := buildDescriptor(flags, cfg)
	if err != nil {
		return err
	}

	var topts []httpx.Option
	if cfg.Transport.RateLimit > 0 {
		topts = append(topts, httpx.WithRateLimit(rate.Limit(cfg.Transport.RateLimit), cfg.Transport.Burst))
	}

	if flags.mapErrors {
		topts = append(topts, httpx.WithErrorMapping())
	}

	sopts := cfg.ServiceOptions(stderr)

	if flags.schemaPath != "" {
		src, readErr := os.ReadFile(flags.schemaPath)
		if readErr != nil {
			return fmt.Errorf("read schema: %w", readErr)
		}

		schema, compileErr := reqflow.CompileSchema(flags.schemaPath, string(src))
		if compileErr != nil {
			return compileErr //nolint:wrapcheck // already prefixed
		}

		sopts = append(sopts, reqflow.WithDecoder(reqflow.NewSchemaDecoder(schema, nil)))
	}

	if flags.trace {
		tp, traceErr := newTracerProvider(stderr)
		if traceErr != nil {
			return traceErr
		}

		defer tp.Shutdown(context.WithoutCancel(ctx)) //nolint:errcheck // best effort flush

		sopts = append(sopts, reqflow.WithTracerProvider(tp))
	}

	svc := httpx.NewService(cfg.TransportConfig(), topts, sopts...)

	result, err := reqflow.Execute[any](ctx, svc, d)
	if err != nil {
		return err //nolint:wrapcheck // typed pipeline error
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("format response: %w", err)
	}

	_, err = fmt.Fprintln(stdout, string(out))

	return err //nolint:wrapcheck // terminal write
}

// newTracerProvider exports spans synchronously so they are written before
// the command exits.
func newTracerProvider(w io.Writer) (*sdktrace.TracerProvider, error) {
	exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("trace exporter: %w", err)
	}

	return sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp)), nil
}

func buildDescriptor(flags *doFlags, cfg *reqflow.Config) (reqflow.Descriptor, error) {
	policy := cfg.RetryPolicy()
	if flags.retries >= 0 {
		policy.MaxRetries = flags.retries
	}

	if flags.delay >= 0 {
		policy.Delay = flags.delay
	}

	if flags.descriptorPath != "" {
		d, err := reqflow.LoadDescriptor(flags.descriptorPath)
		if err != nil {
			return reqflow.Descriptor{}, err //nolint:wrapcheck // already prefixed
		}

		if d.Retry == nil {
			d.Retry = &policy
		}

		return d, nil
	}

	headers, err := parsePairs(flags.headers, ":")
	if err != nil {
		return reqflow.Descriptor{}, fmt.Errorf("header: %w", err)
	}

	params, err := parsePairs(flags.params, "=")
	if err != nil {
		return reqflow.Descriptor{}, fmt.Errorf("param: %w", err)
	}

	d := reqflow.Descriptor{
		BaseURL: flags.baseURL,
		Path:    flags.path,
		Method:  reqflow.Method(strings.ToUpper(flags.method)),
		Headers: headers,
		Retry:   &policy,
	}

	if len(params) > 0 {
		d.Parameters = params
	}

	if flags.jsonBody {
		d.Encoding = reqflow.EncodingJSON
	}

	if err = d.Validate(); err != nil {
		return reqflow.Descriptor{}, fmt.Errorf("descriptor: %w", err)
	}

	return d, nil
}

func parsePairs(items []string, sep string) (map[string]string, error) {
	if len(items) == 0 {
		return nil, nil
	}

	out := make(map[string]string, len(items))

	for _, item := range items {
		key, value, ok := strings.Cut(item, sep)
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("malformed %q", item)
		}

		out[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	return out, nil
}

func printError(w io.Writer, err error) {
	red := color.New(color.FgRed, color.Bold)
	red.Fprintf(w, "error: %v\n", err) //nolint:errcheck // best effort

	perr, ok := reqflow.AsError(err)
	if !ok {
		return
	}

	yellow := color.New(color.FgYellow)

	if perr.Context.UserMessage != "" {
		yellow.Fprintf(w, "  %s\n", perr.Context.UserMessage) //nolint:errcheck // best effort
	}

	// maxRetriesExceeded wraps the last attempt's error; show the whole chain.
	for ok {
		yellow.Fprintf(w, "  kind: %s\n", perr.Kind) //nolint:errcheck // best effort

		if perr.Context.HasStatus() {
			yellow.Fprintf(w, "  status: %d\n", perr.Context.StatusCode) //nolint:errcheck // best effort
		}

		perr, ok = reqflow.AsError(perr.Context.UnderlyingError)
	}
}
