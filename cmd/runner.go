package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cloudplay/internal/player"
	"github.com/desertthunder/cloudplay/internal/services"
	"github.com/desertthunder/cloudplay/internal/shared"
	"github.com/desertthunder/cloudplay/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	api        *services.APIService
	source     player.Source
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	engine     *tasks.Engine
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Source defaults to API when unset.
type RunnerOpts struct {
	Config     *shared.Config
	API        *services.APIService
	Source     player.Source
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	var client tasks.APIClient
	if opts.API != nil {
		client = opts.API
		if opts.Source == nil {
			opts.Source = opts.API
		}
	}

	return &Runner{
		config:     opts.Config,
		api:        opts.API,
		source:     opts.Source,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		engine:     tasks.NewEngine(nil, nil, client, opts.Logger),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, playlistsCommand, queueCommand, cacheCommand, libraryCommand, apiCommand, metricsCommand, playCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger used by the runner and everything it opens afterwards.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

func (r *Runner) requireSource() error {
	if r.source == nil {
		return fmt.Errorf("%w: music API not initialized", shared.ErrServiceUnavailable)
	}
	return nil
}

func (r *Runner) userID(flag int64) (int64, error) {
	if flag != 0 {
		return flag, nil
	}
	if r.config.API.UserID != 0 {
		return r.config.API.UserID, nil
	}
	return 0, fmt.Errorf("%w: --uid or api.user_id", shared.ErrMissingConfig)
}

// writeJSON encodes data to the runner's output followed by a newline.
func (r *Runner) writeJSON(data any, pretty bool) error {
	marshal := json.Marshal
	if pretty {
		marshal = func(v any) ([]byte, error) { return json.MarshalIndent(v, "", "  ") }
	}

	output, err := marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if _, err := io.WriteString(r.output, "\n"); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	if _, err := fmt.Fprintf(r.output, format, args...); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// writePlainln writes a formatted line preceded by a blank line.
func (r *Runner) writePlainln(format string, args ...any) error {
	return r.writePlain("\n"+format+"\n", args...)
}

func (r *Runner) writePlainHeader(title string) {
	rule := strings.Repeat("═", 39)
	r.writePlain("%s\n%s\n%s\n", rule, title, rule)
}
