package compose

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/shipctl/ship/pkg/types"
)

// CLI implements types.ComposeProject by invoking `docker compose`.
type CLI struct {
	runner Runner
}

// NewCLI creates a CLI backed by runner.
//
// Parameters:
//   - runner: Process runner, or nil for ExecRunner with the default binary.
//
// Returns:
//   - *CLI: Compose collaborator.
func NewCLI(runner Runner) *CLI {
	if runner == nil {
		runner = ExecRunner{}
	}

	return &CLI{runner: runner}
}

// projectConfig is the subset of `compose config --format json` the tool reads.
type projectConfig struct {
	Name     string                   `json:"name"`
	Services map[string]serviceConfig `json:"services"`
}

type serviceConfig struct {
	Image string `json:"image"`
}

// psEntry is one container row of `compose ps --format json`.
type psEntry struct {
	ID      string `json:"ID"`
	Name    string `json:"Name"`
	Service string `json:"Service"`
}

// Project returns the project name and the services sorted by name, read from a
// single `compose config --format json` invocation.
//
// Parameters:
//   - ctx: Context for the invocation.
//   - file: Compose file path.
//
// Returns:
//   - types.Project: Project name, possibly empty, and services whose image may be
//     empty for build-only services.
//   - error: Non-nil if the config could not be produced or parsed.
func (c *CLI) Project(ctx context.Context, file string) (types.Project, error) {
	config, err := c.config(ctx, file)
	if err != nil {
		return types.Project{}, err
	}

	services := make([]types.Service, 0, len(config.Services))
	for name, svc := range config.Services {
		services = append(services, types.Service{Name: name, Image: svc.Image})
	}

	slices.SortFunc(services, func(a, b types.Service) int { return strings.Compare(a.Name, b.Name) })

	return types.Project{Name: config.Name, Services: services}, nil
}

// Images returns the flat image list of `compose config --images`, one per line.
func (c *CLI) Images(ctx context.Context, file string) ([]string, error) {
	output, err := c.output(ctx, file, "config", "--images")
	if err != nil {
		return nil, err
	}

	var images []string

	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			images = append(images, line)
		}
	}

	return images, nil
}

// Containers maps each service to the ID of its running container.
//
// Both the JSON array emitted by older compose releases and the newline-delimited
// objects of newer ones are accepted. The first container listed for a service wins.
//
// Parameters:
//   - ctx: Context for the invocation.
//   - file: Compose file path.
//
// Returns:
//   - map[string]string: Service name to container ID.
//   - error: Non-nil if the listing failed or could not be parsed.
func (c *CLI) Containers(ctx context.Context, file string) (map[string]string, error) {
	output, err := c.output(ctx, file, "ps", "--format", "json")
	if err != nil {
		return nil, err
	}

	entries, err := parseContainers(output)
	if err != nil {
		return nil, err
	}

	containers := make(map[string]string, len(entries))

	for _, entry := range entries {
		id := entry.ID
		if id == "" {
			id = entry.Name
		}

		if entry.Service == "" || id == "" {
			continue
		}

		if _, seen := containers[entry.Service]; !seen {
			containers[entry.Service] = id
		}
	}

	return containers, nil
}

// Pull pulls the stack's images, streaming both output streams to out.
func (c *CLI) Pull(ctx context.Context, file string, out io.Writer) error {
	return c.stream(ctx, file, out, "pull")
}

// Up force-recreates the stack's containers detached, streaming output to out.
func (c *CLI) Up(ctx context.Context, file string, out io.Writer) error {
	return c.stream(ctx, file, out, "up", "-d", "--force-recreate")
}

func (c *CLI) config(ctx context.Context, file string) (projectConfig, error) {
	output, err := c.output(ctx, file, "config", "--format", "json")
	if err != nil {
		return projectConfig{}, err
	}

	var config projectConfig
	if err := json.Unmarshal(output, &config); err != nil {
		return projectConfig{}, fmt.Errorf("%w: %w", errParseConfig, err)
	}

	return config, nil
}

// output runs a compose subcommand and returns its standard output.
func (c *CLI) output(ctx context.Context, file string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer

	argv := composeArgs(file, args...)
	clog := logrus.WithFields(logrus.Fields{"file": file, "args": argv})
	clog.Debug("Running compose command")

	if err := c.runner.Run(ctx, argv, &stdout, &stderr); err != nil {
		clog.WithError(err).WithField("stderr", strings.TrimSpace(stderr.String())).
			Debug("Compose command failed")

		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s: %w", errCommandFailed, msg, err)
		}

		return nil, fmt.Errorf("%w: %w", errCommandFailed, err)
	}

	return stdout.Bytes(), nil
}

func (c *CLI) stream(ctx context.Context, file string, out io.Writer, args ...string) error {
	argv := composeArgs(file, args...)
	logrus.WithFields(logrus.Fields{"file": file, "args": argv}).Debug("Running compose command")

	if err := c.runner.Run(ctx, argv, out, out); err != nil {
		return fmt.Errorf("%w: %w: %w", types.ErrUpdateStepFailed, errCommandFailed, err)
	}

	return nil
}

func composeArgs(file string, args ...string) []string {
	return append([]string{"compose", "-f", file}, args...)
}

func parseContainers(output []byte) ([]psEntry, error) {
	trimmed := bytes.TrimSpace(output)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var entries []psEntry
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, fmt.Errorf("%w: %w", errParseContainers, err)
		}

		return entries, nil
	}

	var entries []psEntry

	decoder := json.NewDecoder(bytes.NewReader(trimmed))

	for {
		var entry psEntry

		err := decoder.Decode(&entry)
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("%w: %w", errParseContainers, err)
		}

		entries = append(entries, entry)
	}

	return entries, nil
}
