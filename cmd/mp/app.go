// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"

	"github.com/soarmarket/mp/internal/config"
	"github.com/soarmarket/mp/internal/pipeline"
	"github.com/soarmarket/mp/internal/publish"
)

type (
	// App wires CLI services and shared dependencies. It is the composition
	// root for the CLI layer: every Cobra command handler receives an App
	// reference and reaches configuration and storage through it.
	App struct {
		Config       ConfigProvider
		NewPublisher PublisherFactory
		// Clock times units. Nil uses the wall clock.
		Clock  pipeline.Clock
		stdout io.Writer
		stderr io.Writer
	}

	// Dependencies defines the injection points for building an App. Nil fields
	// are replaced with production defaults by NewApp.
	Dependencies struct {
		Config       ConfigProvider
		NewPublisher PublisherFactory
		Clock        pipeline.Clock
		Stdout       io.Writer
		Stderr       io.Writer
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}

	// PublisherFactory builds the publisher of a run from its configuration.
	PublisherFactory func(ctx context.Context, cfg publish.Config) (*publish.Publisher, error)
)

// NewApp creates the CLI composition root with defaults for missing dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.NewPublisher == nil {
		deps.NewPublisher = publish.NewS3
	}

	return &App{
		Config:       deps.Config,
		NewPublisher: deps.NewPublisher,
		Clock:        deps.Clock,
		stdout:       deps.Stdout,
		stderr:       deps.Stderr,
	}
}
