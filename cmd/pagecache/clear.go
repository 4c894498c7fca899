package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/jonwraymond/pagecache/observe"
)

func clearCommand() *cli.Command {
	return &cli.Command{
		Name:   "clear",
		Usage:  "remove every cached page",
		Action: runClear,
	}
}

func runClear(ctx context.Context, cmd *cli.Command) error {
	f, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := observe.NopLogger()
	if f.Observe.Logging.Enabled {
		logger = observe.NewLogger(f.Observe.Logging.Level)
	}

	store, err := newFileStore(f.Cache, logger)
	if err != nil {
		return err
	}
	pc, err := newPageCache(f.Cache, store, observe.NewMiddleware(nil, nil, logger))
	if err != nil {
		return err
	}
	if err := pc.Clear(ctx); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.Root().Writer, "cleared %s\n", store.Dir())
	return err
}
