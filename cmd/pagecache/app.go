package main

import (
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/jonwraymond/pagecache/cache"
	"github.com/jonwraymond/pagecache/config"
	"github.com/jonwraymond/pagecache/observe"
)

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "pagecache",
		Usage: "full-page output cache for HTTP handlers",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "configuration file (YAML or JSON)",
				Sources: cli.EnvVars("PAGECACHE_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			clearCommand(),
			keyCommand(),
		},
	}
}

// loadConfig reads --config, or returns the defaults when it is unset.
func loadConfig(cmd *cli.Command) (config.File, error) {
	path := cmd.String("config")
	if path == "" {
		return config.Default(), nil
	}
	f, err := config.Load(path)
	if err != nil {
		return config.File{}, fmt.Errorf("load %s: %w", path, err)
	}
	return f, nil
}

// newFileStore builds the FileStore described by the cache section.
func newFileStore(c config.Cache, logger observe.Logger) (*cache.FileStore, error) {
	dirMode, fileMode, err := c.Modes()
	if err != nil {
		return nil, err
	}
	return cache.NewFileStore(c.Dir(), c.Config().Lifetime,
		cache.WithDirMode(dirMode),
		cache.WithFileMode(fileMode),
		cache.WithStoreLogger(logger),
	), nil
}

// newPageCache wires a PageCache over store with rules loaded from c.
func newPageCache(c config.Cache, store cache.Store, mw *observe.Middleware) (*cache.PageCache, error) {
	return cache.New(c.Config(), store,
		cache.WithRules(cache.NewRulesFromConfig(c.Rules())),
		cache.WithObserveMiddleware(mw),
	)
}
