package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/jonwraymond/pagecache/cache"
)

func keyCommand() *cli.Command {
	return &cli.Command{
		Name:      "key",
		Usage:     "print the cache key for a route",
		UsageText: "pagecache key --route R [--action A] [--extra V]... [--param K=V]...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "route", Usage: "route id", Required: true},
			&cli.StringFlag{Name: "action", Usage: "action id"},
			&cli.StringSliceFlag{Name: "extra", Usage: "extra key component, in order"},
			&cli.StringSliceFlag{Name: "param", Usage: "request parameter as name=value; repeat a name for a list"},
		},
		Action: runKey,
	}
}

func runKey(_ context.Context, cmd *cli.Command) error {
	params, err := parseParams(cmd.StringSlice("param"))
	if err != nil {
		return err
	}
	key, err := cache.NewDefaultKeyer().Key(cmd.String("route"), cmd.String("action"), cmd.StringSlice("extra"), params)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.Root().Writer, key)
	return err
}

// parseParams mirrors how the HTTP resolver flattens a query string:
// single values stay strings, repeated names become []string.
func parseParams(pairs []string) (map[string]any, error) {
	multi := make(map[string][]string, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --param %q, want name=value", p)
		}
		multi[name] = append(multi[name], value)
	}
	params := make(map[string]any, len(multi))
	for name, vs := range multi {
		if len(vs) == 1 {
			params[name] = vs[0]
			continue
		}
		params[name] = vs
	}
	return params, nil
}
