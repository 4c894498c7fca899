// Package config loads the pagecache configuration file.
//
// Files are YAML or JSON, chosen by extension. `${VAR}` references are
// expanded from the environment before parsing and a missing variable is an
// error; `$$` yields a literal dollar sign. Values not present in the file
// keep the defaults returned by Default. The csrf secret may be given as a
// reference, "secretref:file:/run/secrets/csrf" or "secretref:env:NAME",
// so that it does not live in the file itself.
//
// A Watcher reloads the file when it changes so that the cache exclusion
// rules can be swapped at runtime.
package config
