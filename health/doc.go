// Package health reports whether the page cache can serve and store pages.
//
// A Checker reports one component's Status: Healthy, Degraded or Unhealthy.
// DirChecker probes the cache directory. An Aggregator runs registered
// checkers concurrently and folds their results into an overall status,
// which the HTTP handlers expose:
//
//	agg := health.NewAggregator()
//	agg.Register("cache_dir", health.NewDirChecker("cache_dir", store))
//	health.RegisterHandlers(mux, agg)
//
// A missing cache directory is Degraded, since FileStore creates it on the
// first write. An unwritable one is Unhealthy.
package health
