// Package dataset loads the census tract and population trend tables that
// drive the visualization.
//
// Two CSV files are read: one row per census tract (population, income, race
// and poverty counts, histogram bucket) and one row per year with the city and
// county population. [Loader] fetches both concurrently from HTTP, S3 or local
// paths, caches the raw bodies, and parses them into an immutable [Dataset].
//
// Per-area aggregates ([Summary]) are derived from the tracts and checked
// against published reference values with [ValidateSummaries].
package dataset
