// Package portscan implements the TCP connect scanning engine for recondor.
//
// The engine resolves a target, fans a connect probe out over the requested
// port set under a bounded worker pool, classifies each outcome as open,
// closed, filtered, or errored, and aggregates the open ports into a single
// deterministic, port-sorted result. The package exposes only data in and
// data out: presentation and persistence belong to the callers in cmd/cli,
// internal/api, and internal/report.
package portscan
