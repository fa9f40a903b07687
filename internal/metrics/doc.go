// SPDX-License-Identifier: MPL-2.0

// Package metrics records pipeline stage timings and writes them in the
// Prometheus text format, for collection by a node exporter textfile
// collector or as a CI artifact.
package metrics
