// Package ingest serves the HTTP API that receives pages reported by the
// crawler and lists what has been stored.
package ingest
