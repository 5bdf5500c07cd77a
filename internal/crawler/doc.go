// Package crawler implements the single-domain crawl engine: a pool of
// workers draining a shared frontier, fetching pages, reporting what they
// found and admitting newly discovered links exactly once.
//
// Fetching, parsing, reporting and the visited ledger are collaborators
// supplied through the interfaces in this package.
package crawler
