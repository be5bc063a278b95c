// Package querycache holds the client-side read cache of order list views.
//
// A Namespace (e.g. "orders") fans out to any number of views, one per
// distinct Params tuple. Views are created read-through by Query, rewritten
// in place by Replace, and dropped wholesale by InvalidateNamespace. Entries
// expire on the configured TTL.
package querycache
