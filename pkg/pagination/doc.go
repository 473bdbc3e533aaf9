// Package pagination aggregates offset-paginated listing endpoints into a
// single ordered record set.
//
// Listing APIs such as Duspot wrap each page in an envelope carrying the
// total item count of the query and the members of the requested page. The
// fetcher reads the first page to learn the total and the page size,
// derives the number of pages and fetches the rest in ascending order.
//
// Example usage:
//
//	fetcher := pagination.NewFetcher(pageFetcher, pagination.DefaultConfig())
//	records, err := fetcher.FetchAll(ctx, "https://api.duspot.nl/api/products")
//
// The fetcher:
//   - Fetches page 1 once and reuses it
//   - Returns an empty result without further requests when the total is 0
//   - Fetches sequentially by default, or through a worker pool when
//     MaxConcurrency > 1; results are always ordered by page number
//   - Aborts on the first failed page and never returns partial data
package pagination
