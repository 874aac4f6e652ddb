// Package pagination fetches every page of a tracker search and merges the
// pages into one result.
//
// The tracker reports the size of the result set in the first page only, so a
// search runs in two phases:
//
//   - Phase 1 fetches offset 0. Any failure here is fatal: without the total
//     there is nothing left to schedule.
//   - Phase 2 derives the remaining offsets from the total and fetches them in
//     rounds. Every task of a round finishes before the next round starts.
//     Failed pages are dispatched again in the next round, successful ones
//     never are.
//
// Example usage:
//
//	q, _ := query.New("project = FPB", query.DefaultPageSize, []string{"summary"})
//	searcher := pagination.NewSearcher[issue.RawIssue](httpClient, issue.NewParser[issue.RawIssue](), pagination.DefaultConfig())
//	result, err := searcher.Search(ctx, q)
//
// Retries are bounded by RetryPolicy. Parse failures get a smaller budget than
// transport or status failures because a schema mismatch fails the same way
// on every attempt. A search that exhausts the budget for any page returns an
// error and no partial result.
package pagination
