// Package pagination walks Lever's cursor-paginated list endpoints.
//
// Lever list responses look like {"data": [...], "hasNext": true, "next": "..."}
// and the next page is requested by passing the "next" token back as the
// "offset" query parameter. Pages are fetched strictly one after another:
// page N+1 is only requested once page N has been decoded.
//
// Example usage:
//
//	p := pagination.New(executor, pagination.DefaultConfig())
//	rs, err := p.FetchAll(ctx, pagination.Query{
//		Operation: "list_open_roles",
//		Path:      "/postings",
//		Params:    url.Values{"state": {"published"}},
//	}, 250)
//
// Every walk is bounded by maxItems. The result reports Truncated whenever
// it may not hold everything the server has, including when the server
// claims more pages but sends no usable cursor.
//
// When the caller's deadline passes mid-walk the paginator returns what it
// has collected, marked Truncated and DeadlineExceeded, unless the policy
// asks for a hard failure. Explicit cancellation always fails.
package pagination
