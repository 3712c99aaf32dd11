// Package allowlist decides which upstream endpoints may be reached.
//
// Rules are a data table of path shapes rather than regular expressions.
// Each rule is a sequence of segments, either case-insensitive literals or
// typed parameters:
//
//	{number}   one or more ASCII digits
//	{address}  AddressLength (58) base32 characters
//	{txid}     TxIDLength (52) base32 characters
//
// Matching is done on the request path only; callers strip the query
// string. A matched path is then checked against the rule's methods:
//
//	rule, err := registry.Check(r.Method, r.URL.EscapedPath())
//	switch {
//	case errors.Is(err, allowlist.ErrEndpointNotAllowed):
//	case errors.Is(err, allowlist.ErrMethodNotAllowed):
//	}
package allowlist
