// Package validate implements the Request Validator: it rejects requests
// whose query parameters conflict with the session invariants frozen
// inside a decoded cursor.
package validate

import (
	"net/url"

	pkgerrors "github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/pkg/errors"
)

// sessionOwnedParams are the request-time parameters a cursor's presence
// disables, because they belong to session identity and would silently
// change the meaning of the cursor if allowed to vary mid-iteration.
var sessionOwnedParams = []string{
	"qp",
	"index-time",
	"with-descendants",
	"recursive",
	"with-history",
	"with-deleted",
	"length-hint",
}

// CheckConflicts fails with a client error naming the offending parameter
// if any session-owned query parameter is present alongside a position
// token. `to-hint` is exempt: it is the single parameter a client may
// legally pass on every request.
func CheckConflicts(query url.Values) error {
	for _, name := range sessionOwnedParams {
		if query.Has(name) {
			return humanConflictError(name)
		}
	}
	return nil
}

func humanConflictError(name string) error {
	switch name {
	case "with-history":
		return pkgerrors.New(pkgerrors.ErrConflictingQuery, 400,
			"`with-history` is determined in the beginning of the iteration")
	case "with-deleted":
		return pkgerrors.New(pkgerrors.ErrConflictingQuery, 400,
			"`with-deleted` is determined in the beginning of the iteration")
	case "recursive", "with-descendants":
		return pkgerrors.New(pkgerrors.ErrConflictingQuery, 400,
			"`recursive` is determined in the beginning of the iteration")
	case "length-hint":
		return pkgerrors.New(pkgerrors.ErrConflictingQuery, 400,
			"`length-hint` is determined in the beginning of the iteration")
	case "index-time":
		return pkgerrors.New(pkgerrors.ErrConflictingQuery, 400,
			"`index-time` is determined in the beginning of the iteration")
	case "qp":
		return pkgerrors.New(pkgerrors.ErrConflictingQuery, 400,
			"`qp` is determined in the beginning of the iteration")
	default:
		return pkgerrors.Newf(pkgerrors.ErrConflictingQuery, 400,
			"`%s` is determined in the beginning of the iteration", name)
	}
}

// RequirePosition fails with a client error if the position parameter is
// absent, per spec's "position param is mandatory" first-request handling
// for any request after the first.
func RequirePosition(query url.Values) (string, error) {
	token := query.Get("position")
	if token == "" {
		return "", pkgerrors.New(pkgerrors.ErrInvalidInput, 400, "position param is mandatory")
	}
	return token, nil
}

// ValidFormats is the set of accepted streamable format selectors.
var validFormats = map[string]bool{
	"text": true, "path": true, "tsv": true, "tab": true,
	"nt": true, "ntriples": true, "nq": true, "nquads": true,
}

// CheckFormat validates a requested response format. Any identifier
// beginning with "json" is also accepted.
func CheckFormat(name string) error {
	if name == "" {
		return nil
	}
	if validFormats[name] {
		return nil
	}
	if len(name) >= 4 && name[:4] == "json" {
		return nil
	}
	return pkgerrors.Newf(pkgerrors.ErrInvalidInput, 400,
		"requested format (%s) is invalid for as streamable response", name)
}
