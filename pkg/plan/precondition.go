package plan

import (
	"github.com/planvault/planvault/pkg/etag"
)

// Decision is the outcome of evaluating a client precondition against the
// current stored state for one operation.
type Decision int

const (
	// Proceed allows the operation to run against the store.
	Proceed Decision = iota

	// NotModified short-circuits a read whose If-None-Match matched.
	NotModified

	// Conflict rejects a create whose key already holds a record.
	Conflict

	// PreconditionFailed rejects a mutation whose If-Match did not match.
	PreconditionFailed

	// NotFound rejects an operation on an absent key.
	NotFound
)

// String returns the decision name for logs and metrics labels.
func (d Decision) String() string {
	switch d {
	case Proceed:
		return "proceed"
	case NotModified:
		return "not_modified"
	case Conflict:
		return "conflict"
	case PreconditionFailed:
		return "precondition_failed"
	case NotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// EvaluateCreate decides a create. Presence of the key is the sole
// precondition: no tag comparison is possible for a resource that does not
// exist yet, which is why create alone yields Conflict rather than
// PreconditionFailed.
func EvaluateCreate(exists bool) Decision {
	if exists {
		return Conflict
	}
	return Proceed
}

// EvaluateRead decides a read given the stored tag and an optional
// If-None-Match value. A matching value (including "*") short-circuits to
// NotModified; anything else returns the full record.
func EvaluateRead(exists bool, currentTag, ifNoneMatch string) Decision {
	if !exists {
		return NotFound
	}
	if ifNoneMatch != "" && etag.Match(ifNoneMatch, currentTag) {
		return NotModified
	}
	return Proceed
}

// EvaluateWrite decides a replace or partial update. If-Match is required:
// an absent value is treated as a non-matching tag so the decision set
// stays closed over the five outcomes. Absence of the record wins over the
// tag comparison.
func EvaluateWrite(exists bool, currentTag, ifMatch string) Decision {
	if !exists {
		return NotFound
	}
	if ifMatch == "" || !etag.Match(ifMatch, currentTag) {
		return PreconditionFailed
	}
	return Proceed
}

// EvaluateDelete decides a delete. If-Match is optional: when absent the
// delete is unconditional, when present it must match.
func EvaluateDelete(exists bool, currentTag, ifMatch string) Decision {
	if !exists {
		return NotFound
	}
	if ifMatch != "" && !etag.Match(ifMatch, currentTag) {
		return PreconditionFailed
	}
	return Proceed
}
