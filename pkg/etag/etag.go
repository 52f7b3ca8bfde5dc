// Package etag computes entity tags for plan documents and evaluates
// client-supplied preconditions against them.
package etag

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// Any matches every tag. Clients send it as "If-Match: *" to assert only
// that the resource exists.
const Any = "*"

// Compute returns the strong entity tag for a canonical document
// serialization: a quoted hex SHA-256 digest of the bytes.
//
// The function is pure and stable across process restarts. Byte-identical
// input always yields byte-identical tags; any content change yields a
// different tag with cryptographically negligible collision probability.
func Compute(canonical []byte) string {
	sum := sha256.Sum256(canonical)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

// Canonicalize re-encodes a JSON document into its canonical form: object
// keys sorted, compact encoding, no insignificant whitespace. Two documents
// that differ only in field order or formatting canonicalize to the same
// bytes, so their tags match.
func Canonicalize(doc []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after document")
	}

	// encoding/json emits object keys in sorted order for maps, which is
	// exactly the canonical form we need.
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode canonical form: %w", err)
	}
	return out, nil
}

// Match reports whether a client-supplied precondition value matches the
// current tag. The wildcard "*" matches any tag. Comparison is the strong
// comparison of RFC 9110: byte equality of the quoted tags, with a tolerant
// fallback for clients that omit the surrounding quotes.
func Match(precondition, current string) bool {
	precondition = strings.TrimSpace(precondition)
	if precondition == Any {
		return true
	}
	if precondition == current {
		return true
	}
	return trimQuotes(precondition) == trimQuotes(current)
}

func trimQuotes(tag string) string {
	if len(tag) >= 2 && strings.HasPrefix(tag, `"`) && strings.HasSuffix(tag, `"`) {
		return tag[1 : len(tag)-1]
	}
	return tag
}
