// Package check defines the values exchanged between checker backends, the
// job engine and callers: target references, diagnostic messages and results.
//
// Every type here is a plain value. A Result is immutable once built and its
// ID is a content fingerprint of its messages, so two results with equal
// message sequences always carry the same ID regardless of when they were
// produced.
package check
