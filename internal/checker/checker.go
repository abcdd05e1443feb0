// Package checker defines the pluggable checker contract and the builtin
// rule set.
//
// A checker inspects a resolved node, usually walking its subtree, and
// reports findings to a sink. Checkers run on job goroutines and must not
// retain the sink or the node after Check returns.
package checker

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/nodecheck/internal/check"
	"github.com/roach88/nodecheck/internal/document"
)

// Checker is one source of messages.
type Checker interface {
	Info() check.CheckerInfo
	Check(ctx context.Context, target Target, sink ReportSink) error
}

// Target is the node under check plus read access to the rest of its
// document.
type Target struct {
	Node     document.Node
	Resolver document.Resolver
}

// ReportSink receives messages from a running checker.
type ReportSink interface {
	Report(msg check.Message)
}

// Collector is a ReportSink that keeps messages in report order.
type Collector struct {
	msgs []check.Message
}

// Report implements ReportSink.
func (c *Collector) Report(msg check.Message) {
	c.msgs = append(c.msgs, msg)
}

// Messages returns the collected messages.
func (c *Collector) Messages() []check.Message {
	return c.msgs
}

// Len returns how many messages were collected.
func (c *Collector) Len() int {
	return len(c.msgs)
}

// Func adapts a function into a Checker.
type Func struct {
	ID   string
	Name string
	Fn   func(ctx context.Context, target Target, sink ReportSink) error
}

// Info implements Checker.
func (f Func) Info() check.CheckerInfo {
	name := f.Name
	if name == "" {
		name = f.ID
	}
	return check.CheckerInfo{ID: f.ID, Name: name}
}

// Check implements Checker.
func (f Func) Check(ctx context.Context, target Target, sink ReportSink) error {
	if f.Fn == nil {
		return nil
	}
	return f.Fn(ctx, target, sink)
}

// Walk visits target.Node and its descendants in pre-order. Children that
// disappear while walking are skipped. Walk stops early on context
// cancellation or when fn returns an error.
func Walk(ctx context.Context, target Target, fn func(node document.Node) error) error {
	var visit func(node document.Node) error
	visit = func(node document.Node) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(node); err != nil {
			return err
		}
		for _, key := range node.Children {
			child, err := target.Resolver.Resolve(ctx, key)
			if errors.Is(err, document.ErrNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("walk %s: %w", key, err)
			}
			if err := visit(child); err != nil {
				return err
			}
		}
		return nil
	}
	return visit(target.Node)
}

// Validate checks a checker list for empty or duplicate ids.
func Validate(checkers []Checker) error {
	seen := make(map[string]struct{}, len(checkers))
	for i, c := range checkers {
		if c == nil {
			return fmt.Errorf("checker %d is nil", i)
		}
		id := c.Info().ID
		if id == "" {
			return fmt.Errorf("checker %d has an empty id", i)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("duplicate checker id %q", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}
