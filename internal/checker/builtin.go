package checker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/nodecheck/internal/check"
	"github.com/roach88/nodecheck/internal/document"
)

// Builtin checker ids.
const (
	RequiredNameID      = "required-name"
	DanglingReferenceID = "dangling-reference"
	EmptyContainerID    = "empty-container"
)

// NameProperty is the property RequiredName looks for.
const NameProperty = "name"

// RequiredName reports every node without a non-blank name property.
type RequiredName struct{}

// Info implements Checker.
func (RequiredName) Info() check.CheckerInfo {
	return check.CheckerInfo{ID: RequiredNameID, Name: "Required name"}
}

// Check implements Checker.
func (RequiredName) Check(ctx context.Context, target Target, sink ReportSink) error {
	return Walk(ctx, target, func(node document.Node) error {
		if v, ok := node.Property(NameProperty); ok && strings.TrimSpace(v) != "" {
			return nil
		}
		sink.Report(check.Message{
			Affected: node.Ref,
			Location: check.PropertyLocation(NameProperty),
			Severity: check.SeverityError,
			Text:     fmt.Sprintf("%s %q has no name", node.Kind, node.Label),
		})
		return nil
	})
}

// DanglingReference reports references whose target no longer resolves.
type DanglingReference struct{}

// Info implements Checker.
func (DanglingReference) Info() check.CheckerInfo {
	return check.CheckerInfo{ID: DanglingReferenceID, Name: "Dangling reference"}
}

// Check implements Checker.
func (DanglingReference) Check(ctx context.Context, target Target, sink ReportSink) error {
	return Walk(ctx, target, func(node document.Node) error {
		names := make([]string, 0, len(node.References))
		for name := range node.References {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			key := node.References[name]
			_, err := target.Resolver.Resolve(ctx, key)
			if err == nil {
				continue
			}
			if !errors.Is(err, document.ErrNotFound) {
				return err
			}
			sink.Report(check.Message{
				Affected: node.Ref,
				Location: check.ReferenceLocation(name),
				Sources:  []check.Ref{check.NewRef(string(key))},
				Severity: check.SeverityWarning,
				Text:     fmt.Sprintf("reference %q points to a missing node", name),
			})
		}
		return nil
	})
}

// EmptyContainer reports nodes of container kinds that have no children.
type EmptyContainer struct {
	Kinds []string
}

// Info implements Checker.
func (EmptyContainer) Info() check.CheckerInfo {
	return check.CheckerInfo{ID: EmptyContainerID, Name: "Empty container"}
}

// Check implements Checker.
func (c EmptyContainer) Check(ctx context.Context, target Target, sink ReportSink) error {
	kinds := make(map[string]struct{}, len(c.Kinds))
	for _, k := range c.Kinds {
		kinds[k] = struct{}{}
	}
	return Walk(ctx, target, func(node document.Node) error {
		if _, ok := kinds[node.Kind]; !ok || len(node.Children) > 0 {
			return nil
		}
		sink.Report(check.Message{
			Affected: node.Ref,
			Location: check.WholeNodeLocation(),
			Severity: check.SeverityInfo,
			Text:     fmt.Sprintf("%s %q is empty", node.Kind, node.Label),
		})
		return nil
	})
}

// BuiltinIDs lists the builtin checker ids in registration order.
func BuiltinIDs() []string {
	return []string{RequiredNameID, DanglingReferenceID, EmptyContainerID}
}

// Builtins returns the builtin checkers named by ids, in the order given.
// An empty ids list selects all of them. containerKinds configures
// EmptyContainer.
func Builtins(ids []string, containerKinds []string) ([]Checker, error) {
	if len(ids) == 0 {
		ids = BuiltinIDs()
	}
	out := make([]Checker, 0, len(ids))
	for _, id := range ids {
		switch id {
		case RequiredNameID:
			out = append(out, RequiredName{})
		case DanglingReferenceID:
			out = append(out, DanglingReference{})
		case EmptyContainerID:
			out = append(out, EmptyContainer{Kinds: append([]string(nil), containerKinds...)})
		default:
			return nil, fmt.Errorf("unknown builtin checker %q", id)
		}
	}
	if err := Validate(out); err != nil {
		return nil, err
	}
	return out, nil
}
