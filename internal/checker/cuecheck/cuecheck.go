// Package cuecheck validates node properties against CUE definitions.
//
// A schema file declares one definition per node kind:
//
//	#Product: {
//		name:  string & != ""
//		price: =~"^[0-9]+$"
//	}
//
// Nodes whose kind has no definition are not checked. Properties are
// strings, so constraints are written against string values.
package cuecheck

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/ast"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/roach88/nodecheck/internal/check"
	"github.com/roach88/nodecheck/internal/checker"
	"github.com/roach88/nodecheck/internal/document"
)

// IDPrefix prefixes the checker id; the rest is the schema's base name.
const IDPrefix = "cue:"

// Checker is a checker.Checker backed by a compiled CUE schema.
type Checker struct {
	id   string
	name string

	// mu serialises evaluation; a cue.Context is not safe for concurrent use.
	mu   sync.Mutex
	ctx  *cue.Context
	root cue.Value
}

var _ checker.Checker = (*Checker)(nil)

// Load compiles the schema file at path.
func Load(path string) (*Checker, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	return Compile(filepath.Base(path), src)
}

// Compile compiles schema source. filename is used for the checker id and
// error positions.
func Compile(filename string, src []byte) (*Checker, error) {
	ctx := cuecontext.New()
	root := ctx.CompileBytes(src, cue.Filename(filename))
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", filename, err)
	}
	if err := root.Validate(); err != nil {
		return nil, fmt.Errorf("validate schema %s: %w", filename, err)
	}

	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	return &Checker{
		id:   IDPrefix + base,
		name: "CUE schema " + filename,
		ctx:  ctx,
		root: root,
	}, nil
}

// Info implements checker.Checker.
func (c *Checker) Info() check.CheckerInfo {
	return check.CheckerInfo{ID: c.id, Name: c.name}
}

// Kinds returns the node kinds the schema defines, sorted.
func (c *Checker) Kinds() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var kinds []string
	iter, err := c.root.Fields(cue.Definitions(true))
	if err != nil {
		return nil
	}
	for iter.Next() {
		sel := iter.Selector()
		if sel.IsDefinition() {
			kinds = append(kinds, strings.TrimPrefix(sel.String(), "#"))
		}
	}
	sort.Strings(kinds)
	return kinds
}

// Check implements checker.Checker.
func (c *Checker) Check(ctx context.Context, target checker.Target, sink checker.ReportSink) error {
	return checker.Walk(ctx, target, func(node document.Node) error {
		for _, msg := range c.validate(node) {
			sink.Report(msg)
		}
		return nil
	})
}

func (c *Checker) validate(node document.Node) []check.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !ast.IsValidIdent("#" + node.Kind) {
		return nil
	}
	def := c.root.LookupPath(cue.MakePath(cue.Def(node.Kind)))
	if !def.Exists() {
		return nil
	}

	props := node.Properties
	if props == nil {
		props = map[string]string{}
	}
	unified := def.Unify(c.ctx.Encode(props))
	err := unified.Validate(cue.All(), cue.Concrete(true))
	if err == nil {
		return nil
	}

	type seenKey struct {
		loc  check.Location
		text string
	}
	seen := make(map[seenKey]struct{})

	var msgs []check.Message
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		text := fmt.Sprintf(format, args...)
		loc := location(e.Path())

		k := seenKey{loc: loc, text: text}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}

		msgs = append(msgs, check.Message{
			Affected: node.Ref,
			Location: loc,
			Severity: check.SeverityError,
			Text:     text,
		})
	}
	return msgs
}

// location maps a CUE error path onto a message location. Leading
// definition selectors are dropped; the first remaining element is the
// property name.
func location(path []string) check.Location {
	for len(path) > 0 && strings.HasPrefix(path[0], "#") {
		path = path[1:]
	}
	if len(path) == 0 {
		return check.WholeNodeLocation()
	}
	return check.PropertyLocation(path[0])
}
