// Package mapping turns raw records into partial entity trees using an
// operator-supplied mapping spec. String leaves of the spec are path
// expressions resolved against the record; nested objects are recursed into;
// every other leaf is copied literally.
package mapping

import (
	"fmt"
	"sort"

	"github.com/azure/resource-graph-catalog-ingester/pathexpr"
	"github.com/azure/resource-graph-catalog-ingester/value"
)

type nodeKind int

const (
	nodePath nodeKind = iota
	nodeObject
	nodeLiteral
)

type node struct {
	kind     nodeKind
	path     pathexpr.Expression
	literal  value.Value
	children map[string]*node
}

// Program is a mapping spec whose path expressions have been parsed once.
type Program struct {
	spec value.Value
	root *node
}

// Compile parses every string leaf of spec. The spec root must be an Object.
func Compile(spec value.Value) (*Program, error) {
	if !spec.IsObject() {
		return nil, fmt.Errorf("mapping must be an object, got %s", spec.Kind())
	}
	root, err := compileNode(spec, "")
	if err != nil {
		return nil, err
	}
	return &Program{spec: spec, root: root}, nil
}

func compileNode(spec value.Value, at string) (*node, error) {
	switch spec.Kind() {
	case value.KindString:
		text, _ := spec.AsString()
		expr, err := pathexpr.Parse(text)
		if err != nil {
			return nil, fmt.Errorf("mapping %s: %w", at, err)
		}
		return &node{kind: nodePath, path: expr}, nil
	case value.KindObject:
		children := map[string]*node{}
		for _, key := range spec.Keys() {
			field, _ := spec.Get(key)
			child, err := compileNode(field, joinKey(at, key))
			if err != nil {
				return nil, err
			}
			children[key] = child
		}
		return &node{kind: nodeObject, children: children}, nil
	default:
		return &node{kind: nodeLiteral, literal: spec}, nil
	}
}

func joinKey(parent string, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

// Spec returns the mapping spec the program was compiled from.
func (program *Program) Spec() value.Value {
	return program.spec
}

// Apply evaluates the program against source. Keys whose path is absent in
// source are omitted; explicit nulls are kept.
func (program *Program) Apply(source value.Value) value.Value {
	output, _ := program.root.apply(source)
	return output
}

func (n *node) apply(source value.Value) (value.Value, bool) {
	switch n.kind {
	case nodePath:
		return pathexpr.Resolve(source, n.path)
	case nodeObject:
		fields := make(map[string]value.Value, len(n.children))
		for key, child := range n.children {
			if resolved, ok := child.apply(source); ok {
				fields[key] = resolved
			}
		}
		return value.Object(fields), true
	default:
		return n.literal, true
	}
}

// Paths lists the output location and source expression of every path leaf,
// ordered by output location.
func (program *Program) Paths() []PathBinding {
	bindings := []PathBinding{}
	program.root.collect("", &bindings)
	sort.Slice(bindings, func(i, j int) bool {
		return bindings[i].Target < bindings[j].Target
	})
	return bindings
}

type PathBinding struct {
	Target string
	Source pathexpr.Expression
}

func (n *node) collect(at string, bindings *[]PathBinding) {
	switch n.kind {
	case nodePath:
		*bindings = append(*bindings, PathBinding{Target: at, Source: n.path})
	case nodeObject:
		for key, child := range n.children {
			child.collect(joinKey(at, key), bindings)
		}
	}
}

// Apply compiles spec and evaluates it against source in one step. It fails
// only when spec contains a malformed path expression.
func Apply(source value.Value, spec value.Value) (value.Value, error) {
	program, err := Compile(spec)
	if err != nil {
		return value.Null(), err
	}
	return program.Apply(source), nil
}
