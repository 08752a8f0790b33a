// Package node is the change-tracking model the indexes consume: node
// properties, property changes and node lifecycle events.
package node

import (
	"strconv"
	"strings"
	"time"
)

// Names of reserved and path-derived properties
const (
	PrimaryType   = "jcr:primaryType"
	MixinTypes    = "jcr:mixinTypes"
	PathName      = "jcr:path"
	NameName      = "jcr:name"
	DepthName     = "mode:depth"
	LocalNameName = "mode:localName"
)

// Property is a named property with its raw values
type Property struct {
	Name   string `json:"name"`
	Values []any  `json:"values"`
}

// First returns the first value, or nil when there is none
func (p *Property) First() any {
	if p == nil || len(p.Values) == 0 {
		return nil
	}
	return p.Values[0]
}

// Change is a change of one property. Old is nil for an added property, New
// is nil for a removed one.
type Change struct {
	Old *Property `json:"old,omitempty"`
	New *Property `json:"new,omitempty"`
}

// Node is the state of a node at creation or removal
type Node struct {
	Key         string               `json:"key"`
	Workspace   string               `json:"workspace"`
	ParentKey   string               `json:"parentKey,omitempty"`
	Path        string               `json:"path"`
	PrimaryType string               `json:"primaryType"`
	MixinTypes  []string             `json:"mixinTypes,omitempty"`
	Properties  map[string]*Property `json:"properties,omitempty"`
	Queryable   bool                 `json:"queryable"`
}

// EventKind is a kind of node lifecycle event
type EventKind string

// Event kinds
const (
	NodeAdded          EventKind = "added"
	PropertiesModified EventKind = "modified"
	NodeRemoved        EventKind = "removed"
)

// Event is a node lifecycle event. Node is set for NodeAdded and NodeRemoved;
// Workspace, Key and Changes for PropertiesModified.
type Event struct {
	Kind      EventKind          `json:"kind"`
	Time      time.Time          `json:"time"`
	Workspace string             `json:"workspace,omitempty"`
	Key       string             `json:"key,omitempty"`
	Node      *Node              `json:"node,omitempty"`
	Changes   map[string]*Change `json:"changes,omitempty"`
	Queryable bool               `json:"queryable,omitempty"`
}

// IsRoot reports whether the path is the root path
func IsRoot(path string) bool {
	return path == "/" || path == ""
}

// Depth returns the number of segments of a path; the root has depth 0
func Depth(path string) int64 {
	if IsRoot(path) {
		return 0
	}
	return int64(strings.Count(strings.Trim(path, "/"), "/") + 1)
}

// Name returns the last segment of a path without its same-name-sibling
// index, or "" for the root
func Name(path string) string {
	if IsRoot(path) {
		return ""
	}
	name := path[strings.LastIndexByte(strings.TrimSuffix(path, "/"), '/')+1:]
	name = strings.TrimSuffix(name, "/")
	if i := strings.IndexByte(name, '['); i >= 0 && strings.HasSuffix(name, "]") {
		if _, err := strconv.Atoi(name[i+1 : len(name)-1]); err == nil {
			name = name[:i]
		}
	}
	return name
}

// LocalName returns the name of the last segment without its namespace
// prefix
func LocalName(path string) string {
	name := Name(path)
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[i+1:]
	}
	return name
}
