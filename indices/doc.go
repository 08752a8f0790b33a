// Package indices contains index definitions.
//
// A definition names an index, the workspace it covers and the single
// property column it indexes:
//
//	def := indices.Definition{
//	    Name:      "byTitle",
//	    Kind:      indices.KindValue,
//	    Workspace: "default",
//	    Columns:   []indices.Column{{Property: "title", Type: value.String}},
//	}
//
// Definitions are validated once, before an index is built. Validation
// computes the definition's Purpose, the tag that decides how changes of
// nodes are turned into index entries.
//
// Definitions are usually kept in a JSON file (a list of definitions). Load
// reads such a file and Watch reloads it whenever it changes.
package indices
