// Package graph defines the codeflow document model and its wire format.
//
// A codeflow document is a UTF-8 JSON file describing code entities (nodes),
// the relationships between them (edges) and optional visual groups. The
// document is the single source of truth: manual layout overrides (node and
// group positions, group sizes) are stored inside it, which is what lets
// "reset layout" be a plain document edit.
//
// # Document Format
//
//	{
//	  "version": "1.0",
//	  "metadata": {"title": "Request flow", "generated": "2025-01-02T15:04:05Z"},
//	  "nodes": [
//	    {"id": "handler", "label": "ServeHTTP", "kind": "method",
//	     "location": {"file": "server.go", "startLine": 42}, "groupId": "http"},
//	    {"id": "store", "label": "Store.Get", "kind": "method",
//	     "location": {"file": "store.go", "startLine": 10},
//	     "position": {"x": 120, "y": 300}}
//	  ],
//	  "edges": [{"id": "e1", "source": "handler", "target": "store", "kind": "calls"}],
//	  "groups": [{"id": "http", "label": "HTTP layer"}],
//	  "layout": {"type": "layered", "direction": "TB"}
//	}
//
// # Lifecycle
//
// A [Graph] is never mutated in place by the protocol. Every document change
// produces new text which is parsed into a fresh value with [Parse].
// [ApplyPositions] and [ClearOverrides] return modified copies of a Graph.
// Edits written back to a shared document go through [Patch] instead, which
// touches only the override fields and keeps members the Graph type does not
// model; the result is committed as one whole-document replace.
//
// # Coordinates
//
// All persisted coordinates are integers. [ApplyPositions] rounds incoming
// values to the nearest integer so that repeated drags never produce
// fractional jitter in the document diff.
package graph
