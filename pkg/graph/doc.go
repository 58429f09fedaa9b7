// Package graph implements the node graph: a handle table shared by every
// scope of a project, the per-scope store of nodes and edges, and the
// evaluator that computes a requested node from its dependencies.
package graph
