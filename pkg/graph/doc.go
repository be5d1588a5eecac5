/*
Package graph implements the small directed dependency graph shared by the
provider container and the lifecycle orchestrator.

Nodes are plain names. An edge a -> b reads "a depends on b". The graph keeps
insertion order for nodes and edges, which makes TopologicalSort
deterministic: the same registrations always produce the same startup order.

	a ──► b ──► c          TopologicalSort: [c b a]
	│           ▲
	└───────────┘

Cycles are reported with CircularDependencyError, which carries the full
cycle (a -> b -> c -> a). CheckEdge performs the eager reachability test used
before an edge is added; TopologicalSort detects cycles lazily with a
three-color depth-first search.

The graph has no locking. Callers own it and guard it with their own mutex.
*/
package graph
