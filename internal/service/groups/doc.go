// Package groups resolves group hierarchies into member sets.
//
// A group's audience has two sources: explicit member associations
// (directly or through the transitive auto-subgroup closure) and an
// auxiliary location criterion matching members by jurisdiction code.
// The two sources combine by the group's combination method — union or
// intersection — as plain set algebra in application code, so the
// semantics do not depend on any query builder.
//
// The subgroup graph is user-edited and may contain cycles; all
// traversals run over a visited set and terminate on any input.
package groups
