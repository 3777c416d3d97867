// Package engine applies a user-selected FilterState to the canonical
// sales table and derives the three dashboard views from the passing
// rows: the filtered row set for the table widget, the aggregated
// town to residential-type flow edges for the Sankey widget, and the
// geocoded points for the map widget.
//
// Every call recomputes all three views from scratch under a single
// predicate, so the outputs are always mutually consistent, and
// applying the default state reproduces the unfiltered baseline
// exactly. That last guarantee is what the reset control depends on.
package engine
