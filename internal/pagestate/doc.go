// Package pagestate drives named, ordered sequences of backend queries for
// the regions of a page.
//
// A PageState groups the queries that fill one region. Queries run strictly
// one after another; a query may carry conditions which are revealed to the
// backend one per round trip, so that results of earlier queries can decide
// which conditions later queries need. A Registry keeps at most one active
// PageState per section, and an Orchestrator advances the active states and
// correlates arriving results.
//
// The state machine itself is the pure Reduce function over Snapshot values;
// Orchestrator applies its effects (dispatch, render, fallback).
package pagestate
