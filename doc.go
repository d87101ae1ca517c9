// Package cartograph turns free-text questions into ranked answers drawn
// from a typed, spatially-aware knowledge graph.
//
// The pipeline has three stages behind a single entry point:
//
//	raw text → Interpreter (StructuredQuery) → Retriever (ranked
//	candidates via bounded graph traversal) → Assembler (AnswerPayload)
//
// Client wires the stages over a pluggable graph store (in-memory, badger
// or neo4j) and an optional embedding service for fuzzy entity mention
// resolution. Graph writes from an extraction pipeline go through
// PutEntity and PutRelationship, which apply confidence reconciliation and
// keep the mention index current.
package cartograph
