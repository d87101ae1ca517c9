// Package types defines the core data model of the retrieval pipeline:
// entities, typed relationships with confidence and provenance, structured
// queries, answer candidates and payloads, and the shared error taxonomy.
//
// Entities and relationships are long-lived and mutated only by
// re-extraction upserts. StructuredQuery and AnswerCandidate are ephemeral,
// created and destroyed per request, with no cross-request mutable state.
package types
