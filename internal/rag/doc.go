// Package rag wires document processing, embedding, indexing, ranking and
// context assembly into one retrieval system. It is the only package
// callers need: ingestion goes in through AddDocumentFromText,
// AddDocumentFromFile and AddDirectory; retrieval comes out through Search
// and ContextForQuery.
package rag
