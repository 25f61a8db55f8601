// Package document normalizes raw input (markdown, HTML, PDF, plain text)
// into Documents, extracts security-domain metadata, and splits documents
// into bounded, boundary-aligned chunks ready for embedding and indexing.
package document
