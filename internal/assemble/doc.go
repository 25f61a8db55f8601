// Package assemble turns ranked retrieval results into a bounded context
// string for downstream generation. Selection is greedy over rank order;
// compression keeps the paragraphs densest in domain keywords. Both
// operations are pure functions of their inputs.
package assemble
