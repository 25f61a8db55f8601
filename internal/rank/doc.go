// Package rank fuses raw similarity with source authority and recency into
// one deterministic ranking signal. Indexes report similarity; everything
// else about ordering lives here.
package rank
