// Package datasets gives scenarios, groups of scenarios and scenario
// comparisons one access pattern: Fetch(ctx, flag).
//
// A leaf dataset wraps a Source and declares the flags it accepts. Every
// Fetch validates the flag, resolves the effective Config (defaults, class
// override from a ConfigResolver, instance config, call override), serves a
// bound Cache when fresh, otherwise computes and post-processes the value,
// and returns a copy that shares no storage with the cache.
//
// Collections compose datasets behind the same interface:
//
//   - LinkCollection dispatches a flag to the first child accepting it.
//   - MergeCollection fills gaps across children describing the same flag.
//   - ConcatCollection stacks child results under a level of child names.
//   - SumCollection adds numeric child results.
//   - Comparison returns variation minus reference, or either side.
//   - Platform links the interpreters of an InterpreterRegistry.
package datasets
