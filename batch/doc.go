// Package batch runs one image-generation batch end to end.
//
// A batch is a fixed number of slots (1..4) that share a prompt and
// options and differ only in their output filename. The Runner checks the
// output directory for collisions before any provider call, fans the slots
// out to a bounded worker pool, and replays the collected results in slot
// order when writing metadata sidecars and the summary.
//
// The first rate-limited failure stops dispatch for the rest of the batch.
// Calls already in flight are allowed to finish, but their results are
// discarded and those slots are reported as not attempted.
package batch
