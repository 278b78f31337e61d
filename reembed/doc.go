// Package reembed migrates stored records from one embedding generation to another.
//
// A migration reads every record of one tenant, content kind and generation in
// ascending ID order, embeds its text with the target generation's model and
// writes the result into the target partition. Both generations stay queryable
// while the migration runs. Progress is checkpointed after every batch so an
// interrupted run resumes where it stopped, and embedding calls are retried with
// exponential backoff.
package reembed
