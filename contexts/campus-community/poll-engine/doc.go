// Package pollengine implements the poll voting engine inside the
// campus-community context.
//
// The module owns poll lifecycle (create/edit/close), the vote-casting
// algorithm with its tally-consistency guarantees, and results projection.
// Per-poll atomicity is an optimistic-concurrency loop over a versioned poll
// document, so concurrent voters never lose updates and a voter holds at
// most one ledger entry at any time. Business rules live in the
// application/domain layers; infrastructure stays behind ports and adapters.
package pollengine
