// Package engine holds the transition rules of the escrow ledger.
//
// Every function is pure: it reads the records it is given, checks the
// preconditions in order, and returns the updated records together with the
// value transfer that must be committed with them. Nothing here touches
// storage, so a rejected transition never leaves a partial effect behind.
package engine
