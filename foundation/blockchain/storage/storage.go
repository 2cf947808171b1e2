// Package storage defines the blocks and transactions that are hashed,
// persisted and exchanged between nodes, along with their canonical encoding.
package storage
