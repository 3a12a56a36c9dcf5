// Package ledger owns account numbers and balance invariants.
//
// Account numbers are 14-digit strings drawn at random; uniqueness is
// enforced by the store at insert time and collisions are retried with a
// bounded budget. Balances are exact decimals and never go below zero.
//
// The package defines the money-movement primitives (Credit, Debit,
// Transfer) other components build on. It does not decide who may move
// money.
package ledger
