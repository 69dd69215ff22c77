// Package circulation holds the lending rules of the library: overdue and fine assessment,
// borrower message templates, and the return workflow that closes a loan, restocks the copy
// and records the fine as one transaction.
//
// Storage is reached through the Ledger and ReturnTx interfaces so the workflow can run
// against Postgres in production and an in-memory ledger in tests.
package circulation
