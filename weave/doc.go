// Package weave uploads image payloads to the storage network as signed,
// tagged transactions.
//
// Every upload builds a fresh Transaction, has the caller's Credential sign
// and post it, and returns the network-assigned transaction id. Transactions
// carry a random anchor, so uploading identical bytes twice yields two ids.
package weave
