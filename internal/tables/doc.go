// Package tables holds the typed, read-only tables a keyboard engine consumes:
// key layouts, symbol-layer mappings, letter variation tables and emoji
// categories.
//
// Tables are snapshots. Constructors copy their inputs and accessors return
// copies, so a table handed to a caller can never be changed underneath it.
// Editing a variation table produces a new table.
package tables
