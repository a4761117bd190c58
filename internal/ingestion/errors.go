package ingestion

import (
	"fmt"
	"strings"
)

// Kind classifies a failed ingestion for callers that need to tell bad data
// apart from an unavailable store.
type Kind string

const (
	KindConflict    Kind = "conflict"
	KindSchema      Kind = "schema"
	KindParse       Kind = "parse"
	KindPersistence Kind = "persistence"
	KindUnexpected  Kind = "unexpected"
	KindInvalid     Kind = "invalid"
)

// ConflictError reports an upload whose file name already has a batch.
type ConflictError struct {
	FileName string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already exists", e.FileName)
}

// SchemaError lists every required column that is missing or has at least
// one empty cell, in required-column order.
type SchemaError struct {
	Missing []string
	Empty   []string

	offenders []string
}

func (e *SchemaError) add(column string, missing bool) {
	if missing {
		e.Missing = append(e.Missing, column)
		e.offenders = append(e.offenders, column)
		return
	}
	e.Empty = append(e.Empty, column)
	e.offenders = append(e.offenders, column+" (empty)")
}

func (e *SchemaError) Error() string {
	return "Missing or empty columns: " + strings.Join(e.offenders, ", ")
}

// ParseError reports a file that could not be read as a table.
type ParseError struct {
	Format string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s file: %v", e.Format, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// PersistenceError reports a store failure while ingesting.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("storage failure while %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
