// Package replerr defines the failure classes used across the replicator.
//
// Each class maps to a scope: a connectivity failure ends the whole run, a
// query or transfer failure ends the current table's cycle. Callers classify
// with errors.Is against the sentinels below; wrapping keeps the cause.
package replerr

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectivity marks failures to open or reach a database.
	ErrConnectivity = errors.New("connectivity error")

	// ErrQuery marks a failed catalog, watermark, extraction or insert query.
	ErrQuery = errors.New("query error")

	// ErrTransferChunk marks a failure while reading the COPY export stream.
	ErrTransferChunk = errors.New("transfer chunk error")
)

// classified wraps err so that errors.Is matches both class and cause.
type classified struct {
	class error
	msg   string
	err   error
}

func (c *classified) Error() string {
	if c.msg == "" {
		return fmt.Sprintf("%v: %v", c.class, c.err)
	}
	return fmt.Sprintf("%s: %v", c.msg, c.err)
}

func (c *classified) Unwrap() []error { return []error{c.class, c.err} }

func wrap(class error, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	msg := ""
	if format != "" {
		msg = fmt.Sprintf(format, args...)
	}
	return &classified{class: class, msg: msg, err: err}
}

// Connectivity classifies err as ErrConnectivity. Nil stays nil.
func Connectivity(err error, format string, args ...any) error {
	return wrap(ErrConnectivity, err, format, args...)
}

// Query classifies err as ErrQuery. Nil stays nil.
func Query(err error, format string, args ...any) error {
	return wrap(ErrQuery, err, format, args...)
}

// TransferChunk classifies err as ErrTransferChunk. Nil stays nil.
func TransferChunk(err error, format string, args ...any) error {
	return wrap(ErrTransferChunk, err, format, args...)
}

// TableError records which table and step a failure belongs to.
type TableError struct {
	Table string
	Step  string
	Err   error
}

func (e *TableError) Error() string {
	return fmt.Sprintf("table %s: %s: %v", e.Table, e.Step, e.Err)
}

func (e *TableError) Unwrap() error { return e.Err }

// IsRunFatal reports whether err must stop the whole run regardless of the
// table error policy.
func IsRunFatal(err error) bool {
	return errors.Is(err, ErrConnectivity)
}
