// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package errors

// Code specifies a code for the error.
type Code uint32

// String will return the Code's Info.Message
func (c Code) String() string {
	return c.Info().Message
}

// Info will look up the Code's Info.  If the Info is not found, it will return
// Info for an Unknown Code.
func (c Code) Info() Info {
	if info, ok := errorCodeInfo[c]; ok {
		return info
	}
	return errorCodeInfo[Unknown]
}

// IsDbCode reports whether the code is in the range reserved for errors
// raised by the database engine.
func (c Code) IsDbCode() bool {
	return c >= CheckConstraint && c < dbCodeCeiling
}

const (
	Unknown Code = 0 // Unknown will be equal to a zero value for Codes

	// General function errors are reserved Codes 100-999
	InvalidParameter     Code = 100 // InvalidParameter represents an invalid parameter for an operation.
	InvalidConfiguration Code = 101 // InvalidConfiguration represents an invalid configuration value or file.
	Io                   Code = 102 // Io represents an error during an io operation such as reading a migration file.

	// DB errors are reserved Codes 1000-1999
	CheckConstraint      Code = 1000 // CheckConstraint represents a check constraint error
	NotNull              Code = 1001 // NotNull represents a value must not be null error
	NotUnique            Code = 1002 // NotUnique represents a value must be unique error
	NotSpecificIntegrity Code = 1003 // NotSpecificIntegrity represents an integrity error that has no specific domain error code
	MissingTable         Code = 1004 // MissingTable represents an undefined table error
	Contention           Code = 1005 // Contention represents a busy database, lock wait timeout or deadlock; the statement may succeed if retried

	dbCodeCeiling Code = 2000

	// Transaction errors are reserved Codes 2000-2999
	TransactionState Code = 2000 // TransactionState represents an operation that is invalid in the current transaction state.

	// Migration errors are reserved Codes 3000-3999
	BadMigration       Code = 3000 // BadMigration represents a migration that failed to load or could not be resolved.
	MigrationConflict  Code = 3001 // MigrationConflict represents a duplicate migration id.
	CircularDependency Code = 3002 // CircularDependency represents a cycle in the migration dependency graph.

	// Lock errors are reserved Codes 4000-4999
	LockTimeout Code = 4000 // LockTimeout represents a failure to acquire the migration lock in time.
	LockNotHeld Code = 4001 // LockNotHeld represents releasing a lock the caller does not own.
)
