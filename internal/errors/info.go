// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package errors

// Info contains details of the specific error code
type Info struct {
	// Kind specifies the kind of error (unknown, parameter, integrity, etc).
	Kind Kind

	// Message provides a default message for the error code
	Message string
}

// errorCodeInfo provides a map of unique Codes (IDs) to their
// corresponding Kind and a default Message.
var errorCodeInfo = map[Code]Info{
	Unknown: {
		Message: "unknown",
		Kind:    Other,
	},
	InvalidParameter: {
		Message: "invalid parameter",
		Kind:    Parameter,
	},
	InvalidConfiguration: {
		Message: "invalid configuration",
		Kind:    Configuration,
	},
	Io: {
		Message: "error during io operation",
		Kind:    Integrity,
	},
	CheckConstraint: {
		Message: "constraint check failed",
		Kind:    Integrity,
	},
	NotNull: {
		Message: "must not be empty (null) violation",
		Kind:    Integrity,
	},
	NotUnique: {
		Message: "must be unique violation",
		Kind:    Integrity,
	},
	NotSpecificIntegrity: {
		Message: "Integrity violation without specific details",
		Kind:    Integrity,
	},
	MissingTable: {
		Message: "missing table",
		Kind:    Integrity,
	},
	Contention: {
		Message: "database busy or deadlocked",
		Kind:    Transaction,
	},
	TransactionState: {
		Message: "invalid transaction state",
		Kind:    Transaction,
	},
	BadMigration: {
		Message: "bad migration",
		Kind:    Migration,
	},
	MigrationConflict: {
		Message: "migration conflict",
		Kind:    Migration,
	},
	CircularDependency: {
		Message: "circular dependency",
		Kind:    Migration,
	},
	LockTimeout: {
		Message: "lock timeout",
		Kind:    Lock,
	},
	LockNotHeld: {
		Message: "lock not held",
		Kind:    Lock,
	},
}
