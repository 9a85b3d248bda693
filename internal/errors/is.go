// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package errors

// hasCode walks the chain of Errs within err and reports whether any of them
// satisfies fn.
func hasCode(err error, fn func(Code) bool) bool {
	for err != nil {
		var domainErr *Err
		if !As(err, &domainErr) {
			return false
		}
		if fn(domainErr.Code) {
			return true
		}
		err = domainErr.Wrapped
	}
	return false
}

func codeIs(c Code) func(Code) bool {
	return func(got Code) bool { return got == c }
}

// IsDbError returns a boolean indicating whether the error was raised by the
// database engine and classified by a dialect.
func IsDbError(err error) bool {
	return hasCode(err, Code.IsDbCode)
}

// IsUniqueError returns a boolean indicating whether the error is known to
// report a unique constraint violation.
func IsUniqueError(err error) bool {
	return hasCode(err, codeIs(NotUnique))
}

// IsCheckConstraintError returns a boolean indicating whether the error is
// known to report a check constraint violation.
func IsCheckConstraintError(err error) bool {
	return hasCode(err, codeIs(CheckConstraint))
}

// IsNotNullError returns a boolean indicating whether the error is known
// to report a not-null constraint violation.
func IsNotNullError(err error) bool {
	return hasCode(err, codeIs(NotNull))
}

// IsMissingTableError returns a boolean indicating whether the error is known
// to report an undefined table.
func IsMissingTableError(err error) bool {
	return hasCode(err, codeIs(MissingTable))
}

// IsContentionError returns a boolean indicating whether the error reports a
// busy or locked database or a deadlock, which a retry may get past.
func IsContentionError(err error) bool {
	return hasCode(err, codeIs(Contention))
}

// IsBadMigration reports whether err is a migration load or resolution
// failure, including dependency cycles.
func IsBadMigration(err error) bool {
	return hasCode(err, func(c Code) bool {
		return c == BadMigration || c == CircularDependency
	})
}

// IsMigrationConflict reports whether err is a duplicate migration id.
func IsMigrationConflict(err error) bool {
	return hasCode(err, codeIs(MigrationConflict))
}

// IsLockTimeout reports whether err is a lock acquisition timeout.
func IsLockTimeout(err error) bool {
	return hasCode(err, codeIs(LockTimeout))
}
