package db

import "strings"

// ConstraintCartsPhoneNumber is the unique index binding one cart per phone
// number (migrations/00001_init.sql). The cart service maps violations of it
// to a conflict error.
const ConstraintCartsPhoneNumber = "idx_carts_phone_number"

// IsUniqueViolation reports whether err is a Postgres duplicate-key failure.
// A non-empty constraintName narrows the match to that constraint, so a
// phone-number collision is not confused with other duplicates.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if !strings.Contains(msg, "duplicate key value") {
		return false
	}
	if constraintName == "" {
		return true
	}
	return strings.Contains(msg, constraintName)
}
