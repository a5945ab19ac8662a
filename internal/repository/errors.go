// Package repository contains the data access layer: one repo per
// table, raw SQL, and transaction-scoped methods (suffixed Tx) that
// participate in a caller-owned *sql.Tx.  Sentinel errors owned by the
// service packages (reservation.ErrCourtNotFound,
// reconcile.ErrBookingNotFound, ...) are returned from here so the
// services can match on them without knowing about database/sql.
package repository

import "errors"

// ErrPaymentNotFound indicates that no payment record exists for the
// requested booking or gateway session.
var ErrPaymentNotFound = errors.New("payment not found")
