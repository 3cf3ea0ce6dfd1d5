// Safe points (§5 "Suspension points", §4.4.6): ReadNext invokes a
// user-supplied callback every safePointInterval records so a
// higher-level scheduler gets a chance to reschedule, and so
// cancellation/timeouts are observed promptly during a long scan.
package snapdb

// SafePointFunc is invoked periodically by UnionReader.ReadNext, every
// DefaultSafePointInterval records unless overridden via
// UnionReader.SetSafePointInterval (§4.4.6 "pulse a worker thread
// periodically (every 10,000 points)").
type SafePointFunc func()
