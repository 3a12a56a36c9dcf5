package internaldefs

import (
	"strconv"
	"strings"

	"github.com/MrEthical07/bankauth"
)

// CounterDef names one Engine counter.
type CounterDef struct {
	ID   bankauth.MetricID
	Name string
	Help string
}

// HistogramDef names one Engine latency histogram.
type HistogramDef struct {
	ID   bankauth.MetricID
	Name string
	Help string
}

// BucketCount is the number of histogram buckets, the unbounded one included.
const BucketCount = len(bankauth.HistogramBounds) + 1

// AuditDroppedName is the counter of audit events lost to backpressure.
const (
	AuditDroppedName = "bankauth_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped because the dispatcher buffer was full."
)

var CounterDefs = []CounterDef{
	{ID: bankauth.MetricJoinSuccess, Name: "bankauth_join_success_total", Help: "Identities created by Join."},
	{ID: bankauth.MetricJoinDuplicate, Name: "bankauth_join_duplicate_total", Help: "Join attempts rejected for an existing email."},
	{ID: bankauth.MetricJoinFailure, Name: "bankauth_join_failure_total", Help: "Join attempts that failed for any other reason."},
	{ID: bankauth.MetricLoginSuccess, Name: "bankauth_login_success_total", Help: "Successful logins."},
	{ID: bankauth.MetricLoginFailure, Name: "bankauth_login_failure_total", Help: "Logins rejected for an unknown email or wrong password."},
	{ID: bankauth.MetricLoginRateLimited, Name: "bankauth_login_rate_limited_total", Help: "Logins rejected by the attempt throttle."},
	{ID: bankauth.MetricRefreshSuccess, Name: "bankauth_refresh_success_total", Help: "Successful refresh exchanges."},
	{ID: bankauth.MetricRefreshFailure, Name: "bankauth_refresh_failure_total", Help: "Rejected refresh exchanges."},
	{ID: bankauth.MetricRefreshRotated, Name: "bankauth_refresh_rotated_total", Help: "Refresh tokens replaced by rotation."},
	{ID: bankauth.MetricLogout, Name: "bankauth_logout_total", Help: "Completed logouts."},
	{ID: bankauth.MetricAuthenticateRejected, Name: "bankauth_authenticate_rejected_total", Help: "Bearer tokens that failed signature or expiry checks."},
	{ID: bankauth.MetricTokenRevoked, Name: "bankauth_token_revoked_total", Help: "Bearer tokens rejected by the blacklist."},
	{ID: bankauth.MetricMFAEnrolled, Name: "bankauth_mfa_enrolled_total", Help: "TOTP enrollments."},
	{ID: bankauth.MetricMFAFallback, Name: "bankauth_mfa_fallback_total", Help: "Enrollments stored in the fallback secret backend."},
	{ID: bankauth.MetricMFAVerifySuccess, Name: "bankauth_mfa_verify_success_total", Help: "Accepted TOTP codes."},
	{ID: bankauth.MetricMFAVerifyFailure, Name: "bankauth_mfa_verify_failure_total", Help: "Rejected TOTP codes."},
	{ID: bankauth.MetricMFARateLimited, Name: "bankauth_mfa_rate_limited_total", Help: "TOTP checks rejected by the attempt throttle."},
	{ID: bankauth.MetricAccountCreated, Name: "bankauth_account_created_total", Help: "Ledger accounts opened."},
	{ID: bankauth.MetricLedgerExhausted, Name: "bankauth_ledger_exhausted_total", Help: "Account creations that ran out of number attempts."},
	{ID: bankauth.MetricPasswordUpgraded, Name: "bankauth_password_upgraded_total", Help: "Password hashes rewritten with current parameters at login."},
	{ID: bankauth.MetricDependencyFailure, Name: "bankauth_dependency_failure_total", Help: "Operations failed by an unreachable remote store."},
}

var HistogramDefs = []HistogramDef{
	{ID: bankauth.MetricAuthenticateLatency, Name: "bankauth_authenticate_latency_seconds", Help: "Authenticate latency."},
	{ID: bankauth.MetricLoginLatency, Name: "bankauth_login_latency_seconds", Help: "Login latency."},
}

// BoundSeconds returns the finite bucket bounds in seconds.
func BoundSeconds() []float64 {
	out := make([]float64, len(bankauth.HistogramBounds))
	for i, b := range bankauth.HistogramBounds {
		out[i] = b.Seconds()
	}
	return out
}

// BoundSuffixes returns instrument-name suffixes for every bucket, e.g.
// "0_005" for 5ms and "inf" for the last bucket.
func BoundSuffixes() []string {
	out := make([]string, 0, BucketCount)
	for _, s := range BoundSeconds() {
		out = append(out, strings.ReplaceAll(strconv.FormatFloat(s, 'f', -1, 64), ".", "_"))
	}
	return append(out, "inf")
}

// NormalizeBuckets copies raw into a fixed-size array, zero-filling missing
// buckets.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets converts per-bucket counts to running totals.
func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
