package internaldefs

import (
	goGuard "github.com/MrEthical07/goGuard"
)

// CounterDef names one goGuard counter for exporters.
type CounterDef struct {
	ID   goGuard.MetricID
	Name string
	Help string
}

// HistogramDef names one goGuard histogram for exporters.
type HistogramDef struct {
	ID   goGuard.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in MetricID order.
var CounterDefs = []CounterDef{
	{ID: goGuard.MetricLoginSuccess, Name: "goguard_login_success_total", Help: "Logins that started a session."},
	{ID: goGuard.MetricLoginFailure, Name: "goguard_login_failure_total", Help: "Logins rejected by validation or the identity provider."},
	{ID: goGuard.MetricLoginRateLimited, Name: "goguard_login_rate_limited_total", Help: "Logins rejected by an active lockout."},
	{ID: goGuard.MetricLockoutTriggered, Name: "goguard_lockout_triggered_total", Help: "Failed attempts that set a lockout window."},
	{ID: goGuard.MetricCSRFRejected, Name: "goguard_csrf_rejected_total", Help: "Requests rejected by the CSRF guard."},
	{ID: goGuard.MetricSessionWarning, Name: "goguard_session_warning_total", Help: "Inactivity warnings emitted."},
	{ID: goGuard.MetricSessionExpired, Name: "goguard_session_expired_total", Help: "Sessions expired."},
	{ID: goGuard.MetricSessionExtended, Name: "goguard_session_extended_total", Help: "Session extensions applied."},
	{ID: goGuard.MetricSessionRefreshed, Name: "goguard_session_refreshed_total", Help: "Sessions refreshed from the identity provider."},
	{ID: goGuard.MetricTokenRefreshDue, Name: "goguard_token_refresh_due_total", Help: "Token refresh triggers fired."},
	{ID: goGuard.MetricLogout, Name: "goguard_logout_total", Help: "Explicit logouts."},
	{ID: goGuard.MetricDeviceMismatch, Name: "goguard_device_mismatch_total", Help: "Failed device fingerprint checks."},
	{ID: goGuard.MetricRegisterSuccess, Name: "goguard_register_success_total", Help: "Accounts created."},
	{ID: goGuard.MetricLinkRequired, Name: "goguard_link_required_total", Help: "Linking resolutions that required user consent."},
	{ID: goGuard.MetricLinkSuccess, Name: "goguard_link_success_total", Help: "Social identities linked to a password account."},
	{ID: goGuard.MetricLinkFailure, Name: "goguard_link_failure_total", Help: "Failed identity link attempts."},
	{ID: goGuard.MetricAccountConverted, Name: "goguard_account_converted_total", Help: "Social accounts converted to email and password."},
	{ID: goGuard.MetricMergeSuccess, Name: "goguard_merge_success_total", Help: "Completed duplicate account merges."},
	{ID: goGuard.MetricMergePartial, Name: "goguard_merge_partial_total", Help: "Merges stopped after the primary account was written."},
	{ID: goGuard.MetricMergeFailure, Name: "goguard_merge_failure_total", Help: "Merges aborted before any change."},
	{ID: goGuard.MetricAuthErrorLogged, Name: "goguard_auth_error_logged_total", Help: "Classified auth errors appended to the error log."},
	{ID: goGuard.MetricListenerPanic, Name: "goguard_listener_panic_total", Help: "Recovered panics in session event listeners."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goGuard.MetricMergeLatency, Name: "goguard_merge_latency_seconds", Help: "Duplicate account merge latency."},
}

// HistogramBounds are the upper bounds of the latency buckets, in seconds.
var HistogramBounds = []string{
	"0.01",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"5",
	"+Inf",
}

// HistogramBoundSuffix maps HistogramBounds to instrument name suffixes.
var HistogramBoundSuffix = []string{
	"0_01",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed eight-bucket array. Missing
// buckets are zero.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
