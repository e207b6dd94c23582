package internaldefs

import (
	goFedAuth "github.com/MrEthical07/goFedAuth"
)

// CounterDef binds a counter MetricID to its exported name.
type CounterDef struct {
	ID   goFedAuth.MetricID
	Name string
	Help string
}

// HistogramDef binds a histogram MetricID to its exported name.
type HistogramDef struct {
	ID   goFedAuth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in output order.
var CounterDefs = []CounterDef{
	{ID: goFedAuth.MetricRegisterSuccess, Name: "gofedauth_register_success_total", Help: "Accounts created by local registration."},
	{ID: goFedAuth.MetricRegisterDuplicate, Name: "gofedauth_register_duplicate_total", Help: "Registrations rejected for an existing email."},
	{ID: goFedAuth.MetricLoginSuccess, Name: "gofedauth_login_success_total", Help: "Successful password sign-ins."},
	{ID: goFedAuth.MetricLoginFailure, Name: "gofedauth_login_failure_total", Help: "Rejected password sign-ins."},
	{ID: goFedAuth.MetricFederatedLoginSuccess, Name: "gofedauth_federated_login_success_total", Help: "Successful Google and Facebook sign-ins."},
	{ID: goFedAuth.MetricFederatedLoginFailure, Name: "gofedauth_federated_login_failure_total", Help: "Rejected Google and Facebook sign-ins."},
	{ID: goFedAuth.MetricAccountLinked, Name: "gofedauth_account_linked_total", Help: "Provider identities linked to an existing account."},
	{ID: goFedAuth.MetricAccountCreated, Name: "gofedauth_account_created_total", Help: "Accounts created from a provider profile."},
	{ID: goFedAuth.MetricRefreshSuccess, Name: "gofedauth_refresh_success_total", Help: "Access tokens minted from a refresh token."},
	{ID: goFedAuth.MetricRefreshFailure, Name: "gofedauth_refresh_failure_total", Help: "Rejected refresh attempts."},
	{ID: goFedAuth.MetricLogout, Name: "gofedauth_logout_total", Help: "Sessions revoked by logout."},
	{ID: goFedAuth.MetricValidateFailure, Name: "gofedauth_validate_failure_total", Help: "Rejected access tokens."},
	{ID: goFedAuth.MetricProviderRetry, Name: "gofedauth_provider_retry_total", Help: "Retried identity provider calls."},
	{ID: goFedAuth.MetricAccessCacheEviction, Name: "gofedauth_access_cache_eviction_total", Help: "Access token cache entries evicted for capacity or age."},
	{ID: goFedAuth.MetricLoginThrottled, Name: "gofedauth_login_throttled_total", Help: "Sign-ins refused by the failed-login throttle."},
	{ID: goFedAuth.MetricRefreshPurged, Name: "gofedauth_refresh_purged_total", Help: "Expired refresh tokens deleted by the sweep."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goFedAuth.MetricValidateLatency, Name: "gofedauth_validate_latency_seconds", Help: "Access token validation latency."},
}

// HistogramBounds are the upper bounds, in seconds, of the eight latency buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix names each bound in instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed eight-bucket array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
