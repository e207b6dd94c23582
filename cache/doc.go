// Package cache holds the in-process access-token cache: a bounded map from
// user email to the last access token issued, evicting by write recency and
// expiring entries a fixed time after their last write.
//
// The cache is an auxiliary lookup surface. Whether it takes part in access
// validation is decided by the engine configuration, not by this package.
package cache
