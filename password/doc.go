// Package password hashes and verifies local-account passwords with Argon2id.
//
// Hashes are PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// NeedsUpgrade reports hashes minted with weaker parameters so callers can
// rehash after a successful login. Length policy lives here too: anything
// under MinPasswordBytes is rejected with ErrTooShort.
package password
