// Package password hashes and verifies user passwords with Argon2id.
//
// Hashes are PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// A stored hash produced with weaker parameters than the current [Params]
// reports true from [Hasher.NeedsRehash]; callers re-hash after the next
// successful verification.
//
// The package never stores passwords and never logs plaintext or hashes.
// Length policy is the only policy it owns, so that every code path that
// hashes a password (register, reset) enforces the same floor.
package password
