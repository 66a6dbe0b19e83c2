// Package credstore holds the credentials of one login session: the PKCE
// verifier and state of a pending authorization, and the access, ID and
// refresh tokens once it completes.
//
// A Store is created explicitly and passed to its users; there is no
// package-level instance. The record is persisted as a whole through a
// Backend:
//
//   - MemoryBackend keeps it in the process (tests, one-shot commands)
//   - FileBackend keeps one JSON file per session in the per-user runtime
//     directory, so it survives process restarts but not the end of the
//     user session, and supports watching for writes from other processes
//   - KeyringBackend keeps it in the OS keychain
package credstore
