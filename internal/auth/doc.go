// Package auth owns session state, authentication and module access for
// HireHub Core.
//
// The pieces, leaves first:
//   - TokenStore persists one session's token with an absolute expiry
//     (SQLite for durability, memory for tests)
//   - Session derives logged-in state from its store, broadcasts every
//     transition to subscribers and resets attached collaborators on logout
//   - SessionManager is the single owner of all sessions
//   - AccessTable maps module × role to a permission set, validated at
//     startup for completeness and hierarchy monotonicity
//   - Authenticator is the credential exchange seam; PasswordAuthenticator
//     verifies Argon2id hashes and issues HS256 JWTs
//
// Every failure resolves to the safe state: an unreadable token is absent,
// an unknown module or role resolves to no permissions.
package auth
