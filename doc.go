// Package admin provides the role-based user administration core: durable
// server-side sessions, role-aware post-login routing, an authorization gate,
// account lifecycle management, and an append-only audit trail.
//
// Sessions:
//   - SessionRegistry is the source of truth for whether a sign-in is still
//     honored. Tokens carry a registry session id (the sid claim); expiry is
//     bounded by an absolute max age and an inactivity timeout, and any
//     lifecycle action that removes access revokes every live session. The
//     Gate touches the registry per request so activity refreshes as a side
//     effect of passing through.
//
// Lifecycle:
//   - Accounts carry a closed status enum (active, suspended, blocked,
//     deleted) persisted via Bun. AccountStateMachine centralizes the
//     transition graph; LifecycleManager layers the permission matrix,
//     conditional store writes, session revocation, and audit recording on
//     top, in that order. A write that loses a concurrent race produces no
//     audit entry.
//
// Invitations:
//   - Invitations pre-authorize an admin role for an email before its first
//     sign-in. They are consumed at most once via a conditional update, can
//     be revoked while pending, and every grant, revocation, and use lands
//     in the audit log.
//
// Claims decoration:
//   - ClaimsDecorator is invoked before JWTs are signed. Decorators may
//     enrich extension fields such as scopes or metadata while protected
//     claims (sub, iss, aud, sid, exp, etc.) remain immutable; a mutation
//     fails the mint.
package admin
