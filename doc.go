// Package identity implements the credential and token lifecycle of a
// user-identity service: registration, authentication, email verification,
// and password recovery.
//
// Lifecycle:
//   - Accounts start unverified with a pending verification token; consuming
//     the token marks the email verified and clears it. Verified is terminal.
//   - A recovery request mints a time-bounded token (one hour by default);
//     a newer request or the expiry window invalidates it. Consuming it
//     replaces the credential hash and clears the pending recovery state.
//   - AccountFlow centralizes these transitions; CredentialService runs the
//     token read-modify-write sequences inside store transactions so a
//     token can be consumed at most once, even under concurrent calls.
//
// Side effects:
//   - Emails and domain events ride a bounded Dispatcher after the primary
//     mutation committed. Delivery failures are logged, never propagated to
//     the caller, and never roll back committed state.
//   - ActivitySink is the event bus boundary. StoreActivitySink persists
//     events with deterministic ids so at-least-once delivery stays
//     dedupable downstream.
package identity
