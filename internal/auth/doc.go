// Package auth provides authentication for the storefront's four principal
// kinds: super-admin, admin, retailer and customer.
//
// Each kind lives in its own PrincipalStore; the Directory maps the closed
// Role set onto those stores once at startup. On top of that sit:
//   - Argon2id password hashing with legacy bcrypt verification
//   - HS256 tokens in three classes (access, refresh, pre-auth)
//   - 6-digit email OTP challenges with a fixed validity window
//   - The registration state machine: unregistered, pending-verification, active
//
// Admin kinds are active on registration. Retailers and customers receive a
// pre-auth token and an emailed code, and hold no session until the code is
// verified. Logging in against a registration that was never verified
// deletes it; the caller must register again.
//
// Unknown accounts and wrong passwords are indistinguishable to callers.
package auth
