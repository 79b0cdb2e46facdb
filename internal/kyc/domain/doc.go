// Package domain contains the pure domain model for KYC status resolution.
//
// # KYC Status
//
// A client's KYC status is derived from the verification flags an upstream
// system keeps per identity document. Two document kinds are required (PAN and
// Aadhaar); three more are optional (driving licence, voter ID, passport).
//
//	RawRecord  ──Process──▶  StatusSummary
//	(upstream flags)          (normalized, immutable)
//
// Key Invariants:
//   - TotalRequiredDocuments is always 2
//   - HasRequiredDocuments is true iff both required kinds are verified
//   - IsVerified always equals HasRequiredDocuments
//   - VerifiedDocumentCount counts every verified kind, required or optional
//
// A missing record and a failed lookup both map to the zero summary; callers
// cannot tell "verified as false" from "lookup failed".
//
// # Domain Purity
//
//	✓ No I/O (no database, HTTP, filesystem access)
//	✓ No context.Context in function signatures
//	✓ No time.Now() calls
//
// Caching, coalescing and scheduling live in the cache, inflight, notify,
// resolver and service packages.
package domain
