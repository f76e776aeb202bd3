// Package tokenlink issues the opaque recipient tokens embedded in
// mail links and provides the companion URL-shortening facility.
//
// Tokens are unpredictable and unique across members and subscribers
// combined; both tokens and short codes are check-then-insert under
// store uniqueness constraints, with the generator retrying on
// collision rather than trusting a prior not-found read.
package tokenlink
