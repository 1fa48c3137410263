// Package token implements the stateless signing codec for access, refresh,
// and single-use tokens.
package token
