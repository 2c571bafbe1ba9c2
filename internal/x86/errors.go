package x86

import "errors"

// Fetch/decode error kinds (spec §4.B fetch protocol). Decoder determinism
// (spec §8) requires that fetching the same prefix of bytes always
// produces the same one of these, so they are sentinel values rather than
// per-call formatted errors.
var (
	ErrTooManyPrefixes = errors.New("x86: too many prefixes")
	ErrUnknownOpcode   = errors.New("x86: unknown opcode")
	ErrUnknownOpcode2  = errors.New("x86: unknown opcode2")
	ErrNoModRMMatch    = errors.New("x86: no ModR/M match")
	ErrEOF             = errors.New("x86: unexpected end of input")
)
