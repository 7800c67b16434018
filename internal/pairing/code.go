package pairing

import "crypto/rand"

// CodeLength is the number of characters in a pairing code.
const CodeLength = 6

// Alphabet holds the 36 symbols a pairing code is drawn from.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// 252 is the largest multiple of len(Alphabet) that fits in a byte; larger
// bytes are rejected so every symbol stays equally likely.
const rejectAbove = 256 - 256%len(Alphabet)

// GenerateCode returns a random 6 character code from Alphabet. Symbols are
// drawn independently, so repeats are possible; collisions with codes already
// handed out are the caller's concern (see Registry).
func GenerateCode() string {
	code := make([]byte, 0, CodeLength)
	buf := make([]byte, CodeLength*2)
	for len(code) < CodeLength {
		// crypto/rand.Read never fails.
		_, _ = rand.Read(buf)
		for _, b := range buf {
			if int(b) >= rejectAbove {
				continue
			}
			code = append(code, Alphabet[int(b)%len(Alphabet)])
			if len(code) == CodeLength {
				break
			}
		}
	}
	return string(code)
}
