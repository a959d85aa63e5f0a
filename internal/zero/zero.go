// Package zero clears secret material from memory.
package zero

// Bytes sets all bytes of b to zero.
func Bytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Bytea32 clears a 32 byte array.
func Bytea32(b *[32]byte) {
	*b = [32]byte{}
}
