package utils

import "crypto/rand"

// GenerateRandomKey returns 32 bytes from the system CSPRNG, used as the
// JWT signing secret.
func GenerateRandomKey() []byte {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		panic("failed to read random bytes: " + err.Error())
	}
	return key
}
