// Command gensecret prints a random key suitable for SECRET_KEY
package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

const defaultKeyBytes = 32

func main() {
	size := pflag.IntP("bytes", "n", defaultKeyBytes, "Key length in bytes")
	pflag.Parse()

	key, err := generate(*size)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error while generating secret key: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(key)
}

// generate returns n random bytes hex encoded
func generate(n int) (string, error) {
	if n < 16 {
		return "", fmt.Errorf("key is too short: %d bytes, at least 16 required", n)
	}

	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
