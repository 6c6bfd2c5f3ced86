package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
)

const SecretKeyBytesLen = 32

// Print fresh secrets in .env format
func main() {
	for _, name := range []string{"JWT_SECRET", "JWT_REFRESH_SECRET"} {
		secret, err := generate()
		if err != nil {
			fmt.Printf("error while generating secret key: %v", err)
			os.Exit(1)
		}
		fmt.Printf("%s=%s\n", name, secret)
	}
}

func generate() (string, error) {
	b := make([]byte, SecretKeyBytesLen)

	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
