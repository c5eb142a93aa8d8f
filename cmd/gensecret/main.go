// Prints a pair of fresh signing secrets for the access and refresh keys.
// The two secrets must differ, so both are minted in one run.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
)

const SecretKeyBytesLen = 32

func main() {
	newSecret := func() string {
		b := make([]byte, SecretKeyBytesLen)

		_, err := rand.Read(b)
		if err != nil {
			fmt.Printf("error while generating secret key: %v", err)
			os.Exit(1)
		}

		return hex.EncodeToString(b)
	}

	fmt.Printf("ACCESS_SECRET=%s\n", newSecret())
	fmt.Printf("REFRESH_SECRET=%s\n", newSecret())
}
