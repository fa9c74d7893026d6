// Command kvault-genkey generates a fresh RSA-2048 keypair and writes the
// private key to disk, ready for kvaultd's --key-file flag. It prints the
// PEM-encoded public key to stdout so it can be handed to clients
// out-of-band, even though clients can also fetch it live via the KEY
// handshake.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/dreamware/kvault/internal/kvcrypto"
)

func main() {
	keyFile := pflag.String("key-file", "kvault.key", "path to write the generated private key")
	pflag.Parse()

	key, err := kvcrypto.GenerateKeyPair()
	if err != nil {
		fmt.Fprintln(os.Stderr, "kvault-genkey:", err)
		os.Exit(1)
	}

	if err := kvcrypto.SavePrivateKey(*keyFile, key); err != nil {
		fmt.Fprintln(os.Stderr, "kvault-genkey:", err)
		os.Exit(1)
	}

	pemBytes, err := kvcrypto.PublicKeyPEM(&key.PublicKey)
	if err != nil {
		fmt.Fprintln(os.Stderr, "kvault-genkey:", err)
		os.Exit(1)
	}

	fmt.Printf("wrote private key to %s\n\n", *keyFile)
	os.Stdout.Write(pemBytes)
}
