package commands

import (
	"bufio"
	"fmt"
	"io/ioutil"
	"os"
	"path"
	"strings"

	"github.com/fractalnet/fractal/src/crypto/keys"
	"github.com/fractalnet/fractal/src/identity"
	"github.com/spf13/cobra"
)

var pubKeyFile string

// NewKeygenCmd produces a KeygenCmd which derives the keypair for a secret
// phrase. The private key is never written to disk; it is recoverable from
// the secret alone.
func NewKeygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Derive the key pair for a secret phrase",
		RunE:  keygen,
	}

	AddKeygenFlags(cmd)

	return cmd
}

//AddKeygenFlags adds flags to the keygen command
func AddKeygenFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&secret, "secret", "", "Secret phrase the identity is derived from")
	cmd.Flags().StringVar(&pubKeyFile, "pub", "", "Optional file where the public key will be written")
}

func keygen(cmd *cobra.Command, args []string) error {
	if secret == "" {
		fmt.Print("Enter your secret phrase: ")
		scanner := bufio.NewScanner(os.Stdin)
		if scanner.Scan() {
			secret = strings.TrimSpace(scanner.Text())
		}
	}

	key, err := keys.DeriveECDSAKey(secret)
	if err != nil {
		return fmt.Errorf("Error deriving ECDSA key: %s", err)
	}

	id := identity.New(key)

	fmt.Println("NodeID:", id.ID)
	fmt.Println("PublicKey:", id.PubKeyHex)

	if pubKeyFile != "" {
		if err := os.MkdirAll(path.Dir(pubKeyFile), 0700); err != nil {
			return fmt.Errorf("Writing public key: %s", err)
		}

		if err := ioutil.WriteFile(pubKeyFile, []byte(id.PubKeyHex), 0600); err != nil {
			return fmt.Errorf("Writing public key: %s", err)
		}

		fmt.Printf("Your public key has been saved to: %s\n", pubKeyFile)
	}

	return nil
}
