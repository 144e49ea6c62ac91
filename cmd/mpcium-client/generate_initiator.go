package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"slices"
	"time"

	"github.com/fystack/mpcium-client/pkg/common/pathutil"
	"github.com/fystack/mpcium-client/pkg/encryption"
	"github.com/fystack/mpcium-client/pkg/identity"
	"github.com/fystack/mpcium-client/pkg/types"
	"github.com/urfave/cli/v3"
)

// InitiatorIdentity is the public half of an initiator key, shared with the
// MPC nodes so they can verify requests.
type InitiatorIdentity struct {
	NodeName    string `json:"node_name"`
	Algorithm   string `json:"algorithm,omitempty"`
	PublicKey   string `json:"public_key"`
	CreatedAt   string `json:"created_at"`
	CreatedBy   string `json:"created_by"`
	MachineOS   string `json:"machine_os"`
	MachineName string `json:"machine_name"`
}

func generateInitiatorIdentity(ctx context.Context, c *cli.Command) error {
	nodeName := c.String("node-name")
	outputDir := c.String("output-dir")
	encrypt := c.Bool("encrypt")
	overwrite := c.Bool("overwrite")
	algorithm := c.String("algorithm")

	if !slices.Contains(
		[]string{string(types.EventInitiatorKeyTypeEd25519), string(types.EventInitiatorKeyTypeP256)},
		algorithm,
	) {
		return fmt.Errorf("invalid algorithm: %s. Must be %s or %s",
			algorithm,
			types.EventInitiatorKeyTypeEd25519,
			types.EventInitiatorKeyTypeP256,
		)
	}

	if err := os.MkdirAll(outputDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	identityPath := filepath.Join(outputDir, nodeName+".identity.json")
	keyPath := filepath.Join(outputDir, nodeName+".key")
	if encrypt {
		keyPath += identity.EncryptedKeySuffix
	}
	if err := pathutil.ValidateFilePath(keyPath); err != nil {
		return fmt.Errorf("invalid key file path: %w", err)
	}

	for _, path := range []string{identityPath, keyPath} {
		if _, err := os.Stat(path); err == nil && !overwrite {
			return fmt.Errorf("file already exists: %s (use --overwrite to force)", path)
		}
	}

	var passphrase string
	if encrypt {
		var err error
		if passphrase, err = requestPassword(); err != nil {
			return err
		}
	}

	var (
		keyData encryption.KeyData
		err     error
	)
	if algorithm == string(types.EventInitiatorKeyTypeEd25519) {
		keyData, err = encryption.GenerateEd25519Keys()
	} else {
		keyData, err = encryption.GenerateP256Keys()
	}
	if err != nil {
		return fmt.Errorf("failed to generate %s keys: %w", algorithm, err)
	}

	keyBytes := []byte(keyData.PrivateKeyHex)
	if encrypt {
		if keyBytes, err = encryption.EncryptWithPassphrase(keyBytes, passphrase); err != nil {
			return fmt.Errorf("failed to encrypt private key: %w", err)
		}
	} else {
		fmt.Println("WARNING: You are generating the private key without encryption.")
		fmt.Println("This is less secure. Consider using --encrypt flag for better security.")
	}

	createdBy := "unknown"
	if currentUser, err := user.Current(); err == nil {
		createdBy = currentUser.Username
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	identityBytes, err := json.MarshalIndent(InitiatorIdentity{
		NodeName:    nodeName,
		Algorithm:   algorithm,
		PublicKey:   keyData.PublicKeyHex,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
		CreatedBy:   createdBy,
		MachineOS:   runtime.GOOS,
		MachineName: hostname,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal identity JSON: %w", err)
	}

	if err := os.WriteFile(keyPath, keyBytes, 0600); err != nil {
		return fmt.Errorf("failed to save private key: %w", err)
	}
	if err := os.WriteFile(identityPath, identityBytes, 0600); err != nil {
		return fmt.Errorf("failed to save identity file: %w", err)
	}

	fmt.Println("✅ Successfully generated:")
	fmt.Println("- Private Key:", keyPath)
	fmt.Println("- Identity JSON:", identityPath)
	fmt.Println("- Public Key:", keyData.PublicKeyHex)
	return nil
}
