package client

import (
	"context"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/fystack/mpcium-client/pkg/encryption"
	"github.com/fystack/mpcium-client/pkg/types"
)

const defaultKMSTimeout = 10 * time.Second

// kmsAPI is the subset of the KMS client used for signing.
type kmsAPI interface {
	GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error)
	Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error)
}

// KMSSigner signs requests with a P256 key held in AWS KMS.
type KMSSigner struct {
	keyType   types.EventInitiatorKeyType
	client    kmsAPI
	keyID     string
	publicKey *ecdsa.PublicKey
	timeout   time.Duration
}

// KMSSignerOptions defines options for creating a KMSSigner
type KMSSignerOptions struct {
	Region          string // AWS region (e.g., "us-east-1") - Required
	KeyID           string // AWS KMS key ID or ARN - Required
	EndpointURL     string // Custom endpoint URL (optional, for LocalStack)
	AccessKeyID     string // Optional, default credential chain otherwise
	SecretAccessKey string // Optional, default credential chain otherwise
}

// NewKMSSigner creates a new KMSSigner using AWS KMS. KMS has no Ed25519
// support, so only P256 is accepted.
func NewKMSSigner(keyType types.EventInitiatorKeyType, opts KMSSignerOptions) (Signer, error) {
	if keyType != types.EventInitiatorKeyTypeP256 {
		return nil, fmt.Errorf("AWS KMS only supports P256 keys, not %s", keyType)
	}
	if opts.KeyID == "" {
		return nil, errors.New("KeyID is required for KMS signer")
	}
	if opts.Region == "" {
		return nil, errors.New("Region is required for KMS signer")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultKMSTimeout)
	defer cancel()

	configOptions := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")
		configOptions = append(configOptions, config.WithCredentialsProvider(credProvider))
	}

	cfg, err := config.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var clientOptions []func(*kms.Options)
	if opts.EndpointURL != "" {
		clientOptions = append(clientOptions, func(o *kms.Options) {
			o.BaseEndpoint = &opts.EndpointURL
		})
	}

	return newKMSSigner(ctx, kms.NewFromConfig(cfg, clientOptions...), opts.KeyID)
}

func newKMSSigner(ctx context.Context, client kmsAPI, keyID string) (*KMSSigner, error) {
	signer := &KMSSigner{
		keyType: types.EventInitiatorKeyTypeP256,
		client:  client,
		keyID:   keyID,
		timeout: defaultKMSTimeout,
	}
	if err := signer.loadPublicKey(ctx); err != nil {
		return nil, fmt.Errorf("failed to load public key from KMS: %w", err)
	}
	return signer, nil
}

// loadPublicKey retrieves the public key from AWS KMS and caches it
func (k *KMSSigner) loadPublicKey(ctx context.Context) error {
	resp, err := k.client.GetPublicKey(ctx, &kms.GetPublicKeyInput{KeyId: &k.keyID})
	if err != nil {
		return fmt.Errorf("failed to get public key from AWS KMS: %w", err)
	}

	publicKeyInterface, err := x509.ParsePKIXPublicKey(resp.PublicKey)
	if err != nil {
		return fmt.Errorf("failed to parse public key from KMS response: %w", err)
	}

	publicKey, ok := publicKeyInterface.(*ecdsa.PublicKey)
	if !ok {
		return errors.New("KMS public key is not an ECDSA key")
	}

	if err := encryption.ValidateP256PublicKey(publicKey); err != nil {
		return fmt.Errorf("KMS public key is not a valid P256 key: %w", err)
	}

	k.publicKey = publicKey
	return nil
}

// Sign implements the Signer interface for KMSSigner
func (k *KMSSigner) Sign(data []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), k.timeout)
	defer cancel()

	resp, err := k.client.Sign(ctx, &kms.SignInput{
		KeyId:            &k.keyID,
		Message:          data,
		MessageType:      kmstypes.MessageTypeRaw,
		SigningAlgorithm: kmstypes.SigningAlgorithmSpecEcdsaSha256,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign with AWS KMS: %w", err)
	}

	return resp.Signature, nil
}

// Algorithm implements the Signer interface for KMSSigner
func (k *KMSSigner) Algorithm() types.EventInitiatorKeyType {
	return k.keyType
}

// PublicKey implements the Signer interface for KMSSigner
func (k *KMSSigner) PublicKey() (string, error) {
	if k.publicKey == nil {
		return "", errors.New("public key not loaded")
	}

	pubKeyBytes, err := encryption.MarshalP256PublicKey(k.publicKey)
	if err != nil {
		return "", fmt.Errorf("failed to marshal P256 public key: %w", err)
	}

	return hex.EncodeToString(pubKeyBytes), nil
}
