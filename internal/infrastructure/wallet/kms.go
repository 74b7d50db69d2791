package wallet

import (
	"context"
	"crypto/ecdsa"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"
	"errors"
	"fmt"
	"hash/crc32"
	"math/big"

	"cloud.google.com/go/kms/apiv1/kmspb"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/yukia3e/evm-contract-deployer/internal/domain/model"
	"github.com/yukia3e/evm-contract-deployer/internal/domain/repository"
	"github.com/yukia3e/evm-contract-deployer/internal/util"
)

var (
	secp256k1N     = crypto.S256().Params().N
	secp256k1halfN = new(big.Int).Div(secp256k1N, big.NewInt(2))

	crc32cTable = crc32.MakeTable(crc32.Castagnoli)

	errInvalidPublicKey = errors.New("invalid secp256k1 public key")
)

// KMSClient is the part of *kms.KeyManagementClient the wallet needs.
type KMSClient interface {
	GetPublicKey(ctx context.Context, req *kmspb.GetPublicKeyRequest, opts ...gax.CallOption) (*kmspb.PublicKey, error)
	AsymmetricSign(ctx context.Context, req *kmspb.AsymmetricSignRequest, opts ...gax.CallOption) (*kmspb.AsymmetricSignResponse, error)
}

type kmsWallet struct {
	kmsClient  KMSClient
	keyVersion string
	publicKey  *ecdsa.PublicKey
	address    common.Address
}

// NewKMSWallet uses an EC_SIGN_SECP256K1_SHA256 crypto key version held in Cloud KMS.
// The public key is fetched once and the account address derived from it.
func NewKMSWallet(ctx context.Context, kmsClient KMSClient, keyVersion string) (repository.WalletRepository, error) {
	funcName := util.FuncName()

	if keyVersion == "" {
		return nil, util.WrapErrorForLog(packageName, funcName, errors.New("keyVersion is empty"))
	}

	k := &kmsWallet{
		kmsClient:  kmsClient,
		keyVersion: keyVersion,
	}

	pubKey, err := k.getPublicKey(ctx)
	if err != nil {
		return nil, util.WrapErrorForLog(packageName, funcName, fmt.Errorf("failed to get public key: %w", err))
	}
	k.publicKey = pubKey
	k.address = crypto.PubkeyToAddress(*pubKey)
	log.Debug().Str("address", k.address.Hex()).Str("keyVersion", keyVersion).Msg(util.WrapLogMessage(packageName, funcName, "loaded key"))

	return k, nil
}

func (k *kmsWallet) Address() common.Address {
	return k.address
}

func (k *kmsWallet) SignTransaction(ctx context.Context, req model.TransactionRequest) (*model.SignedTransaction, error) {
	funcName := util.FuncName()

	uTx, signer, err := newUnsignedTransaction(req)
	if err != nil {
		return nil, util.WrapErrorForLog(packageName, funcName, &model.SigningError{Err: err})
	}
	txHash := signer.Hash(uTx)

	signature, err := k.sign(ctx, txHash[:])
	if err != nil {
		return nil, util.WrapErrorForLog(packageName, funcName, &model.SigningError{Err: fmt.Errorf("failed to sign: %w", err)})
	}

	signedTx, err := attachSignature(uTx, signer, signature, k.address)
	if err != nil {
		return nil, util.WrapErrorForLog(packageName, funcName, &model.SigningError{Err: err})
	}
	return signedTx, nil
}

func (k *kmsWallet) getPublicKey(ctx context.Context) (*ecdsa.PublicKey, error) {
	funcName := util.FuncName()

	publicKeyResponse, err := k.kmsClient.GetPublicKey(ctx, &kmspb.GetPublicKeyRequest{
		Name: k.keyVersion,
	})
	if err != nil {
		return nil, util.WrapErrorForLog(packageName, funcName, fmt.Errorf("failed to get public key: %w", err))
	}
	if publicKeyResponse.Name != k.keyVersion {
		return nil, util.WrapErrorForLog(packageName, funcName, fmt.Errorf("failed to get public key: invalid key name"))
	}
	publicKeyPEM := publicKeyResponse.Pem
	if publicKeyPEM == "" {
		return nil, util.WrapErrorForLog(packageName, funcName, fmt.Errorf("failed to get public key: empty PEM"))
	}
	if int64(crc32c([]byte(publicKeyPEM))) != publicKeyResponse.GetPemCrc32C().GetValue() {
		return nil, util.WrapErrorForLog(packageName, funcName, fmt.Errorf("failed to get public key: invalid CRC32"))
	}

	block, _ := pem.Decode([]byte(publicKeyPEM))
	if block == nil || block.Type != "PUBLIC KEY" {
		return nil, util.WrapErrorForLog(packageName, funcName, &model.KeyFormatError{Err: errors.New("failed to decode public key PEM")})
	}
	pubKey, err := getPublicKeyFromDecodedPEM(block)
	if err != nil {
		return nil, util.WrapErrorForLog(packageName, funcName, &model.KeyFormatError{Err: err})
	}

	return pubKey, nil
}

func (k *kmsWallet) sign(ctx context.Context, hash []byte) ([]byte, error) {
	funcName := util.FuncName()

	digestCRC32C := crc32c(hash)

	signResponse, err := k.kmsClient.AsymmetricSign(ctx, &kmspb.AsymmetricSignRequest{
		Name: k.keyVersion,
		Digest: &kmspb.Digest{
			Digest: &kmspb.Digest_Sha256{
				Sha256: hash,
			},
		},
		DigestCrc32C: wrapperspb.Int64(int64(digestCRC32C)),
	})
	if err != nil {
		return nil, util.WrapErrorForLog(packageName, funcName, fmt.Errorf("failed to sign digest: %w", err))
	}

	if !signResponse.VerifiedDigestCrc32C {
		return nil, util.WrapErrorForLog(packageName, funcName, fmt.Errorf("AsymmetricSign: request corrupted in-transit"))
	}
	if len(signResponse.Signature) == 0 {
		return nil, util.WrapErrorForLog(packageName, funcName, fmt.Errorf("failed to sign digest: empty signature"))
	}
	if int64(crc32c(signResponse.Signature)) != signResponse.GetSignatureCrc32C().GetValue() {
		return nil, util.WrapErrorForLog(packageName, funcName, fmt.Errorf("AsymmetricSign: response corrupted in-transit"))
	}

	r, s, err := parseSignature(signResponse.Signature)
	if err != nil {
		return nil, util.WrapErrorForLog(packageName, funcName, fmt.Errorf("failed to parse signature: %w", err))
	}

	// KMS does not return the recovery id, so try both.
	for _, v := range []byte{0, 1} {
		candidateSignature := make([]byte, crypto.SignatureLength)
		r.FillBytes(candidateSignature[:32])
		s.FillBytes(candidateSignature[32:64])
		candidateSignature[crypto.RecoveryIDOffset] = v

		candidatePublicKey, err := crypto.SigToPub(hash, candidateSignature)
		if err != nil {
			continue
		}
		if candidatePublicKey.Equal(k.publicKey) {
			return candidateSignature, nil
		}
	}

	return nil, util.WrapErrorForLog(packageName, funcName, fmt.Errorf("failed to sign digest: invalid signature"))
}

func crc32c(data []byte) uint32 {
	return crc32.Checksum(data, crc32cTable)
}

func getPublicKeyFromDecodedPEM(block *pem.Block) (*ecdsa.PublicKey, error) {
	funcName := util.FuncName()

	var pki struct {
		Raw       asn1.RawContent
		Algorithm pkix.AlgorithmIdentifier
		PublicKey asn1.BitString
	}

	_, err := asn1.Unmarshal(block.Bytes, &pki)
	if err != nil {
		return nil, util.WrapErrorForLog(packageName, funcName, fmt.Errorf("failed to unmarshal public key: %w", err))
	}

	pubKey, err := crypto.UnmarshalPubkey(pki.PublicKey.RightAlign())
	if err != nil {
		return nil, util.WrapErrorForLog(packageName, funcName, fmt.Errorf("failed to parse public key: %w", err))
	}
	if !crypto.S256().IsOnCurve(pubKey.X, pubKey.Y) {
		return nil, util.WrapErrorForLog(packageName, funcName, fmt.Errorf("failed to parse public key: %w", errInvalidPublicKey))
	}

	return pubKey, nil
}

func parseSignature(signature []byte) (r *big.Int, s *big.Int, err error) {
	funcName := util.FuncName()

	sig := new(struct {
		R *big.Int
		S *big.Int
	})

	_, err = asn1.Unmarshal(signature, sig)
	if err != nil {
		return nil, nil, util.WrapErrorForLog(packageName, funcName, fmt.Errorf("failed to unmarshal signature: %w", err))
	}
	if sig.R.Sign() <= 0 || sig.S.Sign() <= 0 || sig.R.Cmp(secp256k1N) >= 0 || sig.S.Cmp(secp256k1N) >= 0 {
		return nil, nil, util.WrapErrorForLog(packageName, funcName, fmt.Errorf("signature values out of range"))
	}

	// Ethereum only accepts the low-S form.
	if sig.S.Cmp(secp256k1halfN) > 0 {
		sig.S = new(big.Int).Sub(secp256k1N, sig.S)
	}

	return sig.R, sig.S, nil
}
