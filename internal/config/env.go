package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	DefaultGasLimit            = 9_000_000
	DefaultKMSLocation         = "asia-northeast1"
	DefaultKMSKeyVersion       = 1
	DefaultReceiptPollInterval = time.Second
	DefaultReceiptTimeout      = 2 * time.Minute

	SignerBackendLocal = "local"
	SignerBackendKMS   = "kms"
)

// LoadDotEnv loads variables from the given files (".env" when none are
// given). Variables already present in the environment win.
func LoadDotEnv(filenames ...string) {
	if len(filenames) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return
		}
	}
	if err := godotenv.Load(filenames...); err != nil {
		log.Warn().Msgf("config.LoadDotEnv: failed to load env file: %v", err)
	}
}

func GetEnvironment() string {
	return os.Getenv("APP_ENV")
}

func IsLocal() bool {
	return GetEnvironment() == "local"
}

func IsStaging() bool {
	return GetEnvironment() == "staging"
}

func IsProduction() bool {
	return GetEnvironment() == "production"
}

func MustGetRPCEndpoint() string {
	rpcEndpoint := os.Getenv("RPC_ENDPOINT")
	if rpcEndpoint == "" {
		panic("RPC_ENDPOINT is not set")
	}

	return rpcEndpoint
}

func GetSignerBackend() string {
	backend := os.Getenv("SIGNER_BACKEND")
	switch backend {
	case SignerBackendLocal, SignerBackendKMS:
		return backend
	case "":
		return SignerBackendLocal
	default:
		log.Error().Msgf("config.GetSignerBackend: unknown signer backend %q, using %q", backend, SignerBackendLocal)
		return SignerBackendLocal
	}
}

func MustGetPrivateKey() string {
	privateKey := os.Getenv("DEPLOYER_PRIVATE_KEY")
	if privateKey == "" {
		panic("DEPLOYER_PRIVATE_KEY is not set")
	}

	return privateKey
}

func MustGetGCPProjectID() string {
	gcpProjectID := os.Getenv("GCP_PROJECT_ID")
	if gcpProjectID == "" {
		panic("GCP_PROJECT_ID is not set")
	}

	return gcpProjectID
}

func MustGetKeyRingID() string {
	keyRingID := os.Getenv("KEY_RING_ID")
	if keyRingID == "" {
		panic("KEY_RING_ID is not set")
	}

	return keyRingID
}

func MustGetKMSKeyID() string {
	keyID := os.Getenv("KMS_KEY_ID")
	if keyID == "" {
		panic("KMS_KEY_ID is not set")
	}

	return keyID
}

func GetKMSLocation() string {
	location := os.Getenv("KMS_LOCATION")
	if location == "" {
		return DefaultKMSLocation
	}
	return location
}

func GetKMSKeyVersion() int {
	versionStr := os.Getenv("KMS_KEY_VERSION")
	if versionStr == "" {
		return DefaultKMSKeyVersion
	}
	version, err := strconv.Atoi(versionStr)
	if err != nil || version < 1 {
		log.Error().Msgf("config.GetKMSKeyVersion: invalid key version %q", versionStr)
		return DefaultKMSKeyVersion
	}
	return version
}

// KMSKeyVersionName builds the full resource name of the configured crypto key version.
func KMSKeyVersionName() string {
	return fmt.Sprintf("projects/%s/locations/%s/keyRings/%s/cryptoKeys/%s/cryptoKeyVersions/%d",
		MustGetGCPProjectID(), GetKMSLocation(), MustGetKeyRingID(), MustGetKMSKeyID(), GetKMSKeyVersion())
}

func GetCredentialFilePath() string {
	return os.Getenv("GOOGLE_CREDENTIAL_FILE_PATH")
}

// GetChainID returns nil when CHAIN_ID is unset; the chain is asked instead.
func GetChainID() *big.Int {
	return getBigInt("CHAIN_ID")
}

func GetGasLimit() uint64 {
	gasLimitStr := os.Getenv("GAS_LIMIT")
	if gasLimitStr == "" {
		return DefaultGasLimit
	}
	gasLimit, err := strconv.ParseUint(gasLimitStr, 10, 64)
	if err != nil {
		log.Error().Msgf("config.GetGasLimit: failed to parse gas limit: %v", err)
		return DefaultGasLimit
	}
	return gasLimit
}

// GetGasPrice returns nil when GAS_PRICE is unset; the node's suggestion is used instead.
func GetGasPrice() *big.Int {
	return getBigInt("GAS_PRICE")
}

func GetReceiptPollInterval() time.Duration {
	return getDuration("RECEIPT_POLL_INTERVAL", DefaultReceiptPollInterval)
}

func GetReceiptTimeout() time.Duration {
	return getDuration("RECEIPT_TIMEOUT", DefaultReceiptTimeout)
}

func GetMetricsTextfile() string {
	return os.Getenv("METRICS_TEXTFILE")
}

func getBigInt(key string) *big.Int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return nil
	}
	value, ok := new(big.Int).SetString(valueStr, 10)
	if !ok || value.Sign() < 0 {
		log.Error().Msgf("config.getBigInt: failed to parse %s: %q", key, valueStr)
		return nil
	}
	return value
}

func getDuration(key string, fallback time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return fallback
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil || value <= 0 {
		log.Error().Msgf("config.getDuration: failed to parse %s: %q", key, valueStr)
		return fallback
	}
	return value
}
