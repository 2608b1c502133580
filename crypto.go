package escrow

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/cosmos/cosmos-sdk/types/bech32"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/zeebo/xxh3"
	"golang.org/x/crypto/sha3"
)

const (
	IdentityPrefix = "esc"
	SlotPrefix     = "esl"
)

// Role tags used for slot derivation.
const (
	RoleCampaign    = "create_campaign"
	RoleContributor = "contribute"
)

func GetHash(data []byte) []byte {
	return crypto.Keccak256(data)
}

func parsePrivKey(privatekey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privatekey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

func PubkeyToAddr(pub *ecdsa.PublicKey, hrp string) (string, error) {
	addr := crypto.PubkeyToAddress(*pub)
	return bech32.ConvertAndEncode(hrp, addr.Bytes())
}

func PrivKeyToAddr(privatekey string, hrp string) (string, error) {
	key, err := parsePrivKey(privatekey)
	if err != nil {
		return "", err
	}
	return PubkeyToAddr(&key.PublicKey, hrp)
}

// GenerateKey returns a fresh hex private key together with its identity address.
func GenerateKey() (string, string, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return "", "", err
	}
	addr, err := PubkeyToAddr(&key.PublicKey, IdentityPrefix)
	if err != nil {
		return "", "", err
	}
	return hex.EncodeToString(crypto.FromECDSA(key)), addr, nil
}

func SignBytes(data []byte, privatekey string) ([]byte, error) {
	key, err := parsePrivKey(privatekey)
	if err != nil {
		return nil, err
	}
	return crypto.Sign(GetHash(data), key)
}

// VerifySignature recovers the signing key and checks it belongs to address.
func VerifySignature(data []byte, signature []byte, address string) error {
	if len(signature) != crypto.SignatureLength {
		return fmt.Errorf("invalid signature length: %d", len(signature))
	}

	pub, err := crypto.SigToPub(GetHash(data), signature)
	if err != nil {
		return fmt.Errorf("failed to recover public key: %w", err)
	}

	hrp, _, err := bech32.DecodeAndConvert(address)
	if err != nil {
		return fmt.Errorf("invalid address %s: %w", address, err)
	}

	recovered, err := PubkeyToAddr(pub, hrp)
	if err != nil {
		return err
	}

	if recovered != address {
		return fmt.Errorf("signature does not match address: expected %s, got %s", address, recovered)
	}

	return nil
}

// SignCommand signs a serialized document and wraps it as a SignedCommand.
func SignCommand(document []byte, privatekey string) (SignedCommand, error) {
	signature, err := SignBytes(document, privatekey)
	if err != nil {
		return SignedCommand{}, err
	}
	return SignedCommand{
		Document: string(document),
		Proof: Proof{
			Type:      ProofTypeEcrecover,
			Signature: hex.EncodeToString(signature),
		},
	}, nil
}

// DeriveSlot maps a role tag and its owning identities to a storage slot.
// Components are separated by a zero byte so that ("ab","c") and ("a","bc") differ.
func DeriveSlot(role string, owners ...string) (string, error) {
	if role == "" || len(owners) == 0 {
		return "", fmt.Errorf("slot derivation requires a role and at least one owner")
	}

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(role))
	for _, owner := range owners {
		if owner == "" {
			return "", fmt.Errorf("empty owner for role %s", role)
		}
		h.Write([]byte{0})
		h.Write([]byte(owner))
	}
	sum := h.Sum(nil)

	return bech32.ConvertAndEncode(SlotPrefix, sum[:20])
}

func CampaignSlot(creator string) (string, error) {
	return DeriveSlot(RoleCampaign, creator)
}

func ContributorSlot(campaign, contributor string) (string, error) {
	return DeriveSlot(RoleContributor, campaign, contributor)
}

// CommandID identifies a raw command document for replay detection.
func CommandID(document string) string {
	h := xxh3.HashString128(document)
	return fmt.Sprintf("%016x%016x", h.Hi, h.Lo)
}
