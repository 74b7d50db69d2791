// Package bls signs messages on G1 of the BN254 curve with public keys on G2,
// the layout the EVM pairing precompile verifies.
package bls

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
	bn256 "github.com/ethereum/go-ethereum/crypto/bn256/cloudflare"

	"github.com/yukia3e/evm-contract-deployer/internal/util"
)

const (
	packageName = "bls"

	DomainLength    = 32
	SecretKeyLength = 32
	PublicKeyLength = 128
	SignatureLength = 64

	fieldLen = 32

	// hashToPointAttempts bounds try-and-increment. Roughly half of all x are
	// on the curve, so running out means the hash is broken.
	hashToPointAttempts = 256
)

var (
	ErrInvalidSecretKey    = errors.New("secret key must be in [1, group order)")
	ErrInvalidDomainLength = fmt.Errorf("domain must be %d bytes", DomainLength)

	curveB  = big.NewInt(3)
	sqrtExp = new(big.Int).Rsh(new(big.Int).Add(bn256.P, big.NewInt(1)), 2)
	g2Base  = new(bn256.G2).ScalarBaseMult(big.NewInt(1))
)

// Domain separates signatures made for different purposes with the same key.
type Domain [DomainLength]byte

func DomainFromBytes(b []byte) (*Domain, error) {
	if len(b) != DomainLength {
		return nil, util.WrapErrorForLog(packageName, util.FuncName(), fmt.Errorf("%w: got %d", ErrInvalidDomainLength, len(b)))
	}
	var domain Domain
	copy(domain[:], b)
	return &domain, nil
}

type SecretKey struct {
	k *big.Int
}

type PublicKey struct {
	p *bn256.G2
}

type Signature struct {
	p *bn256.G1
}

func GenerateKey(r io.Reader) (*SecretKey, error) {
	k, _, err := bn256.RandomG2(r)
	if err != nil {
		return nil, util.WrapErrorForLog(packageName, util.FuncName(), err)
	}
	if k.Sign() == 0 {
		return nil, util.WrapErrorForLog(packageName, util.FuncName(), ErrInvalidSecretKey)
	}
	return &SecretKey{k: k}, nil
}

func SecretKeyFromBytes(b []byte) (*SecretKey, error) {
	funcName := util.FuncName()

	if len(b) != SecretKeyLength {
		return nil, util.WrapErrorForLog(packageName, funcName, fmt.Errorf("secret key must be %d bytes, got %d", SecretKeyLength, len(b)))
	}
	k := new(big.Int).SetBytes(b)
	if k.Sign() == 0 || k.Cmp(bn256.Order) >= 0 {
		return nil, util.WrapErrorForLog(packageName, funcName, ErrInvalidSecretKey)
	}
	return &SecretKey{k: k}, nil
}

func (sk *SecretKey) Bytes() []byte {
	return sk.k.FillBytes(make([]byte, SecretKeyLength))
}

func (sk *SecretKey) PublicKey() *PublicKey {
	return &PublicKey{p: new(bn256.G2).ScalarBaseMult(sk.k)}
}

func (sk *SecretKey) Sign(domain Domain, message []byte) (*Signature, error) {
	point, err := HashToPoint(domain, message)
	if err != nil {
		return nil, util.WrapErrorForLog(packageName, util.FuncName(), err)
	}
	return &Signature{p: new(bn256.G1).ScalarMult(point, sk.k)}, nil
}

func PublicKeyFromBytes(b []byte) (*PublicKey, error) {
	if len(b) != PublicKeyLength {
		return nil, util.WrapErrorForLog(packageName, util.FuncName(), fmt.Errorf("public key must be %d bytes, got %d", PublicKeyLength, len(b)))
	}
	p := new(bn256.G2)
	if _, err := p.Unmarshal(b); err != nil {
		return nil, util.WrapErrorForLog(packageName, util.FuncName(), err)
	}
	return &PublicKey{p: p}, nil
}

func (pk *PublicKey) Bytes() []byte {
	return pk.p.Marshal()
}

func SignatureFromBytes(b []byte) (*Signature, error) {
	if len(b) != SignatureLength {
		return nil, util.WrapErrorForLog(packageName, util.FuncName(), fmt.Errorf("signature must be %d bytes, got %d", SignatureLength, len(b)))
	}
	p := new(bn256.G1)
	if _, err := p.Unmarshal(b); err != nil {
		return nil, util.WrapErrorForLog(packageName, util.FuncName(), err)
	}
	return &Signature{p: p}, nil
}

func (s *Signature) Bytes() []byte {
	return s.p.Marshal()
}

// Verify checks e(sig, g2) == e(H(domain, message), pk).
func Verify(pk *PublicKey, domain Domain, message []byte, sig *Signature) (bool, error) {
	point, err := HashToPoint(domain, message)
	if err != nil {
		return false, util.WrapErrorForLog(packageName, util.FuncName(), err)
	}
	negSig := new(bn256.G1).Neg(sig.p)
	return bn256.PairingCheck([]*bn256.G1{negSig, point}, []*bn256.G2{g2Base, pk.p}), nil
}

// HashToPoint maps domain and message onto G1 by try-and-increment:
// x = keccak256(domain || message || counter) mod p until x^3 + 3 is a square.
func HashToPoint(domain Domain, message []byte) (*bn256.G1, error) {
	funcName := util.FuncName()

	prefix := make([]byte, 0, DomainLength+len(message))
	prefix = append(prefix, domain[:]...)
	prefix = append(prefix, message...)

	var counter [4]byte
	for i := uint32(0); i < hashToPointAttempts; i++ {
		binary.BigEndian.PutUint32(counter[:], i)
		x := new(big.Int).SetBytes(crypto.Keccak256(prefix, counter[:]))
		x.Mod(x, bn256.P)

		y, ok := curveY(x)
		if !ok {
			continue
		}

		encoded := make([]byte, 2*fieldLen)
		x.FillBytes(encoded[:fieldLen])
		y.FillBytes(encoded[fieldLen:])
		point := new(bn256.G1)
		if _, err := point.Unmarshal(encoded); err != nil {
			return nil, util.WrapErrorForLog(packageName, funcName, err)
		}
		return point, nil
	}
	return nil, util.WrapErrorForLog(packageName, funcName, fmt.Errorf("no curve point after %d attempts", hashToPointAttempts))
}

// curveY solves y^2 = x^3 + 3. p = 3 mod 4, so a square root is a power.
func curveY(x *big.Int) (*big.Int, bool) {
	if x.Sign() == 0 {
		return nil, false
	}
	rhs := new(big.Int).Exp(x, big.NewInt(3), bn256.P)
	rhs.Add(rhs, curveB).Mod(rhs, bn256.P)

	y := new(big.Int).Exp(rhs, sqrtExp, bn256.P)
	if new(big.Int).Exp(y, big.NewInt(2), bn256.P).Cmp(rhs) != 0 {
		return nil, false
	}
	return y, true
}

func (pk *PublicKey) Equal(other *PublicKey) bool {
	return bytes.Equal(pk.Bytes(), other.Bytes())
}

func (sk *SecretKey) Equal(other *SecretKey) bool {
	return sk.k.Cmp(other.k) == 0
}
