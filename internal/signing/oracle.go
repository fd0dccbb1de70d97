// Copyright 2026 The Nova Compute Validator Authors
// This file is part of the Nova Compute validator.
//
// The Nova Compute validator is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation, either version
// 3 of the License, or (at your option) any later version.

// Package signing defines the validator's signing oracle: the boundary
// the core consumes to sign and verify receipts, without implementing
// a wallet or key-management system itself.
package signing

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"golang.org/x/crypto/blake2b"

	"github.com/nova-compute/validator/internal/metagraph"
)

// Oracle signs and verifies blobs on behalf of a single hotkey. The
// concrete implementation stands in for the real substrate wallet,
// which is an external collaborator.
type Oracle interface {
	Hotkey() metagraph.SS58
	Sign(blob []byte) (signature string, err error)
	Verify(hotkey metagraph.SS58, blob []byte, signature string) bool
}

// btcecOracle signs with a secp256k1 keypair (btcec) and encodes
// addresses as a blake2b checksum of the compressed public key,
// analogous in shape to an ss58 address.
type btcecOracle struct {
	priv   *btcec.PrivateKey
	hotkey metagraph.SS58
}

// NewOracle builds a signing oracle from a raw 32-byte private key.
func NewOracle(privateKey []byte) (Oracle, error) {
	priv, _ := btcec.PrivKeyFromBytes(privateKey)
	pub := priv.PubKey().SerializeCompressed()
	addr, err := ss58Like(pub)
	if err != nil {
		return nil, err
	}
	return &btcecOracle{priv: priv, hotkey: addr}, nil
}

func (o *btcecOracle) Hotkey() metagraph.SS58 { return o.hotkey }

func (o *btcecOracle) Sign(blob []byte) (string, error) {
	digest := sha256.Sum256(blob)
	sig := ecdsa.Sign(o.priv, digest[:])
	return hex.EncodeToString(sig.Serialize()), nil
}

func (o *btcecOracle) Verify(hotkey metagraph.SS58, blob []byte, signature string) bool {
	// Without the public key registry this oracle can only verify
	// signatures made by itself; callers that need to verify a
	// counterparty's signature use VerifyWithPublicKey.
	if hotkey != o.hotkey {
		return false
	}
	sigBytes, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	sig, err := ecdsa.ParseDERSignature(sigBytes)
	if err != nil {
		return false
	}
	digest := sha256.Sum256(blob)
	return sig.Verify(digest[:], o.priv.PubKey())
}

// VerifyWithPublicKey verifies a blob/signature pair against an
// explicit compressed public key, for checking receipts signed by
// other validators and miners.
func VerifyWithPublicKey(pubKeyBytes []byte, blob []byte, signature string) bool {
	pub, err := btcec.ParsePubKey(pubKeyBytes)
	if err != nil {
		return false
	}
	sigBytes, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	sig, err := ecdsa.ParseDERSignature(sigBytes)
	if err != nil {
		return false
	}
	digest := sha256.Sum256(blob)
	return sig.Verify(digest[:], pub)
}

func ss58Like(pubKeyCompressed []byte) (metagraph.SS58, error) {
	sum := blake2b.Sum256(pubKeyCompressed)
	return metagraph.SS58(hex.EncodeToString(sum[:16])), nil
}
