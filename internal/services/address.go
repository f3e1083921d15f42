package services

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

// AddressDeriver creates extended public keys and derives deposit addresses from them.
type AddressDeriver interface {
	NewExtendedPublicKey() (string, error)
	DeriveAddress(extendedPublicKey string, index uint32) (string, error)
}

// HDAddressDeriver derives P2WPKH addresses along the external chain (0/index)
// of a BIP32 extended public key.
type HDAddressDeriver struct {
	params *chaincfg.Params
}

func NewHDAddressDeriver(network string) (*HDAddressDeriver, error) {
	params, err := networkParams(network)
	if err != nil {
		return nil, err
	}
	return &HDAddressDeriver{params: params}, nil
}

// NewExtendedPublicKey generates a fresh master key and returns only its
// public half. The private key is never stored.
func (d *HDAddressDeriver) NewExtendedPublicKey() (string, error) {
	seed, err := hdkeychain.GenerateSeed(hdkeychain.RecommendedSeedLen)
	if err != nil {
		return "", fmt.Errorf("generate seed: %w", err)
	}
	master, err := hdkeychain.NewMaster(seed, d.params)
	if err != nil {
		return "", fmt.Errorf("create master key: %w", err)
	}
	public, err := master.Neuter()
	if err != nil {
		return "", fmt.Errorf("neuter master key: %w", err)
	}
	return public.String(), nil
}

func (d *HDAddressDeriver) DeriveAddress(extendedPublicKey string, index uint32) (string, error) {
	key, err := hdkeychain.NewKeyFromString(extendedPublicKey)
	if err != nil {
		return "", fmt.Errorf("parse extended public key: %w", err)
	}
	if !key.IsForNet(d.params) {
		return "", fmt.Errorf("extended public key is not for %s", d.params.Name)
	}

	external, err := key.Derive(0)
	if err != nil {
		return "", fmt.Errorf("derive external chain: %w", err)
	}
	child, err := external.Derive(index)
	if err != nil {
		return "", fmt.Errorf("derive index %d: %w", index, err)
	}

	pub, err := child.ECPubKey()
	if err != nil {
		return "", err
	}
	addr, err := btcutil.NewAddressWitnessPubKeyHash(btcutil.Hash160(pub.SerializeCompressed()), d.params)
	if err != nil {
		return "", err
	}
	return addr.EncodeAddress(), nil
}

func networkParams(network string) (*chaincfg.Params, error) {
	switch network {
	case "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	default:
		return nil, fmt.Errorf("unknown bitcoin network %q", network)
	}
}
