package chain

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	apperrors "github.com/onchaincommerce/minibet/errors"
)

// Signer produces transaction options for one account.
type Signer interface {
	Address() common.Address
	TransactOpts(ctx context.Context) (*bind.TransactOpts, error)
}

// KeySigner signs with an in-memory private key.
type KeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
}

// NewKeySigner parses a hex private key, with or without 0x.
func NewKeySigner(hexKey string, chainID *big.Int) (*KeySigner, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, apperrors.New(apperrors.ErrSignerUnavailable, "no signer key configured")
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrSignerUnavailable, "invalid signer key")
	}
	return &KeySigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
	}, nil
}

// Address returns the signing account.
func (s *KeySigner) Address() common.Address {
	return s.address
}

// TransactOpts returns fresh options bound to ctx.
func (s *KeySigner) TransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(s.key, s.chainID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrSignerUnavailable, "failed to build transactor")
	}
	opts.Context = ctx
	return opts, nil
}
