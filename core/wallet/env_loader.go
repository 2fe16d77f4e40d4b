package wallet

import (
	"errors"
	"os"
)

type EnvWalletLoader struct{}

func (l *EnvWalletLoader) LoadWallet() (*Wallet, error) {
	privKey := os.Getenv("ENDORSEGRAPH_SIGNER_PRIVKEY")
	if privKey == "" {
		return nil, errors.New("ENDORSEGRAPH_SIGNER_PRIVKEY not set in environment")
	}
	return FromHex(privKey)
}
