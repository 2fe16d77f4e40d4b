package wallet

type WalletLoader interface {
	LoadWallet() (*Wallet, error)
}
