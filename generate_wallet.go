package main

import (
	"fmt"

	"endorsegraph/core/wallet"
)

func main() {
	w, err := wallet.NewWallet()
	if err != nil {
		panic(err)
	}
	fmt.Printf("Address: %s\n", w.Address())
	fmt.Printf("Private Key (hex): %s\n", w.PrivateKeyHex())
}
