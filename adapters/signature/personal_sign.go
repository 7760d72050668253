package signature

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/walletauth/ports"
)

var _ ports.SignatureVerifier = PersonalSign{}

// PersonalSign verifies EIP-191 personal_sign signatures
type PersonalSign struct{}

// Verify reports whether signature is a personal_sign of message by address.
// Any decoding or recovery failure is reported as false.
func (PersonalSign) Verify(address, message, signature string) bool {
	if !common.IsHexAddress(address) {
		return false
	}

	sig, err := hexutil.Decode(strings.TrimSpace(signature))
	if err != nil || len(sig) != crypto.SignatureLength {
		return false
	}

	// wallets emit v as 27/28, go-ethereum recovers with 0/1
	sig = append([]byte(nil), sig...)
	switch sig[crypto.RecoveryIDOffset] {
	case 0, 1:
	case 27, 28:
		sig[crypto.RecoveryIDOffset] -= 27
	default:
		return false
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return false
	}

	return crypto.PubkeyToAddress(*pub) == common.HexToAddress(address)
}
