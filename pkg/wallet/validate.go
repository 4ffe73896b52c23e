package wallet

import (
	"strings"

	"cwex/pkg/asset"

	"github.com/btcsuite/btcutil/base58"
	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common"
)

// IsValidAddress reports whether candidate is a well-formed address for a.
// Every chain family has its own rule: checksum, length, charset, prefix.
func IsValidAddress(a asset.Asset, candidate string) bool {
	if candidate == "" {
		return false
	}

	switch a {
	case asset.BTC:
		return isBase58Check(candidate, versionBTC)
	case asset.LTC:
		return isBase58Check(candidate, versionLTC)
	case asset.DOGE:
		return isBase58Check(candidate, versionDOGE)
	case asset.TRX:
		return isBase58Check(candidate, versionTRX)
	case asset.ETH, asset.USDT, asset.BNB:
		return isEthHex(candidate)
	case asset.XRP:
		return isXrp(candidate)
	case asset.ADA:
		return isAda(candidate)
	case asset.SOL:
		return isSol(candidate)
	}

	return false
}

func isBase58Check(s string, version byte) bool {
	payload, ver, err := base58.CheckDecode(s)
	if err != nil {
		return false
	}
	return ver == version && len(payload) == 20
}

func isEthHex(s string) bool {
	if !strings.HasPrefix(s, "0x") || len(s) != 42 {
		return false
	}
	hexPart := s[2:]
	for _, c := range hexPart {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return false
		}
	}

	// all-lower and all-upper forms carry no checksum, mixed case must
	// match the EIP-55 encoding
	if hexPart == strings.ToLower(hexPart) || hexPart == strings.ToUpper(hexPart) {
		return true
	}
	return common.HexToAddress(s).Hex() == s
}

func isXrp(s string) bool {
	if !strings.HasPrefix(s, "r") || len(s) < 20 || len(s) > 40 {
		return false
	}
	payload := base58.Decode(s[1:])
	return len(payload) == 20
}

func isAda(s string) bool {
	hrp, data, err := bech32.Decode(s)
	if err != nil || hrp != hrpADA {
		return false
	}
	decoded, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return false
	}
	return len(decoded) == 28
}

func isSol(s string) bool {
	if len(s) < 32 || len(s) > 44 {
		return false
	}
	return len(base58.Decode(s)) == 32
}
