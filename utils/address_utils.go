package utils

import (
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// HexStringToAddress converts a hex string (with or without the "0x" prefix) to a common.Address. trace.stackAddress
// is the only caller: it reads a CALL family argument word straight off the EVM stack, which common.Address can't
// parse directly because common.HexToAddress expects it already right-aligned to 20 bytes, while a raw stack word
// is a full 32-byte hex string whose address occupies only the low 20. SetBytes takes the rightmost 20 bytes of
// whatever is decoded, so the caller's full-width word lands correctly without the caller needing to slice it
// first. Returns the parsed address, or an error if the hex decode fails.
func HexStringToAddress(addressHexString string) (common.Address, error) {
	trimmedString := strings.TrimPrefix(addressHexString, "0x")

	// Pad the hex string with a 0 if its odd-length.
	if len(trimmedString)%2 != 0 {
		trimmedString = "0" + trimmedString
	}

	b, err := hex.DecodeString(trimmedString)
	if err != nil {
		return common.Address{}, err
	}

	address := common.Address{}
	address.SetBytes(b)
	return address, nil
}
