package types

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
)

// UnsignedTransaction carries caller-supplied EIP-1559 transaction fields
// in their wire (hex string) form. Gas, fee fields and nonce are expected
// to be populated by an upstream preparation step before the bridge sees
// the transaction.
type UnsignedTransaction struct {
	From                 string `json:"from,omitempty"`
	To                   string `json:"to,omitempty"`
	Value                string `json:"value,omitempty"`
	Gas                  string `json:"gas,omitempty"`
	MaxFeePerGas         string `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas string `json:"maxPriorityFeePerGas,omitempty"`
	Nonce                string `json:"nonce,omitempty"`
	ChainID              string `json:"chainId,omitempty"`
	Data                 string `json:"data,omitempty"`
}

// dynamicFeeTxBody is the unsigned EIP-1559 payload: the nine fields of a
// type-0x02 transaction before the signature is attached. The custodial
// signer consumes exactly this form.
type dynamicFeeTxBody struct {
	ChainID    *big.Int
	Nonce      uint64
	GasTipCap  *big.Int
	GasFeeCap  *big.Int
	Gas        uint64
	To         *common.Address `rlp:"nil"`
	Value      *big.Int
	Data       []byte
	AccessList ethtypes.AccessList
}

// MissingFields returns the names of required numeric fields that are
// absent. Serialization cannot proceed without them, so the bridge fails
// locally before any network call.
func (t *UnsignedTransaction) MissingFields() []string {
	var missing []string
	for _, field := range []struct {
		name  string
		value string
	}{
		{"gas", t.Gas},
		{"maxFeePerGas", t.MaxFeePerGas},
		{"maxPriorityFeePerGas", t.MaxPriorityFeePerGas},
		{"nonce", t.Nonce},
		{"value", t.Value},
	} {
		if field.value == "" {
			missing = append(missing, field.name)
		}
	}
	return missing
}

// Serialize produces the canonical unsigned type-0x02 encoding with the
// given chain id embedded. The transaction's own chainId field, when set,
// must agree with chainID.
func (t *UnsignedTransaction) Serialize(chainID int64) ([]byte, error) {
	if missing := t.MissingFields(); len(missing) > 0 {
		return nil, fmt.Errorf("missing required transaction fields: %s", strings.Join(missing, ", "))
	}

	if t.ChainID != "" {
		declared, err := parseHexBig("chainId", t.ChainID)
		if err != nil {
			return nil, err
		}
		if declared.Int64() != chainID {
			return nil, fmt.Errorf("transaction chainId %d does not match active chain %d", declared.Int64(), chainID)
		}
	}

	value, err := parseHexBig("value", t.Value)
	if err != nil {
		return nil, err
	}
	gasFeeCap, err := parseHexBig("maxFeePerGas", t.MaxFeePerGas)
	if err != nil {
		return nil, err
	}
	gasTipCap, err := parseHexBig("maxPriorityFeePerGas", t.MaxPriorityFeePerGas)
	if err != nil {
		return nil, err
	}
	gas, err := parseHexUint64("gas", t.Gas)
	if err != nil {
		return nil, err
	}
	nonce, err := parseHexUint64("nonce", t.Nonce)
	if err != nil {
		return nil, err
	}

	var to *common.Address
	if t.To != "" {
		if !common.IsHexAddress(t.To) {
			return nil, fmt.Errorf("invalid to address: %s", t.To)
		}
		addr := common.HexToAddress(t.To)
		to = &addr
	}

	var data []byte
	if t.Data != "" {
		data, err = hexutil.Decode(t.Data)
		if err != nil {
			return nil, fmt.Errorf("invalid data field: %w", err)
		}
	}

	body := &dynamicFeeTxBody{
		ChainID:    big.NewInt(chainID),
		Nonce:      nonce,
		GasTipCap:  gasTipCap,
		GasFeeCap:  gasFeeCap,
		Gas:        gas,
		To:         to,
		Value:      value,
		Data:       data,
		AccessList: ethtypes.AccessList{},
	}

	encoded, err := rlp.EncodeToBytes(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transaction: %w", err)
	}
	return append([]byte{ethtypes.DynamicFeeTxType}, encoded...), nil
}

// ParseUnsignedTransaction decodes a canonical unsigned type-0x02 payload
// back into go-ethereum transaction fields. Used by the development signer
// backend, which must reconstruct the transaction the bridge serialized.
func ParseUnsignedTransaction(raw []byte) (*ethtypes.DynamicFeeTx, error) {
	if len(raw) < 2 || raw[0] != ethtypes.DynamicFeeTxType {
		return nil, fmt.Errorf("expected type-0x02 transaction payload")
	}

	var body dynamicFeeTxBody
	if err := rlp.DecodeBytes(raw[1:], &body); err != nil {
		return nil, fmt.Errorf("failed to decode transaction payload: %w", err)
	}

	return &ethtypes.DynamicFeeTx{
		ChainID:    body.ChainID,
		Nonce:      body.Nonce,
		GasTipCap:  body.GasTipCap,
		GasFeeCap:  body.GasFeeCap,
		Gas:        body.Gas,
		To:         body.To,
		Value:      body.Value,
		Data:       body.Data,
		AccessList: body.AccessList,
	}, nil
}

func parseHexBig(name, s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, ok := new(big.Int).SetString(s[2:], 16)
		if !ok {
			return nil, fmt.Errorf("invalid hex value for %s: %s", name, s)
		}
		return v, nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid value for %s (expected 0x hex or decimal): %s", name, s)
	}
	return v, nil
}

func parseHexUint64(name, s string) (uint64, error) {
	v, err := parseHexBig(name, s)
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("value too large for %s: %s", name, s)
	}
	return v.Uint64(), nil
}
