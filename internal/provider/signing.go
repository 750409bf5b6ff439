package provider

import (
	"context"
	"encoding/hex"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/walletbridge/walletbridge/internal/metrics"
	"github.com/walletbridge/walletbridge/internal/signer"
	perrors "github.com/walletbridge/walletbridge/pkg/errors"
	"github.com/walletbridge/walletbridge/pkg/types"
)

// payloadWidth is the signer's expected raw-payload size. Shorter messages
// are zero-padded up to it before signing.
const payloadWidth = 32

// recoveryParity is the fixed recovery value serialized into returned
// signatures, per the chain's signature-recovery convention.
const recoveryParity = 1

// signRawPayload signs pre-formatted bytes with the custodial key behind
// signWith. The signer is told not to hash: any domain-specific hashing or
// prefixing happened upstream.
func (p *Provider) signRawPayload(ctx context.Context, signWith, payload string) (string, error) {
	sess, err := p.session(ctx)
	if err != nil {
		return "", err
	}

	if !common.IsHexAddress(signWith) {
		return "", perrors.Validationf("invalid signing address: %s", signWith)
	}

	message, err := hexutil.Decode(payload)
	if err != nil {
		return "", perrors.Validationf("invalid payload hex: %v", err)
	}
	if len(message) > payloadWidth {
		return "", perrors.Validationf("payload exceeds %d bytes", payloadWidth)
	}

	padded := make([]byte, payloadWidth)
	copy(padded[payloadWidth-len(message):], message)

	start := p.now()
	sig, err := p.signer.SignRawPayload(ctx, &signer.SignRawPayloadRequest{
		OrganizationID: sess.OrganizationID,
		SignWith:       common.HexToAddress(signWith).Hex(),
		Payload:        hexutil.Encode(padded),
		Encoding:       signer.PayloadEncodingHexadecimal,
		HashFunction:   signer.HashFunctionNoOp,
	})
	metrics.SignerDuration.WithLabelValues("sign_raw_payload").Observe(time.Since(start).Seconds())
	if err != nil {
		return "", err
	}

	return serializeSignature(sig.R, sig.S, recoveryParity)
}

// signTransaction canonically serializes the caller's transaction and has
// the custodial signer produce the raw signed form.
func (p *Provider) signTransaction(ctx context.Context, tx *types.UnsignedTransaction) (string, error) {
	sess, err := p.session(ctx)
	if err != nil {
		return "", err
	}

	if missing := tx.MissingFields(); len(missing) > 0 {
		return "", perrors.Validationf("missing required transaction fields: %s", strings.Join(missing, ", "))
	}

	signWith := tx.From
	if signWith == "" {
		current, ok := p.currentAccount(ctx, sess)
		if !ok {
			return "", perrors.Validation("transaction from address is required and no account is cached")
		}
		signWith = current
	}

	serialized, err := tx.Serialize(p.chainID)
	if err != nil {
		return "", perrors.Validation(err.Error())
	}

	start := p.now()
	resp, err := p.signer.SignTransaction(ctx, &signer.SignTransactionRequest{
		OrganizationID:      sess.OrganizationID,
		SignWith:            signWith,
		UnsignedTransaction: hex.EncodeToString(serialized),
	})
	metrics.SignerDuration.WithLabelValues("sign_transaction").Observe(time.Since(start).Seconds())
	if err != nil {
		return "", err
	}

	signed := resp.SignedTransaction
	if !strings.HasPrefix(signed, "0x") {
		signed = "0x" + signed
	}
	return signed, nil
}

// serializeSignature encodes (r, s, parity) into the chain's canonical
// compact form: r || s || (27 + parity), 65 bytes, 0x-prefixed. The raw
// (r, s) pair never crosses the bridge boundary.
func serializeSignature(r, s string, parity byte) (string, error) {
	rBytes, err := hex.DecodeString(strings.TrimPrefix(r, "0x"))
	if err != nil {
		return "", perrors.Signing("signer returned malformed r component")
	}
	sBytes, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return "", perrors.Signing("signer returned malformed s component")
	}
	if len(rBytes) > 32 || len(sBytes) > 32 {
		return "", perrors.Signing("signer returned oversized signature component")
	}

	sig := make([]byte, 65)
	copy(sig[32-len(rBytes):32], rBytes)
	copy(sig[64-len(sBytes):64], sBytes)
	sig[64] = 27 + parity
	return hexutil.Encode(sig), nil
}
