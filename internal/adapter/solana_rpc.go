package adapter

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	apperrors "github.com/solana-scanner/internal/errors"
)

// Token programs whose parsed accounts carry a mint/account type
const (
	ProgramSPLToken     = "spl-token"
	ProgramSPLToken2022 = "spl-token-2022"
)

// AccountInfo is the parsed owner program and account type of an address.
// Both are empty when the node could not parse the account data.
type AccountInfo struct {
	Program    string
	ParsedType string
	Owner      string
	Lamports   uint64
}

// IsTokenProgram reports whether the account belongs to an SPL token program
func (a *AccountInfo) IsTokenProgram() bool {
	return a.Program == ProgramSPLToken || a.Program == ProgramSPLToken2022
}

// SolanaRPC wraps a solana-go JSON-RPC client
type SolanaRPC struct {
	client *rpc.Client
}

// NewSolanaRPC creates an RPC client for endpoint
func NewSolanaRPC(endpoint string) *SolanaRPC {
	return &SolanaRPC{client: rpc.New(endpoint)}
}

type parsedAccountData struct {
	Program string `json:"program"`
	Parsed  struct {
		Type string `json:"type"`
	} `json:"parsed"`
}

// AccountInfo fetches address with jsonParsed encoding.
// A null account value is reported as a shape error.
func (s *SolanaRPC) AccountInfo(ctx context.Context, address string) (*AccountInfo, error) {
	pk, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, apperrors.NewInvalidAddressError(address)
	}

	out, err := s.client.GetAccountInfoWithOpts(ctx, pk, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingJSONParsed,
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, apperrors.NewProviderShapeError(ProviderRPC, "account has no value")
		}
		return nil, apperrors.WrapTransport(ProviderRPC, err)
	}
	if out == nil || out.Value == nil {
		return nil, apperrors.NewProviderShapeError(ProviderRPC, "account has no value")
	}

	info := &AccountInfo{
		Owner:    out.Value.Owner.String(),
		Lamports: out.Value.Lamports,
	}
	if out.Value.Data == nil {
		return info, nil
	}

	// Unparseable accounts come back as [base64, encoding] and carry no raw JSON
	raw := out.Value.Data.GetRawJSON()
	if len(raw) == 0 {
		return info, nil
	}
	var parsed parsedAccountData
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, apperrors.NewProviderShapeError(ProviderRPC, "unexpected parsed data: "+err.Error())
	}
	info.Program = parsed.Program
	info.ParsedType = parsed.Parsed.Type
	return info, nil
}
