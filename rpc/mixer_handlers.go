package rpc

import (
	"fmt"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"mixlend/crypto"
	"mixlend/native/tokens"
)

func (s *Server) parseAddress(raw string) (common.Address, error) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("invalid address %q", raw)
	}
	return common.HexToAddress(raw), nil
}

// resolveToken accepts a registry symbol ("USDC") or a hex address. The empty
// string resolves to the native asset.
func (s *Server) resolveToken(raw string) (tokens.Token, error) {
	registry := s.node.Registry()
	if raw == "" {
		if tok, ok := registry.ByAddress(tokens.NativeAsset); ok {
			return tok, nil
		}
		return tokens.Token{}, fmt.Errorf("native asset is not configured")
	}
	if common.IsHexAddress(raw) {
		if tok, ok := registry.ByAddress(common.HexToAddress(raw)); ok {
			return tok, nil
		}
		return tokens.Token{}, fmt.Errorf("unrecognized token address %q", raw)
	}
	if tok, ok := registry.BySymbol(raw); ok {
		return tok, nil
	}
	return tokens.Token{}, fmt.Errorf("unrecognized token %q", raw)
}

func (s *Server) handleMixerDeposit(w http.ResponseWriter, req *RPCRequest) {
	var params depositParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	from, err := s.parseAddress(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	commitment, err := crypto.ParseHash32(params.Commitment)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	tok, err := s.resolveToken(params.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := tokens.ParseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	// Native deposits attach the amount as payment; token deposits are
	// debited from the sender's balance and carry none.
	var payment *big.Int
	if params.Value != "" {
		payment, err = tokens.ParseAmount(params.Value)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return
		}
	} else if tok.Address == tokens.NativeAsset {
		payment = new(big.Int).Set(amount)
	}
	events, err := s.node.Deposit(from, commitment, tok.Address, amount, payment)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, txResult{Events: events})
}

func (s *Server) handleMixerGetDeposit(w http.ResponseWriter, req *RPCRequest) {
	var params getDepositParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	commitment, err := crypto.ParseHash32(params.Commitment)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	dep, err := s.node.GetDeposit(commitment)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	if dep == nil {
		// Mirrors the absent-record read: zero token, zero amount, both
		// flags false.
		writeResult(w, req.ID, depositResult{Token: (common.Address{}).Hex(), Amount: "0"})
		return
	}
	writeResult(w, req.ID, depositResult{
		Token:     dep.Token.Hex(),
		Amount:    dep.Amount.String(),
		Withdrawn: dep.Withdrawn,
		Locked:    dep.Locked,
	})
}

func (s *Server) handleMixerWithdraw(w http.ResponseWriter, req *RPCRequest) {
	var params withdrawParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	to, err := s.parseAddress(params.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	nullifier, err := crypto.ParseHash32(params.Nullifier)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	secret, err := crypto.ParseHash32(params.Secret)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	dep, events, err := s.node.Withdraw(to, nullifier, secret)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, withdrawResult{
		Token:     dep.Token.Hex(),
		Amount:    dep.Amount.String(),
		Recipient: to.Hex(),
		Events:    events,
	})
}
