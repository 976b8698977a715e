package rpc

import (
	"net/http"

	"mixlend/crypto"
	"mixlend/native/lendingpool"
	"mixlend/native/tokens"
)

func loanToResult(loan *lendingpool.Loan) *loanResult {
	if loan == nil {
		return nil
	}
	return &loanResult{
		LoanID:           loan.ID,
		Borrower:         loan.Borrower.Hex(),
		Token:            loan.Token.Hex(),
		Amount:           loan.Amount.String(),
		Collateral:       crypto.FormatHash32(loan.Collateral),
		CollateralAmount: loan.CollateralAmount.String(),
		Repaid:           loan.Repaid,
	}
}

func (s *Server) handleLockAndBorrow(w http.ResponseWriter, req *RPCRequest) {
	var params lockAndBorrowParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	borrower, err := s.parseAddress(params.Borrower)
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
	loan, events, err := s.node.LockAndBorrow(borrower, commitment, tok.Address, amount)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, loanTxResult{Loan: loanToResult(loan), Events: events})
}

func (s *Server) handleRepayAndUnlock(w http.ResponseWriter, req *RPCRequest) {
	var params repayAndUnlockParams
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
	amount, err := tokens.ParseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	loan, events, err := s.node.RepayAndUnlock(from, commitment, amount)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, loanTxResult{Loan: loanToResult(loan), Events: events})
}

func (s *Server) handleLendFund(w http.ResponseWriter, req *RPCRequest) {
	var params fundParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	from, err := s.parseAddress(params.From)
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
	events, err := s.node.Fund(from, tok.Address, amount)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, txResult{Events: events})
}

func (s *Server) handleLendGetLoan(w http.ResponseWriter, req *RPCRequest) {
	var params getLoanParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	loan, err := s.node.Loan(params.LoanID)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	if loan == nil {
		writeError(w, http.StatusBadRequest, req.ID, codeNotFound, "loan not found", params.LoanID)
		return
	}
	writeResult(w, req.ID, loanToResult(loan))
}

func (s *Server) handleLendLoanCounter(w http.ResponseWriter, req *RPCRequest) {
	counter, err := s.node.LoanCounter()
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, counterResult{LoanCounter: counter})
}

func (s *Server) handleLendGetReserve(w http.ResponseWriter, req *RPCRequest) {
	var params getReserveParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	tok, err := s.resolveToken(params.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	reserve, err := s.node.Reserve(tok.Address)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: reserve.String()})
}

func (s *Server) handleBankGetBalance(w http.ResponseWriter, req *RPCRequest) {
	var params getBalanceParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	addr, err := s.parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	tok, err := s.resolveToken(params.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	balance, err := s.node.Balance(addr, tok.Address)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: balance.String()})
}

func (s *Server) handleBankMint(w http.ResponseWriter, req *RPCRequest) {
	var params mintParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	to, err := s.parseAddress(params.To)
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
	events, err := s.node.Mint(to, tok.Address, amount)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, txResult{Events: events})
}

func (s *Server) handleSysPause(w http.ResponseWriter, req *RPCRequest) {
	var params pauseParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.node.SetPaused(params.Module, params.Paused); err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"paused": params.Paused})
}
