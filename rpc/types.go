package rpc

import "mixlend/core/types"

type depositParams struct {
	From       string `json:"from"`
	Commitment string `json:"commitment"`
	Token      string `json:"token"`
	Amount     string `json:"amount"`
	Value      string `json:"value,omitempty"`
}

type getDepositParams struct {
	Commitment string `json:"commitment"`
}

type withdrawParams struct {
	To        string `json:"to"`
	Nullifier string `json:"nullifier"`
	Secret    string `json:"secret"`
}

type lockAndBorrowParams struct {
	Borrower   string `json:"borrower"`
	Commitment string `json:"commitment"`
	Token      string `json:"token"`
	Amount     string `json:"amount"`
}

type repayAndUnlockParams struct {
	From       string `json:"from"`
	Commitment string `json:"commitment"`
	Amount     string `json:"amount"`
}

type fundParams struct {
	From   string `json:"from"`
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

type getLoanParams struct {
	LoanID uint64 `json:"loanId"`
}

type getReserveParams struct {
	Token string `json:"token"`
}

type getBalanceParams struct {
	Address string `json:"address"`
	Token   string `json:"token"`
}

type mintParams struct {
	To     string `json:"to"`
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

type pauseParams struct {
	Module string `json:"module"`
	Paused bool   `json:"paused"`
}

type depositResult struct {
	Token     string `json:"token"`
	Amount    string `json:"amount"`
	Withdrawn bool   `json:"withdrawn"`
	Locked    bool   `json:"locked"`
}

type loanResult struct {
	LoanID           uint64 `json:"loanId"`
	Borrower         string `json:"borrower"`
	Token            string `json:"token"`
	Amount           string `json:"amount"`
	Collateral       string `json:"collateral"`
	CollateralAmount string `json:"collateralAmount"`
	Repaid           bool   `json:"repaid"`
}

type txResult struct {
	Events []*types.Event `json:"events"`
}

type loanTxResult struct {
	Loan   *loanResult    `json:"loan"`
	Events []*types.Event `json:"events"`
}

type withdrawResult struct {
	Token     string         `json:"token"`
	Amount    string         `json:"amount"`
	Recipient string         `json:"recipient"`
	Events    []*types.Event `json:"events"`
}

type amountResult struct {
	Amount string `json:"amount"`
}

type counterResult struct {
	LoanCounter uint64 `json:"loanCounter"`
}
