package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"mixlend/notes"
)

var rpcEndpoint = defaultRPCEndpoint() // Defaults to localhost, can be overridden via RPC_URL or --rpc flag
var rpcAuthToken = os.Getenv("MIXLEND_RPC_TOKEN")

func main() {
	args := os.Args[1:]
	var err error
	args, err = applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if len(args) < 1 {
		printUsage()
		return
	}

	command := args[0]
	switch command {
	case "new-note":
		if len(args) < 3 {
			fmt.Println("Error: Please provide a token and an amount.")
			printUsage()
			return
		}
		newNote(args[1], args[2])
	case "notes":
		listNotes()
	case "deposit":
		if len(args) < 3 {
			fmt.Println("Error: Please provide a note id and a funding address.")
			printUsage()
			return
		}
		deposit(args[1], args[2])
	case "withdraw":
		if len(args) < 3 {
			fmt.Println("Error: Please provide a note id and a recipient address.")
			printUsage()
			return
		}
		withdraw(args[1], args[2])
	case "borrow":
		if len(args) < 5 {
			fmt.Println("Error: Please provide a note id, borrower, token and amount.")
			printUsage()
			return
		}
		borrow(args[1], args[2], args[3], args[4])
	case "repay":
		if len(args) < 3 {
			fmt.Println("Error: Please provide a note id and a paying address.")
			printUsage()
			return
		}
		repay(args[1], args[2])
	case "fund":
		if len(args) < 4 {
			fmt.Println("Error: Please provide a funder, token and amount.")
			printUsage()
			return
		}
		fund(args[1], args[2], args[3])
	case "loan":
		if len(args) < 2 {
			fmt.Println("Error: Please provide a loan id.")
			printUsage()
			return
		}
		showLoan(args[1])
	case "reserve":
		if len(args) < 2 {
			fmt.Println("Error: Please provide a token.")
			printUsage()
			return
		}
		showReserve(args[1])
	case "balance":
		if len(args) < 3 {
			fmt.Println("Error: Please provide an address and a token.")
			printUsage()
			return
		}
		showBalance(args[1], args[2])
	case "mint":
		if len(args) < 4 {
			fmt.Println("Error: Please provide a recipient, token and amount.")
			printUsage()
			return
		}
		mint(args[1], args[2], args[3])
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
	}
}

func printUsage() {
	fmt.Println(`Usage: mixlend-cli [--rpc <url>] <command> [args]

Note management (stored locally, never sent to the node):
  new-note <token> <amount>              Generate a secret pair and save the note
  notes                                  List saved notes

Mixer:
  deposit <note-id> <from>               Submit the note's deposit
  withdraw <note-id> <to>                Reveal the note and withdraw to a fresh address

Lending:
  borrow <note-id> <borrower> <token> <amount>   Lock the note's deposit and borrow
  repay <note-id> <from>                 Repay the note's loan and unlock the deposit
  fund <from> <token> <amount>           Add pool liquidity
  loan <id>                              Show a loan
  reserve <token>                        Show pool liquidity for a token

Bank:
  balance <address> <token>              Show a ledger balance
  mint <to> <token> <amount>             Credit balance (requires MIXLEND_RPC_TOKEN)`)
}

func defaultRPCEndpoint() string {
	if url := strings.TrimSpace(os.Getenv("RPC_URL")); url != "" {
		return url
	}
	return "http://localhost:8545"
}

func applyGlobalFlags(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--rpc":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--rpc requires a URL")
			}
			rpcEndpoint = args[i+1]
			i++
		default:
			out = append(out, args[i])
		}
	}
	return out, nil
}

func notesPath() string {
	if path := strings.TrimSpace(os.Getenv("MIXLEND_NOTES")); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "notes.db"
	}
	dir := filepath.Join(home, ".mixlend")
	_ = os.MkdirAll(dir, 0o700)
	return filepath.Join(dir, "notes.db")
}

func openNotes() *notes.Store {
	store, err := notes.Open(notesPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening note store: %v\n", err)
		os.Exit(1)
	}
	return store
}

func mustNote(store *notes.Store, id string) *notes.Note {
	note, err := store.Get(id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading note: %v\n", err)
		os.Exit(1)
	}
	if note == nil {
		fmt.Fprintf(os.Stderr, "Unknown note %s\n", id)
		os.Exit(1)
	}
	return note
}

func newNote(token, amount string) {
	store := openNotes()
	defer store.Close()

	note, err := store.Create(token, amount)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating note: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Note saved: %s\n", note.ID)
	fmt.Printf("  commitment: %s\n", note.Commitment)
	fmt.Printf("  token:      %s\n", note.Token)
	fmt.Printf("  amount:     %s\n", note.Amount)
	fmt.Println("Keep the note database safe. The nullifier and secret are the only way to withdraw.")
}

func listNotes() {
	store := openNotes()
	defer store.Close()

	all, err := store.List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing notes: %v\n", err)
		os.Exit(1)
	}
	if len(all) == 0 {
		fmt.Println("No notes saved.")
		return
	}
	for _, note := range all {
		fmt.Printf("%s  %-9s  %s %s  commitment=%s", note.ID, note.Status, note.Amount, note.Token, note.Commitment)
		if note.LoanID != 0 {
			fmt.Printf("  loan=%d", note.LoanID)
		}
		fmt.Println()
	}
}

func deposit(noteID, from string) {
	store := openNotes()
	defer store.Close()
	note := mustNote(store, noteID)

	result, err := rpcCall("mixer_deposit", map[string]string{
		"from":       from,
		"commitment": note.Commitment,
		"token":      note.Token,
		"amount":     note.Amount,
	}, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Deposit failed: %v\n", err)
		os.Exit(1)
	}
	if err := store.SetStatus(note.ID, notes.StatusDeposited, 0); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: deposit accepted but note update failed: %v\n", err)
	}
	printJSON(result)
}

func withdraw(noteID, to string) {
	store := openNotes()
	defer store.Close()
	note := mustNote(store, noteID)

	result, err := rpcCall("mixer_withdraw", map[string]string{
		"to":        to,
		"nullifier": note.Nullifier,
		"secret":    note.Secret,
	}, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Withdraw failed: %v\n", err)
		os.Exit(1)
	}
	if err := store.SetStatus(note.ID, notes.StatusWithdrawn, 0); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: withdrawal accepted but note update failed: %v\n", err)
	}
	printJSON(result)
}

func borrow(noteID, borrower, token, amount string) {
	store := openNotes()
	defer store.Close()
	note := mustNote(store, noteID)

	result, err := rpcCall("collateral_lockAndBorrow", map[string]string{
		"borrower":   borrower,
		"commitment": note.Commitment,
		"token":      token,
		"amount":     amount,
	}, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Borrow failed: %v\n", err)
		os.Exit(1)
	}
	loanID := loanIDFromResult(result)
	if err := store.SetStatus(note.ID, notes.StatusLocked, loanID); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: borrow accepted but note update failed: %v\n", err)
	}
	printJSON(result)
}

func repay(noteID, from string) {
	store := openNotes()
	defer store.Close()
	note := mustNote(store, noteID)

	amount := outstandingAmount(note)
	result, err := rpcCall("collateral_repayAndUnlock", map[string]string{
		"from":       from,
		"commitment": note.Commitment,
		"amount":     amount,
	}, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Repay failed: %v\n", err)
		os.Exit(1)
	}
	if err := store.SetStatus(note.ID, notes.StatusDeposited, 0); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: repayment accepted but note update failed: %v\n", err)
	}
	printJSON(result)
}

// outstandingAmount looks up the note's loan so the repay call covers exactly
// the outstanding principal. Partial repayments are rejected by the node.
func outstandingAmount(note *notes.Note) string {
	if note.LoanID == 0 {
		fmt.Fprintln(os.Stderr, "Note has no recorded loan.")
		os.Exit(1)
	}
	result, err := rpcCall("lend_getLoan", map[string]uint64{"loanId": note.LoanID}, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Loan lookup failed: %v\n", err)
		os.Exit(1)
	}
	var loan struct {
		Amount string `json:"amount"`
	}
	if err := json.Unmarshal(result, &loan); err != nil || loan.Amount == "" {
		fmt.Fprintln(os.Stderr, "Loan lookup returned no amount.")
		os.Exit(1)
	}
	return loan.Amount
}

func fund(from, token, amount string) {
	result, err := rpcCall("lend_fund", map[string]string{"from": from, "token": token, "amount": amount}, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fund failed: %v\n", err)
		os.Exit(1)
	}
	printJSON(result)
}

func showLoan(raw string) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid loan id %q\n", raw)
		os.Exit(1)
	}
	result, err := rpcCall("lend_getLoan", map[string]uint64{"loanId": id}, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Loan lookup failed: %v\n", err)
		os.Exit(1)
	}
	printJSON(result)
}

func showReserve(token string) {
	result, err := rpcCall("lend_getReserve", map[string]string{"token": token}, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Reserve lookup failed: %v\n", err)
		os.Exit(1)
	}
	printJSON(result)
}

func showBalance(address, token string) {
	result, err := rpcCall("bank_getBalance", map[string]string{"address": address, "token": token}, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Balance lookup failed: %v\n", err)
		os.Exit(1)
	}
	printJSON(result)
}

func mint(to, token, amount string) {
	result, err := rpcCall("bank_mint", map[string]string{"to": to, "token": token, "amount": amount}, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Mint failed: %v\n", err)
		os.Exit(1)
	}
	printJSON(result)
}

func loanIDFromResult(result json.RawMessage) uint64 {
	var parsed struct {
		Loan struct {
			LoanID uint64 `json:"loanId"`
		} `json:"loan"`
	}
	if err := json.Unmarshal(result, &parsed); err != nil {
		return 0
	}
	return parsed.Loan.LoanID
}

func printJSON(raw json.RawMessage) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		fmt.Println(string(raw))
		return
	}
	fmt.Println(pretty.String())
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func rpcCall(method string, params interface{}, admin bool) (json.RawMessage, error) {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  []interface{}{params},
		ID:      1,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, rpcEndpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if admin {
		if rpcAuthToken == "" {
			return nil, fmt.Errorf("admin call requires MIXLEND_RPC_TOKEN")
		}
		req.Header.Set("Authorization", "Bearer "+rpcAuthToken)
	}
	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("%s (code %d)", rpcResp.Error.Message, rpcResp.Error.Code)
	}
	return rpcResp.Result, nil
}
