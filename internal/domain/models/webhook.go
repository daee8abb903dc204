package models

// WebhookPayload is the inbound event envelope pushed by a provider.
type WebhookPayload struct {
	AccountAddresses []string       `json:"account_addresses"`
	TransactionTypes []string       `json:"transaction_types"`
	Events           []WebhookEvent `json:"events"`
	WebhookType      string         `json:"webhook_type,omitempty"`
	Timestamp        int64          `json:"timestamp,omitempty"`
}

// WebhookEvent is one transaction-scoped record inside a delivery.
type WebhookEvent struct {
	Transaction     TransactionInfo  `json:"transaction"`
	TokenTransfers  []TokenTransfer  `json:"token_transfers,omitempty"`
	NativeTransfers []NativeTransfer `json:"native_transfers,omitempty"`
	AccountData     []AccountDelta   `json:"account_data,omitempty"`
	Instructions    []Instruction    `json:"instructions,omitempty"`
}

// TransactionInfo carries the transaction-level fields of an event.
type TransactionInfo struct {
	Signature       string `json:"signature"`
	Timestamp       int64  `json:"timestamp"`
	Slot            uint64 `json:"slot,omitempty"`
	Fee             uint64 `json:"fee,omitempty"`
	FeePayer        string `json:"fee_payer,omitempty"`
	RecentBlockhash string `json:"recent_blockhash,omitempty"`
}

// TokenTransfer is a single SPL token movement within a transaction.
type TokenTransfer struct {
	FromUserAccount string  `json:"from_user_account"`
	ToUserAccount   string  `json:"to_user_account"`
	TokenAmount     float64 `json:"token_amount"`
	Mint            string  `json:"mint"`
	TokenStandard   string  `json:"token_standard,omitempty"`
}

// NativeTransfer is a SOL movement within a transaction.
type NativeTransfer struct {
	FromUserAccount string `json:"from_user_account"`
	ToUserAccount   string `json:"to_user_account"`
	Amount          uint64 `json:"amount"`
}

// AccountDelta is a per-account balance change record.
type AccountDelta struct {
	Account             string               `json:"account"`
	NativeBalanceChange int64                `json:"native_balance_change,omitempty"`
	TokenBalanceChanges []TokenBalanceChange `json:"token_balance_changes,omitempty"`
}

// TokenBalanceChange is a raw token balance delta on one token account.
type TokenBalanceChange struct {
	Mint           string      `json:"mint"`
	RawTokenAmount TokenAmount `json:"raw_token_amount"`
	TokenAccount   string      `json:"token_account"`
}

// TokenAmount is the raw amount plus its mint decimals.
type TokenAmount struct {
	TokenAmount string `json:"token_amount"`
	Decimals    uint8  `json:"decimals"`
}

// Instruction is a program invocation within a transaction.
type Instruction struct {
	Accounts  []string `json:"accounts,omitempty"`
	Data      string   `json:"data,omitempty"`
	ProgramID string   `json:"program_id"`
}
