package points

// BalanceChanged is published after an earn or redeem transaction lands.
// Amount carries the transaction's sign.
type BalanceChanged struct {
	UserID      string `json:"user_id"`
	Amount      int    `json:"amount"`
	Balance     int    `json:"balance"`
	Description string `json:"description,omitempty"`
}
