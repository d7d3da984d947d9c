package billing

// Transaction is a read-only earnings ledger row. The backend owns the
// ledger; the console only displays it.
type Transaction struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"` // payout | commission | refund
	Amount      float64 `json:"amount"`
	Date        string  `json:"date"`
	Description string  `json:"description,omitempty"`
	Status      string  `json:"status,omitempty"`
}

// Summary aggregates the ledger for the analytics panel.
type Summary struct {
	TotalEarned float64 `json:"totalEarned"`
	TotalFees   float64 `json:"totalFees"`
	Count       int     `json:"count"`
}

// Summarize folds a ledger into totals. Refunds and commissions count
// against earnings.
func Summarize(rows []Transaction) Summary {
	var s Summary
	for _, tx := range rows {
		s.Count++
		switch tx.Type {
		case "commission", "refund":
			s.TotalFees += tx.Amount
		default:
			s.TotalEarned += tx.Amount
		}
	}
	return s
}
