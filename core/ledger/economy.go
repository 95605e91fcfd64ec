package ledger

import "coordinator-core/core"

// ComputeIntentFee implements §4.F's fee math: feeSats = floor(amount *
// bps / 10000); net = amount - fee. Zero amount yields zero fee/net; a bps
// of 10000 consumes the whole amount.
func ComputeIntentFee(amountSats, bps int64) (feeSats, netSats int64) {
	feeSats = (amountSats * bps) / 10000
	netSats = amountSats - feeSats
	return
}

// CreditTxPayload is the ledger payload for an earn/spend/held/release
// credit transaction.
type CreditTxPayload struct {
	AccountID string `json:"accountId"`
	AmountSats int64 `json:"amountSats"`
	RefTxID   string `json:"refTxId,omitempty"`
}

// BalanceFold replays an account's ledger entries into its derived balance:
// balance = Σearn + Σrelease - Σspend - Σheld, per §4.F/§8.
func BalanceFold(entries []core.LedgerEntry, accountID string) int64 {
	var balance int64
	for _, e := range entries {
		payload, ok := decodeCreditPayload(e.Payload)
		if !ok || payload.AccountID != accountID {
			continue
		}
		switch e.Type {
		case core.PayloadCreditEarn, core.PayloadCreditRelease:
			balance += payload.AmountSats
		case core.PayloadCreditSpend, core.PayloadCreditHeld:
			balance -= payload.AmountSats
		}
	}
	return balance
}

func decodeCreditPayload(raw any) (CreditTxPayload, bool) {
	switch v := raw.(type) {
	case CreditTxPayload:
		return v, true
	case map[string]any:
		accountID, _ := v["accountId"].(string)
		amount, ok := v["amountSats"].(float64)
		if !ok {
			return CreditTxPayload{}, false
		}
		refTxID, _ := v["refTxId"].(string)
		return CreditTxPayload{AccountID: accountID, AmountSats: int64(amount), RefTxID: refTxID}, true
	default:
		return CreditTxPayload{}, false
	}
}

// WalletLinkCompensation computes the compensating earn/spend pair emitted
// when an ide-enabled agent links a wallet after accruing a held balance:
// earn(held-released) + spend(held-consumed:txId), per §4.F.
func WalletLinkCompensation(accountID string, heldAmount int64, refTxID string) (earn, spend CreditTxPayload) {
	earn = CreditTxPayload{AccountID: accountID, AmountSats: heldAmount, RefTxID: "held-released"}
	spend = CreditTxPayload{AccountID: accountID, AmountSats: heldAmount, RefTxID: "held-consumed:" + refTxID}
	return
}
