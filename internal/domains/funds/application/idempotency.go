package application

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/Apurer/fund-ledger/internal/domains/funds/application/types"
)

type normalizedDeposit struct {
	Fund           string `json:"fund"`
	Depositor      string `json:"depositor"`
	Recipient      string `json:"recipient"`
	Asset          string `json:"asset"`
	Amount         string `json:"amount"`
	CustomCooldown bool   `json:"customCooldown"`
}

// FingerprintDeposit builds a deterministic hash of a deposit request, excluding the idempotency key.
func FingerprintDeposit(input types.DepositInput, customCooldown bool) (string, error) {
	payload, err := json.Marshal(normalizedDeposit{
		Fund:           input.Fund.String(),
		Depositor:      input.Depositor.String(),
		Recipient:      input.Recipient.String(),
		Asset:          input.Asset.String(),
		Amount:         input.Amount.String(),
		CustomCooldown: customCooldown,
	})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
