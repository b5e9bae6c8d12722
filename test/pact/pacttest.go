//go:build pact
// +build pact

package pacttest

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

const (
	ProviderName = "fund-ledger-api"
	ConsumerName = "fund-console"

	StateLedgerBaseline = "ledger bootstrapped with USDC"
	StateFundMissing    = "no fund at the missing address"
)

const (
	OwnerAddress   = "0x000000000000000000000000000000000000000a"
	ManagerAddress = "0x0000000000000000000000000000000000000001"
	USDCAddress    = "0x00000000000000000000000000000000000000c1"
	MissingFund    = "0x00000000000000000000000000000000000000ff"

	// AddressPattern matches the lowercase hex addresses the API emits.
	AddressPattern = `^0x[0-9a-f]{40}$`
)

// LedgerConfig is the bootstrap the provider builds its ledger from.
const LedgerConfig = `
governance:
  owner: "` + OwnerAddress + `"
assets:
  - address: "` + USDCAddress + `"
    symbol: USDC
    decimals: 6
    feed: {kind: peg}
`

// PactDir returns the workspace-level directory for generated pact files.
func PactDir(t testing.TB) string {
	t.Helper()
	dir := filepath.Join(projectRoot(t), "pacts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("create pact dir: %v", err)
	}
	return dir
}

// PactFile returns the canonical pact file path for the fund console consumer.
func PactFile(t testing.TB) string {
	t.Helper()
	return filepath.Join(PactDir(t), ConsumerName+"-"+ProviderName+".json")
}

// LogDir returns the log output directory for pact-go.
func LogDir(t testing.TB) string {
	t.Helper()
	dir := filepath.Join(projectRoot(t), "bin", "pact-logs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("create pact log dir: %v", err)
	}
	return dir
}

// ExampleCreateFundPayload provides stable test data for fund creation.
func ExampleCreateFundPayload() map[string]any {
	return map[string]any{
		"manager": ManagerAddress,
		"name":    "Pact Growth Fund",
		"symbol":  "PGF",
		"assets": []map[string]any{
			{"asset": USDCAddress, "isDeposit": true},
		},
		"fees": map[string]any{"performance": 1000, "management": 100, "entry": 0},
	}
}

// projectRoot walks up from this file to the workspace root.
func projectRoot(t testing.TB) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot determine caller for pact paths")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))
}
