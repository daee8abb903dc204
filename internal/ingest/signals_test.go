package ingest

import (
	"testing"
	"time"

	"SolGate/internal/domain/models"
)

func testExtractor() *Extractor {
	return NewExtractor(ExtractorConfig{
		LargeAmount:   10000,
		StrengthScale: 100000,
		HighFee:       100000,
		MintSeenTTL:   time.Hour,
	})
}

func transferEvent(amount float64, mint, from, to string) *models.WebhookEvent {
	return &models.WebhookEvent{
		Transaction: models.TransactionInfo{Signature: "sig1", Fee: 5000},
		TokenTransfers: []models.TokenTransfer{
			{FromUserAccount: from, ToUserAccount: to, TokenAmount: amount, Mint: mint},
		},
	}
}

func TestRelevantRequiresTransfersOrWatchedProgram(t *testing.T) {
	e := testExtractor()

	if e.Relevant(&models.WebhookEvent{}) {
		t.Fatal("empty event should be irrelevant")
	}

	if !e.Relevant(transferEvent(1, "MintA", "a", "b")) {
		t.Fatal("token transfer should be relevant")
	}

	withNative := &models.WebhookEvent{
		NativeTransfers: []models.NativeTransfer{{FromUserAccount: "a", ToUserAccount: "b", Amount: 1}},
	}
	if !e.Relevant(withNative) {
		t.Fatal("native transfer should be relevant")
	}

	withProgram := &models.WebhookEvent{
		Instructions: []models.Instruction{{ProgramID: pumpFunProgramID}},
	}
	if !e.Relevant(withProgram) {
		t.Fatal("watched program invocation should be relevant")
	}

	otherProgram := &models.WebhookEvent{
		Instructions: []models.Instruction{{ProgramID: "SomeOtherProgram1111111111111111111111111111"}},
	}
	if e.Relevant(otherProgram) {
		t.Fatal("unwatched program alone should be irrelevant")
	}
}

func TestLargeVolumeSignal(t *testing.T) {
	e := testExtractor()

	signals, _ := e.Extract(transferEvent(50000, "", "walletA", "walletB"), "helius", nil)
	if len(signals) != 1 {
		t.Fatalf("signals = %d, want 1", len(signals))
	}
	s := signals[0]
	if s.Type != models.SignalLargeVolumeTransfer {
		t.Fatalf("type = %s", s.Type)
	}
	if s.Strength != 0.5 {
		t.Fatalf("strength = %v, want 0.5", s.Strength)
	}
	if s.Confidence != 0.8 {
		t.Fatalf("confidence = %v, want 0.8", s.Confidence)
	}
	if s.Source != "helius" {
		t.Fatalf("source = %s", s.Source)
	}
	if s.Metadata["amount"] != 50000.0 {
		t.Fatalf("metadata amount = %v", s.Metadata["amount"])
	}
}

func TestLargeVolumeStrengthCapped(t *testing.T) {
	e := testExtractor()

	signals, _ := e.Extract(transferEvent(5_000_000, "", "a", "b"), "helius", nil)
	if len(signals) != 1 {
		t.Fatalf("signals = %d, want 1", len(signals))
	}
	if signals[0].Strength != 1.0 {
		t.Fatalf("strength = %v, want capped at 1.0", signals[0].Strength)
	}
}

func TestSmallTransferEmitsNothing(t *testing.T) {
	e := testExtractor()

	signals, risks := e.Extract(transferEvent(100, "", "a", "b"), "helius", nil)
	if len(signals) != 0 || len(risks) != 0 {
		t.Fatalf("signals=%d risks=%d, want 0/0", len(signals), len(risks))
	}
}

func TestNewTokenOnFirstSightingOnly(t *testing.T) {
	e := testExtractor()
	mintTypes := []string{"TOKEN_MINT"}

	signals, _ := e.Extract(transferEvent(100, "MintNew", "a", "b"), "helius", mintTypes)
	if len(signals) != 1 || signals[0].Type != models.SignalNewToken {
		t.Fatalf("expected one new_token signal, got %+v", signals)
	}
	if signals[0].Strength != 0.5 || signals[0].Confidence != 0.6 {
		t.Fatalf("strength/confidence = %v/%v", signals[0].Strength, signals[0].Confidence)
	}

	signals, _ = e.Extract(transferEvent(100, "MintNew", "a", "b"), "helius", mintTypes)
	if len(signals) != 0 {
		t.Fatalf("second sighting emitted %d signals, want 0", len(signals))
	}
}

func TestNewTokenRequiresMintTransactionType(t *testing.T) {
	e := testExtractor()

	// First sighting of an old token in an ordinary transfer delivery must
	// not look like a launch.
	signals, _ := e.Extract(transferEvent(100, "MintOld", "a", "b"), "helius", []string{"TRANSFER"})
	if len(signals) != 0 {
		t.Fatalf("transfer delivery emitted %d signals, want 0", len(signals))
	}

	// The mint stays unseen, so a real mint delivery still fires.
	signals, _ = e.Extract(transferEvent(100, "MintOld", "a", "b"), "helius", []string{"token_mint"})
	if len(signals) != 1 || signals[0].Type != models.SignalNewToken {
		t.Fatalf("mint delivery signals = %+v, want one new_token", signals)
	}
}

func TestSelfTransferRisk(t *testing.T) {
	e := testExtractor()

	_, risks := e.Extract(transferEvent(100, "", "sameWallet", "sameWallet"), "helius", nil)
	if len(risks) != 1 {
		t.Fatalf("risks = %d, want 1", len(risks))
	}
	if risks[0].Type != models.RiskSelfTransfer {
		t.Fatalf("risk type = %s", risks[0].Type)
	}
	if risks[0].Severity != 0.7 {
		t.Fatalf("severity = %v, want 0.7", risks[0].Severity)
	}
}

func TestHighFeeRisk(t *testing.T) {
	e := testExtractor()

	ev := transferEvent(100, "", "a", "b")
	ev.Transaction.Fee = 500000

	_, risks := e.Extract(ev, "helius", nil)
	if len(risks) != 1 {
		t.Fatalf("risks = %d, want 1", len(risks))
	}
	if risks[0].Type != models.RiskHighFee {
		t.Fatalf("risk type = %s", risks[0].Type)
	}
	if risks[0].Severity != 0.4 {
		t.Fatalf("severity = %v, want 0.4", risks[0].Severity)
	}
}
