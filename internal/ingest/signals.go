package ingest

import (
	"fmt"
	"math"
	"strings"
	"time"

	"SolGate/internal/domain/models"
	svccache "SolGate/internal/service/cache"
)

const pumpFunProgramID = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"

// ExtractorConfig tunes the deterministic signal rules.
type ExtractorConfig struct {
	LargeAmount   float64 // token amount above which a transfer is "large"
	StrengthScale float64 // amount that maps to strength 1.0
	HighFee       uint64  // lamports
	MintSeenTTL   time.Duration
}

// Extractor turns webhook events into trading signals and risk indicators.
// Rules are pure given the seen-mint set; no network calls.
type Extractor struct {
	cfg       ExtractorConfig
	seenMints *svccache.TTLCache
	now       func() time.Time
}

func NewExtractor(cfg ExtractorConfig) *Extractor {
	return &Extractor{
		cfg:       cfg,
		seenMints: svccache.NewTTLCache(),
		now:       time.Now,
	}
}

// Relevant reports whether the event is worth processing at all. Events with
// no transfers and no watched program invocations are skipped.
func (e *Extractor) Relevant(ev *models.WebhookEvent) bool {
	if len(ev.TokenTransfers) > 0 || len(ev.NativeTransfers) > 0 {
		return true
	}
	for _, ins := range ev.Instructions {
		if ins.ProgramID == pumpFunProgramID {
			return true
		}
	}
	return false
}

// Extract applies the signal rules to one event. txTypes is the delivery
// envelope's transaction type list; the new-token rule only fires when it
// names a token mint.
func (e *Extractor) Extract(ev *models.WebhookEvent, source string, txTypes []string) ([]*models.TradingSignal, []models.RiskIndicator) {
	var signals []*models.TradingSignal
	var risks []models.RiskIndicator
	now := e.now().UTC()
	minting := hasMintType(txTypes)

	for _, tt := range ev.TokenTransfers {
		if tt.TokenAmount > e.cfg.LargeAmount {
			signals = append(signals, &models.TradingSignal{
				Type:       models.SignalLargeVolumeTransfer,
				Strength:   math.Min(tt.TokenAmount/e.cfg.StrengthScale, 1.0),
				Confidence: 0.8,
				Mint:       tt.Mint,
				Signature:  ev.Transaction.Signature,
				Source:     source,
				Timestamp:  now,
				Metadata: map[string]interface{}{
					"amount": tt.TokenAmount,
					"from":   tt.FromUserAccount,
					"to":     tt.ToUserAccount,
				},
			})
		}

		if minting && tt.Mint != "" && e.firstSighting(tt.Mint) {
			signals = append(signals, &models.TradingSignal{
				Type:       models.SignalNewToken,
				Strength:   0.5,
				Confidence: 0.6,
				Mint:       tt.Mint,
				Signature:  ev.Transaction.Signature,
				Source:     source,
				Timestamp:  now,
			})
		}

		if tt.FromUserAccount != "" && tt.FromUserAccount == tt.ToUserAccount {
			risks = append(risks, models.RiskIndicator{
				Type:        models.RiskSelfTransfer,
				Severity:    0.7,
				Description: fmt.Sprintf("self transfer of %.2f on mint %s", tt.TokenAmount, tt.Mint),
			})
		}
	}

	if ev.Transaction.Fee > e.cfg.HighFee {
		risks = append(risks, models.RiskIndicator{
			Type:        models.RiskHighFee,
			Severity:    0.4,
			Description: fmt.Sprintf("fee %d lamports on %s", ev.Transaction.Fee, ev.Transaction.Signature),
		})
	}

	return signals, risks
}

// hasMintType reports whether the delivery carries a token-mint transaction
// type. Helius sends TOKEN_MINT in upper case.
func hasMintType(txTypes []string) bool {
	for _, t := range txTypes {
		if strings.EqualFold(t, "token_mint") {
			return true
		}
	}
	return false
}

// firstSighting marks the mint as seen and reports whether this was the
// first time within the TTL window.
func (e *Extractor) firstSighting(mint string) bool {
	if _, ok := e.seenMints.Get(mint); ok {
		return false
	}
	e.seenMints.Set(mint, struct{}{}, e.cfg.MintSeenTTL)
	return true
}
