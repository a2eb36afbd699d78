package payment

import (
	"context"
	"math/rand"
	"sync"
	"time"

	dompay "github.com/Zhima-Mochi/minishop-orders/internal/domain/payment"
	"github.com/shopspring/decimal"
)

// DefaultSuccessRate is the share of payment sets RandomAuthorizer approves.
const DefaultSuccessRate = 0.8

// RandomAuthorizer approves a payment set with a fixed probability. It stands in
// for a real payment processor.
type RandomAuthorizer struct {
	mu          sync.Mutex
	random      *rand.Rand
	successRate float64
}

// NewRandomAuthorizer clamps rate into [0,1].
func NewRandomAuthorizer(rate float64) *RandomAuthorizer {
	return NewSeededRandomAuthorizer(rate, time.Now().UnixNano())
}

func NewSeededRandomAuthorizer(rate float64, seed int64) *RandomAuthorizer {
	switch {
	case rate < 0:
		rate = 0
	case rate > 1:
		rate = 1
	}
	return &RandomAuthorizer{
		random:      rand.New(rand.NewSource(seed)),
		successRate: rate,
	}
}

func (a *RandomAuthorizer) Authorize(_ context.Context, _ string, _ decimal.Decimal, _ []dompay.Entry) dompay.Decision {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.random.Float64() < a.successRate {
		return dompay.DecisionAuthorized
	}
	return dompay.DecisionDeclined
}

func (a *RandomAuthorizer) SuccessRate() float64 { return a.successRate }

// FixedAuthorizer always returns the same decision.
type FixedAuthorizer dompay.Decision

func (f FixedAuthorizer) Authorize(context.Context, string, decimal.Decimal, []dompay.Entry) dompay.Decision {
	if dompay.Decision(f) == dompay.DecisionAuthorized {
		return dompay.DecisionAuthorized
	}
	return dompay.DecisionDeclined
}
