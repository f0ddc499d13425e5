package market

import "testing"

func TestStubQuoteWalksDeterministically(t *testing.T) {
	a := NewStub([]string{"SOLUSDC"}, 7)
	b := NewStub([]string{"SOLUSDC"}, 7)

	for i := 0; i < 50; i++ {
		qa, _ := a.Quote("SOLUSDC")
		qb, _ := b.Quote("SOLUSDC")
		if qa.Price != qb.Price {
			t.Fatalf("step %d: same seed produced different prices: %v vs %v", i, qa.Price, qb.Price)
		}
		if qa.Price <= 0 {
			t.Fatalf("price must stay positive, got %v", qa.Price)
		}
	}
}

func TestStubPoolQuotesSpreadAroundPrice(t *testing.T) {
	s := NewStub([]string{"SOLUSDC"}, 1)
	q, _ := s.Quote("SOLUSDC")
	pools := s.PoolQuotes("SOLUSDC")
	if len(pools) == 0 {
		t.Fatalf("expected pool quotes")
	}
	for _, p := range pools {
		if p.Price < q.Price*0.95 || p.Price > q.Price*1.05 {
			t.Fatalf("pool %s price %v too far from reference %v", p.Pool, p.Price, q.Price)
		}
		if p.Liquidity <= 0 {
			t.Fatalf("pool liquidity must be positive")
		}
	}
}

func TestStubRiskyPositionsShape(t *testing.T) {
	s := NewStub(nil, 3)
	seen := false
	for i := 0; i < 200 && !seen; i++ {
		for _, pos := range s.RiskyPositions() {
			seen = true
			if pos.Debt <= 0 || pos.Collateral <= 0 {
				t.Fatalf("degenerate lending position: %+v", pos)
			}
			if pos.HealthFactor <= 0 {
				t.Fatalf("health factor must be positive: %+v", pos)
			}
		}
	}
	if !seen {
		t.Fatalf("simulation never produced a risky position")
	}
}

func TestStubConditionIsStable(t *testing.T) {
	s := NewStub([]string{"SOLUSDC", "BONKUSDC"}, 11)
	c := s.Condition()
	if c != Bullish && c != Bearish && c != Neutral {
		t.Fatalf("unexpected condition %q", c)
	}
}
