package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestHelpersNoopBeforeRegister(t *testing.T) {
	// Must not panic when nothing is registered yet.
	IncDaemonStart()
	IncPinOp("pin", true)
	IncStatsCacheRead(false)
	IncChallenge(true)
	ObserveChallengeDuration(0.1)
	SetEarningsTotal(1.5)
}

func TestRegisterIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second register: %v", err)
	}
	IncChallenge(false)
	IncDaemonStop()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, mf := range mfs {
		if mf.GetName() == "spk_agent_challenge_responses_total" {
			found = true
		}
	}
	if !found {
		t.Fatalf("challenge counter not gathered")
	}
}
