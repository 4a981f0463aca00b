package consensus

import "testing"

func TestActivationMonotonic(t *testing.T) {
	predicates := []struct {
		name   string
		active func(uint64) bool
		height uint64
	}{
		{"overwinter", IsOverwinterActive, OVERWINTER_ACTIVATION_HEIGHT},
		{"sapling", IsSaplingActive, SAPLING_ACTIVATION_HEIGHT},
		{"blossom", IsBlossomActive, BLOSSOM_ACTIVATION_HEIGHT},
		{"heartwood", IsHeartwoodActive, HEARTWOOD_ACTIVATION_HEIGHT},
		{"canopy", IsCanopyActive, CANOPY_ACTIVATION_HEIGHT},
		{"nu5", IsNU5Active, NU5_ACTIVATION_HEIGHT},
	}
	for _, p := range predicates {
		if p.active(p.height - 1) {
			t.Fatalf("%s active one block early", p.name)
		}
		if !p.active(p.height) {
			t.Fatalf("%s inactive at activation height", p.name)
		}
		if !p.active(p.height + 1_000_000) {
			t.Fatalf("%s deactivated after activation", p.name)
		}
	}
}

func TestActivationOrdering(t *testing.T) {
	heights := []uint64{
		OVERWINTER_ACTIVATION_HEIGHT,
		SAPLING_ACTIVATION_HEIGHT,
		BLOSSOM_ACTIVATION_HEIGHT,
		HEARTWOOD_ACTIVATION_HEIGHT,
		CANOPY_ACTIVATION_HEIGHT,
		NU5_ACTIVATION_HEIGHT,
	}
	for i := 1; i < len(heights); i++ {
		if heights[i] <= heights[i-1] {
			t.Fatalf("activation heights not increasing at %d: %d <= %d", i, heights[i], heights[i-1])
		}
	}
}

func TestPowTargetSpacing(t *testing.T) {
	if got := PowTargetSpacing(0); got != PRE_BLOSSOM_POW_TARGET_SPACING {
		t.Fatalf("spacing at 0 = %d", got)
	}
	if got := PowTargetSpacing(BLOSSOM_ACTIVATION_HEIGHT - 1); got != PRE_BLOSSOM_POW_TARGET_SPACING {
		t.Fatalf("spacing before blossom = %d", got)
	}
	if got := PowTargetSpacing(BLOSSOM_ACTIVATION_HEIGHT); got != POST_BLOSSOM_POW_TARGET_SPACING {
		t.Fatalf("spacing at blossom = %d", got)
	}
}
