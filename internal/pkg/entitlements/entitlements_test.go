package entitlements

import "testing"

func TestNormalizeTier(t *testing.T) {
	tests := []struct {
		in   string
		want Tier
	}{
		{in: "free", want: TierFree},
		{in: "starter", want: TierStarter},
		{in: "pro", want: TierPro},
		{in: "business", want: TierBusiness},
		{in: "BUSINESS", want: TierBusiness},
		{in: " pro ", want: TierPro},
		{in: "invalid", want: TierFree},
		{in: "", want: TierFree},
	}

	for _, tt := range tests {
		if got := NormalizeTier(tt.in); got != tt.want {
			t.Fatalf("NormalizeTier(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTierOrdering(t *testing.T) {
	order := []Tier{TierFree, TierStarter, TierPro, TierBusiness}
	for i := 1; i < len(order); i++ {
		if TierLevel(order[i-1]) >= TierLevel(order[i]) {
			t.Fatalf("expected %s to outrank %s", order[i], order[i-1])
		}
	}
}

func TestIsStageAllowed(t *testing.T) {
	tests := []struct {
		tier  Tier
		stage string
		want  bool
	}{
		{TierFree, StageCompress, true},
		{TierFree, StageConvert, true},
		{TierFree, StageResize, true},
		{TierFree, StageRemoveBg, false},
		{TierFree, StageWatermark, false},
		{TierStarter, StageRemoveBg, false},
		{TierPro, StageRemoveBg, true},
		{TierPro, StageWatermark, true},
		{TierPro, StageAPIAccess, false},
		{TierBusiness, StageAPIAccess, true},
		{TierBusiness, StageBatch, true},
		{TierBusiness, "no_such_stage", false},
	}

	for _, tt := range tests {
		if got := IsStageAllowed(tt.tier, tt.stage); got != tt.want {
			t.Fatalf("IsStageAllowed(%s, %s) = %v, want %v", tt.tier, tt.stage, got, tt.want)
		}
	}
}

func TestCapQuality(t *testing.T) {
	tests := []struct {
		tier      Tier
		requested int
		want      int
	}{
		{TierFree, 60, 60},
		{TierFree, 95, 80},
		{TierFree, 0, 80},
		{TierStarter, 95, 90},
		{TierPro, 100, 100},
		{TierBusiness, 120, 100},
	}

	for _, tt := range tests {
		if got := CapQuality(tt.tier, tt.requested); got != tt.want {
			t.Fatalf("CapQuality(%s, %d) = %d, want %d", tt.tier, tt.requested, got, tt.want)
		}
	}
}

func TestCapFileSize(t *testing.T) {
	if !CapFileSize(TierFree, 5<<20) {
		t.Fatal("expected free tier to accept a 5 MiB file")
	}
	if CapFileSize(TierFree, 5<<20+1) {
		t.Fatal("expected free tier to reject a file over 5 MiB")
	}
	if !CapFileSize(TierBusiness, 200<<20) {
		t.Fatal("expected business tier to accept a 200 MiB file")
	}
}
