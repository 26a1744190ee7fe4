package entitlements

import (
	"errors"
	"strings"
)

// Tier is an ordered subscription level gating feature access and quality
// ceilings: free < starter < pro < business.
type Tier string

const (
	TierFree     Tier = "free"
	TierStarter  Tier = "starter"
	TierPro      Tier = "pro"
	TierBusiness Tier = "business"
)

// Stage names as requested by callers.
const (
	StageCompress  = "compress"
	StageConvert   = "convert"
	StageResize    = "resize"
	StageCrop      = "crop"
	StageUpscale   = "upscale"
	StageRemoveBg  = "remove_bg"
	StageWatermark = "watermark"
	StageAPIAccess = "api_access"
	StageBatch     = "batch_processing"
)

// ErrDenied is returned when a tier does not reach a stage's minimum tier.
// A denied stage never reaches the credit ledger or the transform engine.
var ErrDenied = errors.New("entitlement denied")

// Limits holds the per-tier ceilings consulted before a job is accepted.
type Limits struct {
	MaxQuality  int
	MaxFileSize int64
}

var tierLimits = map[Tier]Limits{
	TierFree:     {MaxQuality: 80, MaxFileSize: 5 << 20},
	TierStarter:  {MaxQuality: 90, MaxFileSize: 15 << 20},
	TierPro:      {MaxQuality: 100, MaxFileSize: 50 << 20},
	TierBusiness: {MaxQuality: 100, MaxFileSize: 200 << 20},
}

// stageMinTier maps each pipeline stage to the lowest tier allowed to use it.
var stageMinTier = map[string]Tier{
	StageCompress:  TierFree,
	StageConvert:   TierFree,
	StageResize:    TierFree,
	StageCrop:      TierFree,
	StageUpscale:   TierFree,
	StageRemoveBg:  TierPro,
	StageWatermark: TierPro,
	StageAPIAccess: TierBusiness,
	StageBatch:     TierBusiness,
}

func NormalizeTier(tier string) Tier {
	switch strings.ToLower(strings.TrimSpace(tier)) {
	case string(TierStarter):
		return TierStarter
	case string(TierPro):
		return TierPro
	case string(TierBusiness):
		return TierBusiness
	default:
		return TierFree
	}
}

// TierLevel returns the position of a tier in the fixed ordering.
func TierLevel(tier Tier) int {
	switch tier {
	case TierBusiness:
		return 3
	case TierPro:
		return 2
	case TierStarter:
		return 1
	default:
		return 0
	}
}

// IsTierAtLeast reports whether tier reaches required in the fixed ordering.
func IsTierAtLeast(tier, required Tier) bool {
	return TierLevel(tier) >= TierLevel(required)
}

// IsStageAllowed reports whether the tier may use the named pipeline stage.
// Unknown stages are denied.
func IsStageAllowed(tier Tier, stage string) bool {
	min, ok := stageMinTier[strings.ToLower(strings.TrimSpace(stage))]
	if !ok {
		return false
	}
	return IsTierAtLeast(tier, min)
}

// StageMinTier returns the minimum tier required for a stage, TierBusiness
// for unknown stages.
func StageMinTier(stage string) Tier {
	if min, ok := stageMinTier[strings.ToLower(strings.TrimSpace(stage))]; ok {
		return min
	}
	return TierBusiness
}

// CapQuality clamps the requested encode quality to the tier's ceiling.
// Non-positive requests fall back to the ceiling itself.
func CapQuality(tier Tier, requested int) int {
	max := tierLimits[NormalizeTier(string(tier))].MaxQuality
	if requested <= 0 || requested > max {
		return max
	}
	return requested
}

// CapFileSize reports whether an input of byteSize is accepted for the tier.
func CapFileSize(tier Tier, byteSize int64) bool {
	return byteSize <= tierLimits[NormalizeTier(string(tier))].MaxFileSize
}

// LimitsFor returns the tier's ceilings.
func LimitsFor(tier Tier) Limits {
	return tierLimits[NormalizeTier(string(tier))]
}
