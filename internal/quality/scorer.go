// Package quality computes engagement-based quality scores for knowledge
// entries and decides when an entry has earned automatic verification.
package quality

import "math"

const (
	successWeight   = 0.35
	usageWeight     = 0.25
	voteWeight      = 0.20
	verifiedWeight  = 0.15
	freshnessWeight = 0.05

	// Usage saturates around this count so extremely popular entries do not
	// drown out everything else.
	usageSaturation = 1000.0

	// Freshness half-life in days. Decay never reaches zero: an old entry
	// keeps its success/vote/verification components intact.
	freshnessHalfLifeDays = 30.0

	// Neutral vote ratio when an entry has no votes yet.
	neutralVoteRatio = 0.5
)

// Signals holds the engagement inputs to the quality score. Zero values are
// valid: a brand-new entry scores from its success rate and freshness alone.
type Signals struct {
	SuccessRate float64
	UsageCount  int64
	Upvotes     int64
	Downvotes   int64
	Verified    bool
	AgeDays     int
	RecentUsage int64
}

// Thresholds gates automatic verification. All four conditions must hold.
type Thresholds struct {
	MinUsage       int64
	MinSuccessRate float64
	MinNetUpvotes  int64
	MinScore       float64
}

// DefaultThresholds returns the stock auto-verification thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinUsage:       10,
		MinSuccessRate: 0.7,
		MinNetUpvotes:  5,
		MinScore:       0.6,
	}
}

// Score maps engagement signals to a quality score in [0,1].
//
// Components: success rate (0.35), saturating log usage volume (0.25), vote
// ratio with a neutral prior when unvoted (0.20), verification bonus (0.15),
// and a freshness term (0.05) that decays with age but never reaches zero.
// The score is non-decreasing in SuccessRate, UsageCount, Upvotes, and
// Verified, and non-increasing in Downvotes and AgeDays.
func Score(sig Signals) float64 {
	score := successWeight * clamp01(sig.SuccessRate)
	score += usageWeight * usageVolume(sig.UsageCount, sig.RecentUsage)
	score += voteWeight * voteRatio(sig.Upvotes, sig.Downvotes)
	if sig.Verified {
		score += verifiedWeight
	}
	score += freshnessWeight * freshness(sig.AgeDays)
	return clamp01(score)
}

// ShouldAutoVerify reports whether an entry has earned automatic
// verification. Already-verified entries always return false so callers never
// re-verify.
func ShouldAutoVerify(sig Signals, score float64, thr Thresholds) bool {
	if sig.Verified {
		return false
	}
	return sig.UsageCount >= thr.MinUsage &&
		sig.SuccessRate >= thr.MinSuccessRate &&
		sig.Upvotes-sig.Downvotes >= thr.MinNetUpvotes &&
		score >= thr.MinScore
}

// usageVolume applies a log transform so usage has diminishing returns.
// Recent usage counts double to favour entries that are active now.
func usageVolume(usage, recent int64) float64 {
	if usage < 0 {
		usage = 0
	}
	if recent < 0 {
		recent = 0
	}
	effective := float64(usage) + 2*float64(recent)
	v := math.Log1p(effective) / math.Log1p(usageSaturation)
	if v > 1 {
		return 1
	}
	return v
}

func voteRatio(upvotes, downvotes int64) float64 {
	if upvotes < 0 {
		upvotes = 0
	}
	if downvotes < 0 {
		downvotes = 0
	}
	total := upvotes + downvotes
	if total == 0 {
		return neutralVoteRatio
	}
	return float64(upvotes) / float64(total)
}

func freshness(ageDays int) float64 {
	if ageDays < 0 {
		ageDays = 0
	}
	return freshnessHalfLifeDays / (freshnessHalfLifeDays + float64(ageDays))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
