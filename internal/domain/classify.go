package domain

import "math"

// The curated reference table marks unknown thresholds with out-of-range
// sentinels (888/999 style). Anything at or above sentinelFloor, or not a
// positive level, is treated as "threshold unknown".
const sentinelFloor = 888

// IsSentinelLevel reports whether a threshold value is a reserved "unknown"
// placeholder rather than a real curated level.
func IsSentinelLevel(v float64) bool {
	return v <= 0 || v >= sentinelFloor || math.IsNaN(v)
}

// effectiveThreshold substitutes sentinel thresholds with a value no real
// reading can reach, so an unknown threshold can never classify as danger.
func effectiveThreshold(v float64) float64 {
	if IsSentinelLevel(v) {
		return math.Inf(1)
	}
	return v
}

// Classify maps a water level against warning/alarm (and optional low)
// thresholds. Total over the numeric domain:
//
//	level >= alarm            -> alarm
//	level >= warning          -> warning
//	low > 0 && level <= low   -> low
//	otherwise                 -> normal
//
// When both warning and alarm are sentinels there is nothing to classify
// against and the result is unknown — never a false alarm.
func Classify(level, warningLevel, alarmLevel, lowLevel float64) Status {
	if IsSentinelLevel(warningLevel) && IsSentinelLevel(alarmLevel) {
		return StatusUnknown
	}

	switch {
	case level >= effectiveThreshold(alarmLevel):
		return StatusAlarm
	case level >= effectiveThreshold(warningLevel):
		return StatusWarning
	case !IsSentinelLevel(lowLevel) && level <= lowLevel:
		return StatusLow
	default:
		return StatusNormal
	}
}

// ClassifyAgainst classifies a level against a resolved threshold record.
// A nil record (cascade miss) yields unknown.
func ClassifyAgainst(level float64, rec *ThresholdRecord) Status {
	if rec == nil {
		return StatusUnknown
	}
	return Classify(level, rec.WarningLevel, rec.AlarmLevel, rec.LowLevel)
}
