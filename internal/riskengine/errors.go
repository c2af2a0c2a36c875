package riskengine

import "errors"

var (
	errThresholdRange = errors.New("riskengine: threshold value outside [0.1, 1.0]")
	errThresholdOrder = errors.New("riskengine: thresholds must satisfy low < medium < high < critical")
)
