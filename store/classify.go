package store

import "github.com/use-agent/rankwatch/models"

// Classify maps a (prior, current) position pair to an alert. Change is
// prior minus current, so positive means the domain moved up. The rules are
// evaluated in order and the first that applies wins; magnitude beats any
// boundary crossing.
func Classify(prev, curr *int) (models.AlertType, int, bool) {
	switch {
	case prev == nil && curr == nil:
		return "", 0, false
	case prev == nil:
		return models.AlertNewEntry, -*curr, true
	case curr == nil:
		return models.AlertDroppedOut, *prev, true
	}

	o, n := *prev, *curr
	change := o - n
	switch {
	case change >= 5 || change <= -5:
		return models.AlertMajorMovement, change, true
	case o <= 10 && n > 10:
		return models.AlertExitedTop10, change, true
	case o > 10 && n <= 10:
		return models.AlertEnteredTop10, change, true
	case o <= 3 && n > 3:
		return models.AlertExitedTop3, change, true
	case o > 3 && n <= 3:
		return models.AlertEnteredTop3, change, true
	}
	return "", change, false
}
