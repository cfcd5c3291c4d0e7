package agent

import (
	"github.com/xkilldash9x/visionfill/api/schemas"
	"github.com/xkilldash9x/visionfill/internal/form"
)

const (
	// loopWindow is the number of recent entries compared for repetition.
	loopWindow = 4
	// failureWindow is the run of failures that triggers an upward scroll.
	failureWindow = 5
	// historyKeep is what survives a loop break.
	historyKeep = 3
)

// DetectLoop reports whether history shows the agent going in circles and,
// if so, which way to scroll to break out. A run of failures points back up
// the page; any other repetition points down.
func DetectLoop(history []schemas.ActionHistoryEntry) (bool, form.Direction) {
	n := len(history)
	if n < loopWindow {
		return false, form.Down
	}

	if n >= failureWindow && noneSucceeded(history[n-failureWindow:]) {
		return true, form.Up
	}

	recent := history[n-loopWindow:]
	first, last := recent[0], recent[len(recent)-1]
	sameTarget, sameKind, allSucceeded := true, true, true
	lastTargetSeen := 0
	for _, e := range recent {
		if e.Target != first.Target {
			sameTarget = false
		}
		if e.Kind != first.Kind {
			sameKind = false
		}
		if !e.Success {
			allSucceeded = false
		}
		if e.Target == last.Target {
			lastTargetSeen++
		}
	}

	switch {
	case sameTarget && !allSucceeded:
		return true, form.Down
	case sameKind && lastTargetSeen >= 3:
		return true, form.Down
	case sameKind && sameTarget:
		return true, form.Down
	}
	return false, form.Down
}

func noneSucceeded(entries []schemas.ActionHistoryEntry) bool {
	for _, e := range entries {
		if e.Success {
			return false
		}
	}
	return true
}

// truncateHistory keeps the newest historyKeep entries once history is
// longer than the comparison window. A window-sized history is left alone
// so a failure run can still reach failureWindow.
func truncateHistory(history []schemas.ActionHistoryEntry) []schemas.ActionHistoryEntry {
	if len(history) <= loopWindow {
		return history
	}
	kept := make([]schemas.ActionHistoryEntry, historyKeep)
	copy(kept, history[len(history)-historyKeep:])
	return kept
}
