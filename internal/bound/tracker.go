// Package bound carries the best known cost across solver sessions so each
// new session only reports strictly better theories.
package bound

// #region tracker

// Tracker holds the exclusive bound passed to the next solver session.
// It starts unset and is never reset automatically: a cheaper theory found in
// a small frame stays a valid bound for every larger frame.
type Tracker struct {
	value int
	set   bool
}

// Current returns the bound and whether one has been recorded.
func (t *Tracker) Current() (int, bool) {
	return t.value, t.set
}

// Record sets the bound to cost-1. Sessions only ever report strictly
// improving costs, so no comparison with the previous bound is made.
func (t *Tracker) Record(cost int) {
	t.value = cost - 1
	t.set = true
}

// Ptr returns the bound as a pointer, nil when unset.
func (t *Tracker) Ptr() *int {
	if !t.set {
		return nil
	}
	v := t.value
	return &v
}

// #endregion tracker
