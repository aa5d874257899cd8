// ABOUTME: Reconciliation engine for roster contacts against FSI patrons
// ABOUTME: Normalizes and classifies every contact into create and update lists
package sync

import "github.com/harperreed/patronsync/models"

// Plan is the result of one reconciliation pass. Creates and Updates are
// disjoint and keep the order contacts arrived in.
type Plan struct {
	Creates   []models.ContactRecord
	Updates   []models.ContactRecord
	Skipped   []Decision
	Unchanged int
	// Gaps counts staff contacts with no staff reference entry.
	Gaps int
}

// Total returns the number of patrons the plan will write.
func (p *Plan) Total() int {
	return len(p.Creates) + len(p.Updates)
}

// Reconcile classifies each raw contact against the same patron snapshot.
func Reconcile(raws []models.RawContact, patrons []models.PatronRecord, domain string) *Plan {
	plan := &Plan{}
	for _, raw := range raws {
		if StaffNumberMissing(raw) {
			plan.Gaps++
		}
		d := Classify(Normalize(raw), patrons, domain)
		switch d.Action {
		case ActionCreate:
			plan.Creates = append(plan.Creates, d.Contact)
		case ActionUpdate:
			plan.Updates = append(plan.Updates, d.Contact)
		case ActionNoChange:
			plan.Unchanged++
		case ActionSkip:
			plan.Skipped = append(plan.Skipped, d)
		}
	}
	return plan
}

// SkipCounts tallies skipped contacts by reason.
func (p *Plan) SkipCounts() map[SkipReason]int {
	counts := make(map[SkipReason]int)
	for _, d := range p.Skipped {
		counts[d.Reason]++
	}
	return counts
}
