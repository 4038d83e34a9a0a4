// Path: internal/service/rules.go
package service

// Trigger is a user action the controller reacts to.
type Trigger string

const (
	TriggerMount      Trigger = "mount"
	TriggerRefresh    Trigger = "refresh"
	TriggerKeyword    Trigger = "keyword"
	TriggerPageSize   Trigger = "page_size"
	TriggerSort       Trigger = "sort"
	TriggerDateRange  Trigger = "date_range"
	TriggerExactMatch Trigger = "exact_match"
	TriggerNext       Trigger = "next"
	TriggerPrev       Trigger = "prev"
)

// effect says what a trigger does to the cursor history and whether it fetches.
type effect struct {
	resetHistory bool
	fetch        bool
}

// rules is the single place that decides which inputs invalidate cursors.
// Anything that changes the filtered or sorted scan resets history; moving
// between pages never does.
var rules = map[Trigger]effect{
	TriggerMount:      {resetHistory: false, fetch: true},
	TriggerRefresh:    {resetHistory: false, fetch: true},
	TriggerKeyword:    {resetHistory: true, fetch: true},
	TriggerPageSize:   {resetHistory: true, fetch: true},
	TriggerSort:       {resetHistory: true, fetch: true},
	TriggerDateRange:  {resetHistory: true, fetch: true},
	TriggerExactMatch: {resetHistory: true, fetch: true},
	TriggerNext:       {resetHistory: false, fetch: true},
	TriggerPrev:       {resetHistory: false, fetch: true},
}

// ruleFor returns the effect of t. Unknown triggers do nothing.
func ruleFor(t Trigger) effect {
	return rules[t]
}
