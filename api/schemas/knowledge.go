package schemas

// Findings maps an intent to the strategies proposed for it, as produced by
// bulk discovery or reconciliation.
type Findings map[string][]string

// Count returns the total number of strategies across all intents.
func (f Findings) Count() int {
	n := 0
	for _, strategies := range f {
		n += len(strategies)
	}
	return n
}

// AddResult is the outcome of committing one strategy to the knowledge store.
type AddResult int

const (
	// AddFailed means durable storage could not be written; nothing changed.
	AddFailed AddResult = iota
	// Added means the strategy was appended to the intent's candidate list.
	Added
	// AlreadyPresent means the strategy was already a candidate; nothing changed.
	AlreadyPresent
)

func (r AddResult) String() string {
	switch r {
	case Added:
		return "added"
	case AlreadyPresent:
		return "already_present"
	default:
		return "failed"
	}
}

// ElementHandle identifies an element located on the current page.
type ElementHandle struct {
	// Strategy is the locator that matched.
	Strategy string `json:"strategy"`
	// Origin is the hostname of the page the element was found on.
	Origin string `json:"origin"`
}
