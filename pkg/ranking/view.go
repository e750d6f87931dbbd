package ranking

// ViewOptions controls how the assignment is projected for rendering.
type ViewOptions struct {
	// StrictLock disables pills for ranks already held by another
	// provider. The default (false) keeps every pill clickable and
	// marks taken ranks with advisory styling only.
	StrictLock bool
}

// Pill is one rank control on a provider card.
type Pill struct {
	Rank     int
	Active   bool // this provider holds the rank
	Taken    bool // another provider holds the rank
	Disabled bool // only under StrictLock
}

// ProviderView is the rendered state of one provider card.
type ProviderView struct {
	Provider string
	Rank     int // Unranked if none
	Pills    []Pill
}

// View is a pure projection of the assignment: everything the ranking
// fragment needs, derived idempotently from current state.
type View struct {
	Providers     []ProviderView
	ChosenCount   int
	Progress      string
	SubmitEnabled bool
}

// View projects the assignment for rendering. The projection is a
// single consistent snapshot even when picks land concurrently.
func (a *Assignment) View(opts ViewOptions) View {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := len(a.providers)
	v := View{
		Providers:     make([]ProviderView, 0, n),
		ChosenCount:   len(a.ranks),
		Progress:      a.progressLocked(),
		SubmitEnabled: a.completeLocked(),
	}

	holder := make(map[int]string, n)
	for p, r := range a.ranks {
		holder[r] = p
	}

	for _, p := range a.providers {
		pv := ProviderView{
			Provider: p,
			Rank:     a.ranks[p],
			Pills:    make([]Pill, 0, n),
		}
		for r := 1; r <= n; r++ {
			pill := Pill{Rank: r}
			switch holder[r] {
			case "":
			case p:
				pill.Active = true
			default:
				pill.Taken = true
				pill.Disabled = opts.StrictLock
			}
			pv.Pills = append(pv.Pills, pill)
		}
		v.Providers = append(v.Providers, pv)
	}
	return v
}
