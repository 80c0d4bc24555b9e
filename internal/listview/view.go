package listview

import "sync"

// State is the lifecycle state of a View.
type State string

const (
	StateLoading State = "loading"
	StateReady   State = "ready"
)

// Gate exposes the viewer capability that decides which affordances render.
type Gate interface {
	IsAdmin() bool
}

// AdminFlag is a Gate backed by a plain admin bit.
type AdminFlag bool

func (a AdminFlag) IsAdmin() bool { return bool(a) }

// Affordances lists the mutating actions offered to the viewer.
type Affordances struct {
	Create bool `json:"create"`
	Delete bool `json:"delete"`
}

// AffordancesFor returns the actions g may see. This gates presentation only;
// mutations are authorised again where they are handled.
func AffordancesFor(g Gate) Affordances {
	admin := g != nil && g.IsAdmin()
	return Affordances{Create: admin, Delete: admin}
}

// Snapshot is a rendered View.
type Snapshot[T any] struct {
	Resource    string      `json:"resource"`
	State       State       `json:"state"`
	Criteria    Criteria    `json:"criteria"`
	Columns     []Column    `json:"columns,omitempty"`
	Items       []T         `json:"items"`
	Page        int         `json:"page"`
	TotalPages  int         `json:"totalPages"`
	Total       int         `json:"total"`
	Empty       bool        `json:"empty"`
	Affordances Affordances `json:"affordances"`
}

// View composes a live collection with Filter and Paginate.
// It stays loading until the first Push.
type View[T any] struct {
	mu       sync.Mutex
	desc     Descriptor[T]
	gate     Gate
	state    State
	items    []T
	criteria Criteria
	page     int
}

// NewView returns a loading view for desc rendered for gate.
func NewView[T any](desc Descriptor[T], gate Gate) *View[T] {
	return &View[T]{desc: desc, gate: gate, state: StateLoading, page: 1}
}

// Push replaces the collection with the latest delivery of the live source.
// The slice is kept as delivered; the view never re-sorts it.
func (v *View[T]) Push(items []T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.items = items
	v.state = StateReady
}

// SetCriteria changes the filter. The current page is kept and clamped on render.
func (v *View[T]) SetCriteria(c Criteria) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.criteria = c
}

// SetPage changes the requested page.
func (v *View[T]) SetPage(page int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.page = page
}

// SetGate changes whose affordances the view renders.
func (v *View[T]) SetGate(g Gate) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.gate = g
}

// State returns the current lifecycle state.
func (v *View[T]) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Render filters and paginates the current collection. A page that no longer
// exists is reset to 1 and that reset is remembered.
func (v *View[T]) Render() Snapshot[T] {
	v.mu.Lock()
	defer v.mu.Unlock()

	snap := Snapshot[T]{
		Resource:    v.desc.Name,
		State:       v.state,
		Criteria:    v.criteria,
		Columns:     v.desc.Columns,
		Items:       []T{},
		Page:        1,
		TotalPages:  1,
		Affordances: AffordancesFor(v.gate),
	}
	if v.state == StateLoading {
		return snap
	}

	p := Paginate(Filter(v.desc, v.items, v.criteria), v.desc.PageSize, v.page)
	v.page = p.Page

	snap.Items = p.Items
	snap.Page = p.Page
	snap.TotalPages = p.TotalPages
	snap.Total = p.Total
	snap.Empty = p.Total == 0
	return snap
}
