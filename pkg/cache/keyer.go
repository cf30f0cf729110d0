package cache

// Keyer builds cache keys.
type Keyer interface {
	// LayoutKey returns the key for a solver result. requestHash identifies
	// the solver input (boxes, edges, containers); opts carries the settings
	// that change the result for the same input.
	LayoutKey(requestHash string, opts LayoutKeyOpts) string
}

// LayoutKeyOpts are the solver settings that take part in a layout key.
type LayoutKeyOpts struct {
	Solver    string `json:"solver"`
	Mode      string `json:"mode"`
	Direction string `json:"direction"`
}

// DefaultKeyer produces keys of the form
// "layout:<mode>:<direction>:<sha256>".
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// LayoutKey implements Keyer.
func (DefaultKeyer) LayoutKey(requestHash string, opts LayoutKeyOpts) string {
	return layoutKey(requestHash, opts)
}

var _ Keyer = DefaultKeyer{}
