package discovery

// Target refers to a singular discovered endpoint found by a discovery
// component.
type Target map[string]string

// Clone returns a copy of t.
func (t Target) Clone() Target {
	res := make(Target, len(t))
	for k, v := range t {
		res[k] = v
	}
	return res
}
