package tools

// Surface is the set of tools one run may use. Anything outside it is never
// declared to the model and is refused if requested anyway.
type Surface struct {
	delegated []ID
	local     []Definition
	allowed   map[ID]bool
}

// NewSurface builds a surface from allowed ids; unknown ids are ignored.
func NewSurface(allowed []ID) Surface {
	s := Surface{allowed: make(map[ID]bool, len(allowed))}
	delegated, local := Categorize(allowed)
	for _, id := range delegated {
		if !s.allowed[id] {
			s.allowed[id] = true
			s.delegated = append(s.delegated, id)
		}
	}
	for _, id := range local {
		if !s.allowed[id] {
			s.allowed[id] = true
			def, _ := Lookup(id)
			s.local = append(s.local, def)
		}
	}
	return s
}

func (s Surface) Allows(id ID) bool {
	return s.allowed[id]
}

// Delegated returns the provider-hosted tools enabled for the run.
func (s Surface) Delegated() []ID {
	return append([]ID(nil), s.delegated...)
}

// Local returns definitions of tools the run executes in-process.
func (s Surface) Local() []Definition {
	return append([]Definition(nil), s.local...)
}

func (s Surface) IDs() []ID {
	out := append([]ID(nil), s.delegated...)
	for _, def := range s.local {
		out = append(out, def.ID)
	}
	return out
}
