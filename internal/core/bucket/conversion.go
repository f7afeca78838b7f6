package bucket

// ConversionSet is the set of event names that count as conversions and carry
// revenue. Configurable per deployment; the historical fixed list is the
// default.
type ConversionSet map[string]struct{}

// DefaultConversionSet returns the stock conversion events.
func DefaultConversionSet() ConversionSet {
	return NewConversionSet("purchase", "signup", "conversion")
}

// NewConversionSet builds a set from event names, ignoring empties.
func NewConversionSet(names ...string) ConversionSet {
	s := make(ConversionSet, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		s[name] = struct{}{}
	}
	return s
}

// Contains reports whether name is a conversion event.
func (s ConversionSet) Contains(name string) bool {
	_, ok := s[name]
	return ok
}
