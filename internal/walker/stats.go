package walker

// Stats accumulates the outcome of one Walk.
type Stats struct {
	// Modified counts files whose date was written, or would have been in a
	// dry run. Propagated files are included.
	Modified int
	// Directories counts directories stamped with their aggregate.
	Directories int
	Propagated  int
	Examined    int
	Unresolved  int
	Excluded    int
	// Failed counts unreadable paths and failed writes.
	Failed   int
	BySource map[string]int
}

// SourcePropagated is the BySource key for dates copied from a sibling.
const SourcePropagated = "propagated"

// SourceAggregate is the BySource key for directory dates.
const SourceAggregate = "aggregate"

func (s *Stats) countSource(source string) {
	if s.BySource == nil {
		s.BySource = make(map[string]int)
	}
	s.BySource[source]++
}
