// Seek filters (§4.4.5): a sequence of non-overlapping, ascending
// [startOfFrame, endOfFrame] windows (both bounds inclusive) that a
// union reader restricts its output to.
package snapdb

// SeekFilter produces the windows a UnionReader's output is clipped
// to. Windows must be non-overlapping and produced in ascending order.
type SeekFilter interface {
	reset()
	nextWindow() bool
	startOfFrame() Key
	endOfFrame() Key
}

// WindowSeekFilter is a SeekFilter over a fixed, pre-sorted list of
// [start, end] windows, e.g. the key ranges a higher-level query
// planner has already resolved to specific partitions.
type WindowSeekFilter struct {
	windows []KeyWindow
	pos     int
}

// KeyWindow is one inclusive [Start, End] range.
type KeyWindow struct {
	Start Key
	End   Key
}

// NewWindowSeekFilter returns a SeekFilter over windows, which must
// already be sorted and non-overlapping.
func NewWindowSeekFilter(windows []KeyWindow) *WindowSeekFilter {
	return &WindowSeekFilter{windows: windows, pos: -1}
}

func (f *WindowSeekFilter) reset() { f.pos = -1 }

func (f *WindowSeekFilter) nextWindow() bool {
	if f.pos+1 >= len(f.windows) {
		f.pos = len(f.windows)
		return false
	}
	f.pos++
	return true
}

func (f *WindowSeekFilter) startOfFrame() Key {
	return f.windows[f.pos].Start
}

func (f *WindowSeekFilter) endOfFrame() Key {
	return f.windows[f.pos].End
}

// unboundedSeekFilter is the degenerate single-window filter spanning
// the entire key space, used when a caller wants every record a set of
// scanners can produce with no windowing.
type unboundedSeekFilter struct {
	done bool
	min  Key
	max  Key
}

// newUnboundedSeekFilter builds a single-window filter covering
// [min, max], where min/max are already set to their type's extreme
// values via SetMin/SetMax.
func newUnboundedSeekFilter(min, max Key) *unboundedSeekFilter {
	return &unboundedSeekFilter{min: min, max: max}
}

// NewUnboundedSeekFilter returns a SeekFilter spanning the entire key
// space representable by newKey, for callers that want every record a
// set of scanners can produce with no windowing. newKey must return a
// zero-valued instance of the tree's key type.
func NewUnboundedSeekFilter(newKey func() Key) SeekFilter {
	min, max := newKey(), newKey()
	min.SetMin()
	max.SetMax()
	return newUnboundedSeekFilter(min, max)
}

func (f *unboundedSeekFilter) reset() { f.done = false }

func (f *unboundedSeekFilter) nextWindow() bool {
	if f.done {
		return false
	}
	f.done = true
	return true
}

func (f *unboundedSeekFilter) startOfFrame() Key { return f.min }
func (f *unboundedSeekFilter) endOfFrame() Key   { return f.max }
