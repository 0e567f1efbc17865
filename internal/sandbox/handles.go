package sandbox

import "os"

// firstFD is the first handle number the table allocates; 0, 1, and 2 are
// reserved for stdin/stdout/stderr and never enter the table.
const firstFD = 3

// handleTable is a fixed-capacity array indexed by h-firstFD, with a
// bounded LIFO freelist of previously-used handles. No linked list is
// needed: a bounded stack suffices, per the design note unifying the two
// historical (secure/insecure) handle table implementations into one.
type handleTable struct {
	slots    []*os.File
	freelist []int32 // handle numbers, LIFO
	next     int32   // next unused handle if freelist is empty
}

func newHandleTable(capacity int) *handleTable {
	return &handleTable{
		slots: make([]*os.File, capacity),
		next:  firstFD,
	}
}

// alloc pops the freelist (LIFO) or grows the counter, returning 0 (not a
// valid handle) if the table is at capacity and the freelist is empty.
func (t *handleTable) alloc(f *os.File) int32 {
	if n := len(t.freelist); n > 0 {
		h := t.freelist[n-1]
		t.freelist = t.freelist[:n-1]
		t.slots[h-firstFD] = f
		return h
	}
	if int(t.next-firstFD) >= len(t.slots) {
		return 0
	}
	h := t.next
	t.next++
	t.slots[h-firstFD] = f
	return h
}

// get returns the file for h, or nil if h is not currently allocated.
func (t *handleTable) get(h int32) *os.File {
	idx := h - firstFD
	if idx < 0 || int(idx) >= len(t.slots) {
		return nil
	}
	return t.slots[idx]
}

// free nulls the slot and pushes h onto the freelist. Freeing an
// unallocated or out-of-range handle is a no-op.
func (t *handleTable) free(h int32) {
	idx := h - firstFD
	if idx < 0 || int(idx) >= len(t.slots) || t.slots[idx] == nil {
		return
	}
	t.slots[idx] = nil
	t.freelist = append(t.freelist, h)
}

// openCount reports how many handles are currently allocated, for the
// semihost_open_handles gauge.
func (t *handleTable) openCount() int {
	n := 0
	for _, f := range t.slots {
		if f != nil {
			n++
		}
	}
	return n
}

// fds lists the currently allocated handle numbers, for introspection
// endpoints that need to show what a session has open without exposing
// the underlying *os.File.
func (t *handleTable) fds() []int32 {
	fds := make([]int32, 0, len(t.slots))
	for i, f := range t.slots {
		if f != nil {
			fds = append(fds, int32(i)+firstFD)
		}
	}
	return fds
}

// closeAll closes every open handle, used by do_exit when it actually
// terminates.
func (t *handleTable) closeAll() {
	for i, f := range t.slots {
		if f != nil {
			_ = f.Close()
			t.slots[i] = nil
		}
	}
	t.freelist = t.freelist[:0]
}
