package appendvec

// Records returns a lazy iterator over the records of av, starting at
// offset zero. The iterator is finite and non-restartable: it ends at
// the first offset where no record decodes.
func Records(av *AppendVec) *RecordIterator {
	return &RecordIterator{av: av}
}

// RecordIterator walks a segment's records in storage order.
type RecordIterator struct {
	av     *AppendVec
	offset uint64
	done   bool
}

// Next returns a handle to the next record. ok is false once the
// iterator is exhausted.
func (it *RecordIterator) Next() (Handle, bool) {
	if it.done {
		return Handle{}, false
	}
	_, next, ok := it.av.GetAccount(it.offset)
	if !ok {
		it.done = true
		return Handle{}, false
	}
	h := Handle{av: it.av, offset: it.offset}
	it.offset = next
	return h, true
}

// Handle identifies one record by its segment and offset. Access
// re-decodes the record on every call instead of caching a copy,
// trading a redundant bounds check for not duplicating reference data.
type Handle struct {
	av     *AppendVec
	offset uint64
}

// Offset returns the record's offset inside the segment.
func (h Handle) Offset() uint64 { return h.offset }

// Access decodes the record. ok is false only if the segment contents
// are no longer decodable at this offset, which cannot happen for a
// handle produced by a RecordIterator over an unchanged segment.
func (h Handle) Access() (StoredAccount, bool) {
	sa, _, ok := h.av.GetAccount(h.offset)
	return sa, ok
}
