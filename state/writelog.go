package state

// writeOp is a single staged mutation. A nil-value op with delete set
// shadows any older value for the key.
type writeOp struct {
	value  []byte
	delete bool
}

// WriteLog is an insertion-ordered overlay of storage mutations that
// can be merged into a parent log or discarded as a unit. Replay order
// is the order writes were made, so independent nodes applying the
// same block converge on the same tree.
type WriteLog struct {
	order   []string
	entries map[string]writeOp
}

func NewWriteLog() *WriteLog {
	return &WriteLog{
		entries: make(map[string]writeOp),
	}
}

func (w *WriteLog) put(key string, op writeOp) {
	if _, ok := w.entries[key]; !ok {
		w.order = append(w.order, key)
	}
	w.entries[key] = op
}

func (w *WriteLog) Set(key string, value []byte) {
	w.put(key, writeOp{value: value})
}

func (w *WriteLog) Delete(key string) {
	w.put(key, writeOp{delete: true})
}

// Get reports the staged value for key. found is false when the log
// holds no op for the key; deleted reports a staged delete.
func (w *WriteLog) Get(key string) (value []byte, found bool, deleted bool) {
	op, ok := w.entries[key]
	if !ok {
		return nil, false, false
	}
	if op.delete {
		return nil, true, true
	}
	return op.value, true, false
}

func (w *WriteLog) Len() int {
	return len(w.order)
}

// Merge replays child into w in child's insertion order.
func (w *WriteLog) Merge(child *WriteLog) {
	for _, key := range child.order {
		w.put(key, child.entries[key])
	}
}

// Each visits staged ops in insertion order.
func (w *WriteLog) Each(fn func(key string, value []byte, deleted bool) error) error {
	for _, key := range w.order {
		op := w.entries[key]
		if err := fn(key, op.value, op.delete); err != nil {
			return err
		}
	}
	return nil
}

func (w *WriteLog) Clone() *WriteLog {
	n := &WriteLog{
		order:   make([]string, len(w.order)),
		entries: make(map[string]writeOp, len(w.entries)),
	}
	copy(n.order, w.order)
	for k, v := range w.entries {
		n.entries[k] = v
	}
	return n
}
