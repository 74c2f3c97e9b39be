package bind_group_provider

import "github.com/Carmen-Shannon/oxy-rt/engine/renderer"

// BufferWrite describes a single GPU buffer write operation at a given byte offset.
type BufferWrite struct {
	Buffer renderer.Buffer
	Offset uint64
	Data   []byte
}

// WriteBuffers schedules every write on r in order. Writes without a buffer or data are skipped.
//
// Parameters:
//   - r: the renderer owning the queue
//   - writes: the writes to schedule
func WriteBuffers(r renderer.Renderer, writes ...BufferWrite) {
	for _, w := range writes {
		if w.Buffer == nil || len(w.Data) == 0 {
			continue
		}
		r.WriteBuffer(w.Buffer, w.Offset, w.Data)
	}
}
