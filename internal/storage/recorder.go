package storage

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/san-kum/ufosim/internal/ufo"
)

const recordingFile = "flight.msgpack.zst"

// Recording is a sampled flight.
type Recording struct {
	RunID  string      `msgpack:"run_id"`
	Dt     float64     `msgpack:"dt"`
	Stride int         `msgpack:"stride"`
	States []ufo.State `msgpack:"states"`
}

// Recorder keeps every stride-th state it observes, plus the latest one.
// Observe is meant to be registered as a state observer and may be called
// from any goroutine.
type Recorder struct {
	stride int

	mu     sync.Mutex
	seen   int
	states []ufo.State
	last   ufo.State
}

func NewRecorder(stride int) *Recorder {
	if stride < 1 {
		stride = 1
	}
	return &Recorder{stride: stride}
}

func (r *Recorder) Observe(s ufo.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen%r.stride == 0 {
		r.states = append(r.states, s)
	}
	r.seen++
	r.last = s
}

// States returns the sampled states, ending with the latest one observed.
func (r *Recorder) States() []ufo.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ufo.State, len(r.states), len(r.states)+1)
	copy(out, r.states)
	if r.seen > 0 && (r.seen-1)%r.stride != 0 {
		out = append(out, r.last)
	}
	return out
}

func (r *Recorder) Stride() int { return r.stride }

// Encode writes rec to w as zstd-compressed msgpack.
func Encode(w io.Writer, rec *Recording) error {
	zw, err := zstd.NewWriter(w, zstd.WithEncoderConcurrency(1))
	if err != nil {
		return err
	}
	if err := msgpack.NewEncoder(zw).Encode(rec); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

func Decode(r io.Reader) (*Recording, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var rec Recording
	if err := msgpack.NewDecoder(zr).Decode(&rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// SaveRecording writes rec next to the files of its run.
func (s *Store) SaveRecording(rec *Recording) error {
	dir := s.RunDir(rec.RunID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(dir, recordingFile))
	if err != nil {
		return err
	}
	if err := Encode(f, rec); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (s *Store) LoadRecording(id string) (*Recording, error) {
	f, err := os.Open(filepath.Join(s.RunDir(id), recordingFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}
