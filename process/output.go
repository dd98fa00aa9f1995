package process

import (
	"bytes"
	"sync"

	"github.com/acarl005/stripansi"
	"github.com/ethereum/go-ethereum/log"
)

// DefaultHistoryLines is the number of output lines retained per process.
const DefaultHistoryLines = 4096

// maxLineBytes caps a single line; longer output is split.
const maxLineBytes = 1024 * 1024

type subscriber struct {
	id int
	fn func(line string) bool
}

// output collects the lines a process writes to stdout and stderr, keeps a
// bounded history and fans lines out to subscribers. Subscribers are invoked
// synchronously from the writer, so they must not block.
type output struct {
	name     string
	log      log.Logger
	maxLines int

	mu        sync.Mutex
	history   []string
	discard   bool
	nextSubID int
	subs      []subscriber
}

func newOutput(name string, l log.Logger, maxLines int) *output {
	if maxLines <= 0 {
		maxLines = DefaultHistoryLines
	}
	return &output{name: name, log: l, maxLines: maxLines}
}

// stream returns an io.Writer for one of the process streams.
func (o *output) stream(stderr bool) *lineWriter {
	return &lineWriter{out: o, stderr: stderr}
}

func (o *output) emit(raw string, stderr bool) {
	line := stripansi.Strip(raw)

	o.mu.Lock()
	if o.discard {
		o.mu.Unlock()
		return
	}
	o.history = append(o.history, line)
	if len(o.history) > o.maxLines {
		o.history = o.history[len(o.history)-o.maxLines:]
	}
	subs := make([]subscriber, len(o.subs))
	copy(subs, o.subs)
	o.mu.Unlock()

	if stderr {
		o.log.Warn(line, "process", o.name, "stream", "stderr")
	} else {
		o.log.Info(line, "process", o.name, "stream", "stdout")
	}

	var done []int
	for _, s := range subs {
		if s.fn(line) {
			done = append(done, s.id)
		}
	}
	for _, id := range done {
		o.unsubscribe(id)
	}
}

// subscribe registers fn for every future line and replays the retained
// history to it first, atomically with registration. fn returns true to stop
// receiving lines. The returned function cancels the subscription.
func (o *output) subscribe(fn func(line string) bool) func() {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, line := range o.history {
		if fn(line) {
			return func() {}
		}
	}
	id := o.nextSubID
	o.nextSubID++
	o.subs = append(o.subs, subscriber{id: id, fn: fn})
	return func() { o.unsubscribe(id) }
}

func (o *output) unsubscribe(id int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, s := range o.subs {
		if s.id == id {
			o.subs = append(o.subs[:i], o.subs[i+1:]...)
			return
		}
	}
}

// stop drops all further output and subscribers.
func (o *output) stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.discard = true
	o.subs = nil
}

func (o *output) lines() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	cp := make([]string, len(o.history))
	copy(cp, o.history)
	return cp
}

// lineWriter splits a byte stream into lines for output.
type lineWriter struct {
	out     *output
	stderr  bool
	mu      sync.Mutex
	partial []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	data := p
	for len(data) > 0 {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			w.partial = append(w.partial, data...)
			if len(w.partial) >= maxLineBytes {
				w.flushLocked()
			}
			break
		}
		w.partial = append(w.partial, data[:i]...)
		w.flushLocked()
		data = data[i+1:]
	}
	return len(p), nil
}

// Flush emits a trailing line that had no newline.
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.partial) > 0 {
		w.flushLocked()
	}
}

func (w *lineWriter) flushLocked() {
	line := string(bytes.TrimRight(w.partial, "\r"))
	w.partial = w.partial[:0]
	w.out.emit(line, w.stderr)
}
