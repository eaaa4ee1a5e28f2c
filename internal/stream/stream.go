// Package stream reassembles an assistant reply from a chunked, event-framed
// response body. Lines are either bare JSON objects or SSE-style
// "data: <json>" frames; the two may be mixed within one stream.
package stream

import (
	"encoding/json"
	"io"
	"strings"
)

// FallbackReply is substituted when a stream completes without ever carrying
// a content delta.
const FallbackReply = "Mi dispiace, non ho ricevuto una risposta valida."

// Event is one recognized frame. A content delta has Type "item" and
// HasContent set; an end-of-stream marker has Type "end" and may carry a
// suggested conversation title. Anything else is delivered as-is and ignored
// by the assembler.
type Event struct {
	Type       string
	Content    string
	HasContent bool
	Title      string
}

type wireEvent struct {
	Type    string  `json:"type"`
	Content *string `json:"content"`
	Title   string  `json:"title"`
}

// Decoder is a pull iterator over the framed events of a response body. It
// reads the body incrementally, retaining the trailing incomplete line
// between reads, and silently skips frames that fail to parse as JSON.
type Decoder struct {
	r      io.Reader
	chunk  []byte
	buffer string
	lines  []string
	eof    bool
	err    error
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r, chunk: make([]byte, 4096)}
}

// Next returns the next parseable event. It reports false when the
// underlying stream has completed; check Err afterwards for transport
// failures.
func (d *Decoder) Next() (Event, bool) {
	for {
		for len(d.lines) > 0 {
			line := d.lines[0]
			d.lines = d.lines[1:]
			if ev, ok := parseLine(line); ok {
				return ev, true
			}
		}
		if d.eof {
			return Event{}, false
		}
		d.fill()
	}
}

// Err reports the transport error that ended the stream, if any. EOF is a
// normal completion, not an error.
func (d *Decoder) Err() error { return d.err }

// fill reads one chunk and splits the buffer into complete lines, keeping the
// last, possibly-incomplete fragment for the next read.
func (d *Decoder) fill() {
	n, err := d.r.Read(d.chunk)
	if n > 0 {
		d.buffer += string(d.chunk[:n])
		for {
			i := strings.IndexByte(d.buffer, '\n')
			if i < 0 {
				break
			}
			d.lines = append(d.lines, strings.TrimSuffix(d.buffer[:i], "\r"))
			d.buffer = d.buffer[i+1:]
		}
	}
	if err != nil {
		d.eof = true
		if err != io.EOF {
			d.err = err
		}
	}
}

// parseLine extracts the event payload from one complete line. A "data:"
// prefix is stripped along with exactly one following space; otherwise a
// non-empty trimmed line is the payload itself.
func parseLine(line string) (Event, bool) {
	payload := strings.TrimSpace(line)
	if strings.HasPrefix(payload, "data:") {
		payload = strings.TrimPrefix(payload, "data:")
		payload = strings.TrimPrefix(payload, " ")
	}
	if payload == "" {
		return Event{}, false
	}

	var we wireEvent
	if err := json.Unmarshal([]byte(payload), &we); err != nil {
		// One bad frame must not abort the stream.
		return Event{}, false
	}
	ev := Event{Type: we.Type, Title: we.Title}
	if we.Content != nil {
		ev.Content = *we.Content
		ev.HasContent = true
	}
	return ev, true
}

// Result is the finalized reply: the accumulated text and the optional title
// captured from the end-of-stream event.
type Result struct {
	Text  string
	Title string
}

// Assemble drains the stream, invoking onUpdate with the full accumulated
// text after every content delta (the caller always sees cumulative text,
// never fragments). onUpdate may be nil. If the stream completes without any
// content, the fallback reply is substituted.
func Assemble(r io.Reader, onUpdate func(string)) (Result, error) {
	d := NewDecoder(r)
	var res Result
	var acc strings.Builder

	for {
		ev, ok := d.Next()
		if !ok {
			break
		}
		switch ev.Type {
		case "item":
			if !ev.HasContent {
				continue
			}
			acc.WriteString(ev.Content)
			if onUpdate != nil {
				onUpdate(acc.String())
			}
		case "end":
			if ev.Title != "" {
				res.Title = ev.Title
			}
		}
	}
	if err := d.Err(); err != nil {
		return Result{}, err
	}

	res.Text = acc.String()
	if res.Text == "" {
		res.Text = FallbackReply
	}
	return res, nil
}
