// Package isolation runs area workers behind an isolation boundary, either
// on a goroutine with its own oracle handle or as a child process.
package isolation

import (
	"errors"
	"fmt"
	"io"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"accessibility-eta-service/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// MessageWriter writes newline-delimited worker messages.
type MessageWriter struct {
	mu  sync.Mutex
	enc *jsoniter.Encoder
}

func NewMessageWriter(w io.Writer) *MessageWriter {
	return &MessageWriter{enc: json.NewEncoder(w)}
}

func (w *MessageWriter) Write(m domain.WorkerMessage) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(m); err != nil {
		return fmt.Errorf("encode %s message: %w", m.Type, err)
	}
	return nil
}

// MessageReader reads the stream written by a MessageWriter.
type MessageReader struct {
	dec *jsoniter.Decoder
}

func NewMessageReader(r io.Reader) *MessageReader {
	return &MessageReader{dec: json.NewDecoder(r)}
}

// Read returns io.EOF once the stream is exhausted.
func (r *MessageReader) Read() (domain.WorkerMessage, error) {
	var m domain.WorkerMessage
	if err := r.dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return m, io.EOF
		}
		return m, fmt.Errorf("decode worker message: %w", err)
	}
	return m, nil
}

func EncodeJob(w io.Writer, job domain.AreaJob) error {
	if err := json.NewEncoder(w).Encode(job); err != nil {
		return fmt.Errorf("encode area job %q: %w", job.Area.ID, err)
	}
	return nil
}

func DecodeJob(r io.Reader) (domain.AreaJob, error) {
	var job domain.AreaJob
	if err := json.NewDecoder(r).Decode(&job); err != nil {
		return job, fmt.Errorf("decode area job: %w", err)
	}
	return job, nil
}
