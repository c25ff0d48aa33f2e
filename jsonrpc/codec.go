package jsonrpc

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// DefaultMaxMessageSize bounds a single inbound record.
const DefaultMaxMessageSize = 1024 * 1024 // 1MB

// ErrMessageTooLarge reports a record longer than the decoder's limit.
var ErrMessageTooLarge = errors.New("jsonrpc: message exceeds size limit")

// DecodeError reports an inbound record that is not a valid message. The
// decoder has already consumed the record and can keep reading.
type DecodeError struct {
	Line []byte
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("jsonrpc: decode message: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Encode serializes a message as one JSON value followed by a newline.
// JSON string escaping guarantees the payload itself holds no raw newline.
func Encode(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Decoder splits a byte stream into newline-terminated records and decodes
// each as a Message. Partial records are held until their newline arrives.
type Decoder struct {
	reader  *bufio.Reader
	maxSize int
}

// NewDecoder creates a decoder. maxSize <= 0 disables the size limit.
func NewDecoder(r io.Reader, maxSize int) *Decoder {
	return &Decoder{
		reader:  bufio.NewReader(r),
		maxSize: maxSize,
	}
}

// Next returns the next message. Blank lines are skipped. It returns a
// *DecodeError for a malformed record, io.EOF when the stream ends, and the
// read error otherwise. An unterminated record at end of stream is dropped.
func (d *Decoder) Next() (*Message, error) {
	for {
		line, err := d.readLine()
		if err != nil {
			return nil, err
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		msg, err := parseMessage(line)
		if err != nil {
			return nil, &DecodeError{Line: line, Err: err}
		}
		return msg, nil
	}
}

// readLine returns one record without its terminator.
func (d *Decoder) readLine() ([]byte, error) {
	var line []byte
	overflow := false

	for {
		chunk, err := d.reader.ReadSlice('\n')
		content := len(chunk)
		if err == nil {
			content--
		}
		if !overflow {
			if d.maxSize > 0 && len(line)+content > d.maxSize {
				overflow = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}

		switch {
		case err == nil:
			if overflow {
				return nil, &DecodeError{Err: ErrMessageTooLarge}
			}
			return line[:len(line)-1], nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		default:
			return nil, err
		}
	}
}

// envelope is the union of every field either message kind may carry.
type envelope struct {
	ID     json.RawMessage `json:"id"`
	Method *string         `json:"method"`
	Params json.RawMessage `json:"params"`
	Result json.RawMessage `json:"result"`
	Error  *Error          `json:"error"`
}

func parseMessage(data []byte) (*Message, error) {
	if data[0] != '{' {
		return nil, errors.New("message must be a JSON object")
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}

	var id int64
	if len(env.ID) == 0 || bytes.Equal(env.ID, []byte("null")) {
		return nil, errors.New("message has no id")
	}
	if err := json.Unmarshal(env.ID, &id); err != nil {
		return nil, fmt.Errorf("id must be an integer: %w", err)
	}

	if env.Method != nil {
		return &Message{Request: &Request{
			ID:     id,
			Method: *env.Method,
			Params: env.Params,
		}}, nil
	}

	resp := &Response{ID: id, Error: env.Error}
	if env.Error == nil {
		resp.Result = env.Result
		if resp.Result == nil {
			resp.Result = json.RawMessage("null")
		}
	}
	return &Message{Response: resp}, nil
}
