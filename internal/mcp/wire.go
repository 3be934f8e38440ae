package mcp

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
)

// wireMode is the framing of one message. Clients either send LSP style
// Content-Length frames or one JSON document per line; replies mirror the
// request's framing.
type wireMode int

const (
	wireModeFramed wireMode = iota
	wireModeJSONLine
)

const contentLengthHeader = "content-length:"

// conn reads requests from and writes replies to a stdio pair.
type conn struct {
	r *bufio.Reader
	w *bufio.Writer
}

func newConn(in io.Reader, out io.Writer) *conn {
	return &conn{r: bufio.NewReader(in), w: bufio.NewWriter(out)}
}

func (c *conn) read() ([]byte, wireMode, error) {
	return readMessage(c.r)
}

func (c *conn) write(msg response, mode wireMode) error {
	return writeMessage(c.w, msg, mode)
}

func (c *conn) flush() error {
	return c.w.Flush()
}

func readMessage(r *bufio.Reader) ([]byte, wireMode, error) {
	mode, err := detectWireMode(r)
	if err != nil {
		return nil, wireModeFramed, err
	}
	if mode == wireModeJSONLine {
		payload, err := readJSONLine(r)
		return payload, wireModeJSONLine, err
	}
	payload, err := readFramedMessage(r)
	return payload, wireModeFramed, err
}

// detectWireMode skips leading whitespace and looks for a header.
func detectWireMode(r *bufio.Reader) (wireMode, error) {
	for {
		b, err := r.Peek(1)
		if err != nil {
			return wireModeFramed, err
		}
		if !unicode.IsSpace(rune(b[0])) {
			break
		}
		if _, err := r.ReadByte(); err != nil {
			return wireModeFramed, err
		}
	}
	peek, err := r.Peek(len(contentLengthHeader))
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return wireModeFramed, err
	}
	if strings.HasPrefix(strings.ToLower(string(peek)), contentLengthHeader) {
		return wireModeFramed, nil
	}
	return wireModeJSONLine, nil
}

func readJSONLine(r *bufio.Reader) ([]byte, error) {
	for {
		line, err := r.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			return line, nil
		}
		if err != nil {
			return nil, io.EOF
		}
	}
}

func readFramedMessage(r *bufio.Reader) ([]byte, error) {
	length := -1
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(name), "content-length") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("invalid Content-Length: %w", err)
		}
		length = n
	}
	if length <= 0 {
		return nil, errors.New("missing or invalid Content-Length")
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeMessage(w *bufio.Writer, msg response, mode wireMode) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if mode == wireModeJSONLine {
		payload = append(payload, '\n')
	} else if _, err := fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(payload)); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	return w.Flush()
}
