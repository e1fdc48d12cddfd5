package http11

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// readChunk is the receive size per poll iteration.
const readChunk = 1024

var crlf = []byte("\r\n")

// Response is a fully decoded HTTP/1.1 response. Headers holds every
// line before the blank header/body separator in wire order, status
// line first. Body is complete: it is never returned until all bytes
// the framing describes have been received.
type Response struct {
	Headers []string
	Body    []byte
}

// StatusCode extracts the numeric code from the status line, or 0 when
// it cannot be parsed. The probe decision does not depend on it; it
// exists for logging.
func (r *Response) StatusCode() int {
	if len(r.Headers) == 0 {
		return 0
	}
	fields := strings.Fields(r.Headers[0])
	if len(fields) < 2 {
		return 0
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0
	}
	return code
}

// ReadResponse reads one response off the connection: the header block
// first, then the body per Content-Length or chunked framing. Each
// underlying receive is bounded by the IO's timeout.
func ReadResponse(bio *IO) (*Response, error) {
	headers, rest, err := readHeaders(bio)
	if err != nil {
		return nil, err
	}
	body, err := readBody(bio, headers, rest)
	if err != nil {
		return nil, err
	}
	return &Response{Headers: headers, Body: body}, nil
}

// readHeaders accumulates receives until the blank line ending the
// header block. It returns the header lines and the unconsumed buffer
// tail, which may already hold the start of the body.
func readHeaders(bio *IO) ([]string, []byte, error) {
	var (
		headers []string
		buf     []byte
		chunk   [readChunk]byte
	)
	for {
		for {
			i := bytes.Index(buf, crlf)
			if i < 0 {
				break
			}
			line := string(buf[:i])
			buf = buf[i+2:]
			if line == "" {
				return headers, buf, nil
			}
			headers = append(headers, line)
		}
		n, err := bio.Recv(chunk[:])
		if err != nil {
			return nil, nil, err
		}
		buf = append(buf, chunk[:n]...)
	}
}

// readBody dispatches on the framing headers. Chunked wins when both
// are present, per RFC 9112 §6.3.
func readBody(bio *IO, headers []string, rest []byte) ([]byte, error) {
	if isChunked(headers) {
		return readChunked(bio, rest)
	}
	if n, ok := contentLength(headers); ok && n > 0 {
		return readFixed(bio, rest, n)
	}
	return nil, ErrMissingLength
}

// isChunked reports whether a Transfer-Encoding header names chunked.
// Header names are matched case-insensitively.
func isChunked(headers []string) bool {
	for _, h := range headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(name), "Transfer-Encoding") &&
			strings.Contains(strings.ToLower(value), "chunked") {
			return true
		}
	}
	return false
}

// contentLength returns the declared body length, if any header carries
// a parsable one.
func contentLength(headers []string) (int, bool) {
	for _, h := range headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			continue
		}
		return n, true
	}
	return 0, false
}

// readChunked decodes a chunked body. Two phases alternate per chunk:
// awaiting a hex size line, then awaiting size+2 bytes (data plus its
// CRLF). Leftover buffered bytes are always processed before issuing
// another receive. A zero-size chunk completes the body; trailing bytes
// after it (trailers) are ignored.
func readChunked(bio *IO, buf []byte) ([]byte, error) {
	var (
		body  []byte
		chunk [readChunk]byte
	)
	size := -1 // -1 = awaiting a chunk-size line
	for {
		if size < 0 {
			if i := bytes.Index(buf, crlf); i >= 0 {
				n, err := parseChunkSize(buf[:i])
				if err != nil {
					return nil, err
				}
				buf = buf[i+2:]
				if n == 0 {
					return body, nil
				}
				size = n
				continue
			}
		} else if len(buf) >= size+2 {
			body = append(body, buf[:size]...)
			buf = buf[size+2:]
			size = -1
			continue
		}
		n, err := bio.Recv(chunk[:])
		if err != nil {
			return nil, err
		}
		buf = append(buf, chunk[:n]...)
	}
}

// parseChunkSize interprets a size line as bare hex. Chunk extensions
// are not supported and fail the decode.
func parseChunkSize(line []byte) (int, error) {
	s := strings.TrimSpace(string(line))
	if s == "" {
		return 0, ErrMalformedChunk
	}
	v, err := strconv.ParseUint(s, 16, 31)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedChunk, s)
	}
	return int(v), nil
}

// readFixed accumulates receives until want bytes are buffered, then
// returns exactly the first want bytes. Anything beyond is left unread;
// the connection is discarded after one probe.
func readFixed(bio *IO, buf []byte, want int) ([]byte, error) {
	var chunk [readChunk]byte
	for len(buf) < want {
		n, err := bio.Recv(chunk[:])
		if err != nil {
			return nil, err
		}
		buf = append(buf, chunk[:n]...)
	}
	return buf[:want:want], nil
}
