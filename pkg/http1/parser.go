package http1

import (
	"bytes"
	"strings"

	"github.com/brickingsoft/errors"
)

var (
	ErrMalformed = errors.Define("http1: malformed request")
	ErrTooLarge  = errors.Define("http1: request head too large")
)

// maxHeadBytes bounds how much a peer can feed without ever completing a
// request head.
const maxHeadBytes = 64 << 10

var crlfcrlf = []byte("\r\n\r\n")

// Parser accumulates received bytes and pops complete request heads. It is
// a pure function over bytes: feed it the borrowed receive buffer, then
// return the buffer — the parser keeps its own copy of any incomplete tail.
type Parser struct {
	buf []byte
}

func NewParser() *Parser {
	return &Parser{}
}

// Feed appends received bytes to the accumulation buffer.
func (p *Parser) Feed(b []byte) {
	p.buf = append(p.buf, b...)
}

// Next pops the next complete request head, or (nil, nil) when more bytes
// are needed. Pipelined requests are popped one per call.
func (p *Parser) Next() (*Request, error) {
	end := bytes.Index(p.buf, crlfcrlf)
	if end < 0 {
		if len(p.buf) > maxHeadBytes {
			return nil, ErrTooLarge
		}
		return nil, nil
	}
	head := p.buf[:end]
	p.buf = p.buf[end+len(crlfcrlf):]
	return parseHead(head)
}

func parseHead(head []byte) (*Request, error) {
	lines := strings.Split(string(head), "\r\n")
	method, url, version, lineErr := parseRequestLine(lines[0])
	if lineErr != nil {
		return nil, lineErr
	}
	req := &Request{Method: method, URL: url, Version: version}
	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			return nil, ErrMalformed
		}
		name := strings.TrimSpace(line[:colon])
		value := strings.TrimSpace(line[colon+1:])
		if name == "" {
			return nil, ErrMalformed
		}
		req.Headers = append(req.Headers, Header{Name: name, Value: value})
	}
	return req, nil
}

func parseRequestLine(line string) (method string, url string, version string, err error) {
	first := strings.IndexByte(line, ' ')
	if first <= 0 {
		err = ErrMalformed
		return
	}
	last := strings.LastIndexByte(line, ' ')
	if last == first {
		err = ErrMalformed
		return
	}
	method = line[:first]
	url = strings.TrimSpace(line[first+1 : last])
	version = line[last+1:]
	if url == "" || !strings.HasPrefix(version, "HTTP/") {
		err = ErrMalformed
		return
	}
	return
}
