// Package appdata interprets a reconstructed transcript as HTTP application data.
//
// Decoding never fails. Each block of disclosed bytes goes through a fallback chain:
//
//  1. bytes that are not UTF-8 become {"raw": "<hex>"}
//  2. text without a blank line becomes {"text": "..."}
//  3. otherwise the head is parsed as an HTTP response and the body is decoded
//  4. a JSON body is returned as the JSON value itself
//  5. any other body becomes {"text": "..."}
//
// A transcript with redacted gaps is decoded one disclosed segment at a time and
// returned as {"segments": [...]}, so a gap is never read as data.
package appdata

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/anchorageoss/tlsn-verifier/transcript"
)

// Kind describes how a block was decoded
type Kind string

const (
	KindJSON     Kind = "json"
	KindText     Kind = "text"
	KindRaw      Kind = "raw"
	KindSegments Kind = "segments"
)

var headerSeparator = []byte("\r\n\r\n")

// Response is the parsed head of an HTTP response
type Response struct {
	Proto      string
	StatusCode int
	Status     string
	Header     http.Header
	Chunked    bool
}

// Data is the decoded application data of one transcript direction
type Data struct {
	Kind     Kind
	Value    any
	Response *Response
	// Body is the decoded body; BodyOffset is its position in the transcript,
	// or -1 when the body was transformed (de-chunked) and has no direct mapping.
	Body       []byte
	BodyOffset int
}

// Decode decodes a partial transcript. It returns nil when nothing is disclosed.
func Decode(p *transcript.Partial) *Data {
	if p == nil || p.DisclosedCount() == 0 {
		return nil
	}

	if full, ok := p.Bytes(); ok {
		return DecodeBlock(full)
	}

	segments := p.Segments()
	values := make([]map[string]any, 0, len(segments))
	for _, s := range segments {
		d := DecodeBlock(s.Data)
		values = append(values, map[string]any{
			"start": s.Start,
			"end":   s.End,
			"data":  d.Value,
		})
	}
	return &Data{
		Kind:       KindSegments,
		Value:      map[string]any{"segments": values},
		BodyOffset: -1,
	}
}

// DecodeBlock runs the fallback chain on one contiguous block of bytes
func DecodeBlock(b []byte) *Data {
	if !utf8.Valid(b) {
		return &Data{Kind: KindRaw, Value: map[string]any{"raw": hex.EncodeToString(b)}, BodyOffset: -1}
	}

	head, body, found := bytes.Cut(b, headerSeparator)
	if !found {
		return &Data{Kind: KindText, Value: map[string]any{"text": string(b)}, BodyOffset: -1}
	}

	d := &Data{Body: body, BodyOffset: len(head) + len(headerSeparator)}
	if resp := parseHead(head); resp != nil {
		d.Response = resp
		if resp.Chunked {
			if decoded, ok := dechunk(head, body); ok {
				d.Body = decoded
				d.BodyOffset = -1
			}
		}
	}

	if v, ok := decodeJSON(d.Body); ok {
		d.Kind = KindJSON
		d.Value = v
		return d
	}

	d.Kind = KindText
	d.Value = map[string]any{"text": string(d.Body)}
	return d
}

// parseHead parses an HTTP response status line and headers
func parseHead(head []byte) *Response {
	r := bufio.NewReader(io.MultiReader(bytes.NewReader(head), bytes.NewReader(headerSeparator)))
	resp, err := http.ReadResponse(r, nil)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	chunked := false
	for _, te := range resp.TransferEncoding {
		if strings.EqualFold(te, "chunked") {
			chunked = true
		}
	}

	return &Response{
		Proto:      resp.Proto,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Chunked:    chunked,
	}
}

// dechunk decodes a chunked body, failing on malformed or truncated framing
func dechunk(head, body []byte) ([]byte, bool) {
	msg := make([]byte, 0, len(head)+len(headerSeparator)+len(body))
	msg = append(msg, head...)
	msg = append(msg, headerSeparator...)
	msg = append(msg, body...)

	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(msg)), nil)
	if err != nil {
		return nil, false
	}
	defer resp.Body.Close()

	decoded, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false
	}
	return decoded, true
}

// decodeJSON parses a single JSON value, keeping numbers exact
func decodeJSON(body []byte) (any, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, false
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, false
	}
	return v, true
}
