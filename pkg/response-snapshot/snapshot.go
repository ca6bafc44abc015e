// Package snapshot converts HTTP responses to and from their stored
// representation: the complete HTTP/1.1 wire form (status line, headers,
// body) as a byte slice.
package snapshot

import (
	"bufio"
	"bytes"
	"net/http"
)

// Marshal returns the wire representation of the response.
// The response body is consumed in the process and replaced with an
// equivalent reader, so the response stays usable by the caller.
func Marshal(res *http.Response) ([]byte, error) {
	buf := &bytes.Buffer{}
	body := res.Body
	if err := res.Write(buf); err != nil {
		return nil, err
	}
	if body != nil {
		body.Close()
	}
	bts := buf.Bytes()
	// read the response back to get a fresh body for the caller
	clone, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(bts)), res.Request)
	if err != nil {
		return nil, err
	}
	res.Body = clone.Body
	return bts, nil
}

// Unmarshal reconstructs a response from its stored bytes.
// The returned response is associated with req, which may be nil.
func Unmarshal(b []byte, req *http.Request) (*http.Response, error) {
	return http.ReadResponse(bufio.NewReader(bytes.NewReader(b)), req)
}
