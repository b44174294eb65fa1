package gateway

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
)

// MarshalXML renders v with the XML declaration and an optional DOCTYPE line
func MarshalXML(v any, doctype string) ([]byte, error) {
	body, err := xml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal XML body: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteByte('\n')
	if doctype != "" {
		buf.WriteString(doctype)
		buf.WriteByte('\n')
	}
	buf.Write(body)
	return buf.Bytes(), nil
}

// UnmarshalXML decodes a processor reply, tagging failures with ErrResponse
func UnmarshalXML(body []byte, v any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return fmt.Errorf("empty XML response: %w", ErrResponse)
	}
	decoder := xml.NewDecoder(bytes.NewReader(body))
	// processors commonly declare ISO-8859-1 while sending ASCII
	decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("invalid XML response: %v: %w", err, ErrResponse)
	}
	return nil
}
