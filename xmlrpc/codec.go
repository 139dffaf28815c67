// Package xmlrpc decodes XML-RPC method calls and encodes responses and faults.
package xmlrpc

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Fault codes follow the XML-RPC interoperability conventions.
const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeApplication    = -32500
)

const iso8601 = "20060102T15:04:05"

// ErrParse indicates the request body was not a valid XML-RPC method call.
var ErrParse = errors.New("parse error")

// Call is a decoded method call.
type Call struct {
	Method string
	Params []any
}

// Fault is an XML-RPC fault response.
type Fault struct {
	Code    int
	Message string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("fault %d: %s", f.Code, f.Message)
}

type xmlCall struct {
	XMLName xml.Name   `xml:"methodCall"`
	Method  string     `xml:"methodName"`
	Params  []xmlValue `xml:"params>param>value"`
}

type xmlValue struct {
	String   *string    `xml:"string"`
	Int      *string    `xml:"int"`
	I4       *string    `xml:"i4"`
	I8       *string    `xml:"i8"`
	Boolean  *string    `xml:"boolean"`
	Double   *string    `xml:"double"`
	Base64   *string    `xml:"base64"`
	DateTime *string    `xml:"dateTime.iso8601"`
	Nil      *struct{}  `xml:"nil"`
	Array    *xmlArray  `xml:"array"`
	Struct   *xmlStruct `xml:"struct"`
	Text     string     `xml:",chardata"`
}

type xmlArray struct {
	Values []xmlValue `xml:"data>value"`
}

type xmlStruct struct {
	Members []xmlMember `xml:"member"`
}

type xmlMember struct {
	Name  string   `xml:"name"`
	Value xmlValue `xml:"value"`
}

// DecodeCall reads one methodCall document from r.
func DecodeCall(r io.Reader) (*Call, error) {
	var raw xmlCall
	if err := xml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	method := strings.TrimSpace(raw.Method)
	if method == "" {
		return nil, fmt.Errorf("%w: empty methodName", ErrParse)
	}

	call := &Call{Method: method, Params: make([]any, 0, len(raw.Params))}
	for i, v := range raw.Params {
		value, err := v.decode()
		if err != nil {
			return nil, fmt.Errorf("%w: param %d: %w", ErrParse, i, err)
		}

		call.Params = append(call.Params, value)
	}

	return call, nil
}

func (v *xmlValue) decode() (any, error) {
	switch {
	case v.String != nil:
		return *v.String, nil
	case v.Int != nil, v.I4 != nil, v.I8 != nil:
		text := firstOf(v.Int, v.I4, v.I8)
		n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("int: %w", err)
		}
		return n, nil
	case v.Boolean != nil:
		switch strings.TrimSpace(*v.Boolean) {
		case "1":
			return true, nil
		case "0":
			return false, nil
		}
		return nil, fmt.Errorf("boolean: %q", *v.Boolean)
	case v.Double != nil:
		f, err := strconv.ParseFloat(strings.TrimSpace(*v.Double), 64)
		if err != nil {
			return nil, fmt.Errorf("double: %w", err)
		}
		return f, nil
	case v.Base64 != nil:
		b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(*v.Base64))
		if err != nil {
			return nil, fmt.Errorf("base64: %w", err)
		}
		return b, nil
	case v.DateTime != nil:
		ts, err := time.Parse(iso8601, strings.TrimSpace(*v.DateTime))
		if err != nil {
			return nil, fmt.Errorf("dateTime: %w", err)
		}
		return ts, nil
	case v.Nil != nil:
		return nil, nil
	case v.Array != nil:
		values := make([]any, 0, len(v.Array.Values))
		for i := range v.Array.Values {
			value, err := v.Array.Values[i].decode()
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			values = append(values, value)
		}
		return values, nil
	case v.Struct != nil:
		members := make(map[string]any, len(v.Struct.Members))
		for i := range v.Struct.Members {
			m := &v.Struct.Members[i]
			value, err := m.Value.decode()
			if err != nil {
				return nil, fmt.Errorf("member %s: %w", m.Name, err)
			}
			members[m.Name] = value
		}
		return members, nil
	}

	// a bare <value> holds a string
	return v.Text, nil
}

func firstOf(candidates ...*string) string {
	for _, c := range candidates {
		if c != nil {
			return *c
		}
	}
	return ""
}

// EncodeResponse writes a methodResponse carrying value.
func EncodeResponse(w io.Writer, value any) error {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString("<methodResponse><params><param>")
	if err := encodeValue(&buf, value); err != nil {
		return err
	}
	buf.WriteString("</param></params></methodResponse>\n")

	_, err := w.Write(buf.Bytes())
	return err
}

// EncodeFault writes a methodResponse carrying a fault.
func EncodeFault(w io.Writer, fault *Fault) error {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString("<methodResponse><fault>")
	err := encodeValue(&buf, map[string]any{
		"faultCode":   fault.Code,
		"faultString": fault.Message,
	})
	if err != nil {
		return err
	}
	buf.WriteString("</fault></methodResponse>\n")

	_, err = w.Write(buf.Bytes())
	return err
}

func encodeValue(buf *bytes.Buffer, value any) error {
	buf.WriteString("<value>")

	switch v := value.(type) {
	case nil:
		buf.WriteString("<nil/>")
	case string:
		buf.WriteString("<string>")
		if err := xml.EscapeText(buf, []byte(v)); err != nil {
			return fmt.Errorf("escape: %w", err)
		}
		buf.WriteString("</string>")
	case bool:
		if v {
			buf.WriteString("<boolean>1</boolean>")
		} else {
			buf.WriteString("<boolean>0</boolean>")
		}
	case int:
		writeInt(buf, int64(v))
	case int32:
		writeInt(buf, int64(v))
	case int64:
		writeInt(buf, v)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("unsupported double: %v", v)
		}
		fmt.Fprintf(buf, "<double>%s</double>", strconv.FormatFloat(v, 'f', -1, 64))
	case []byte:
		fmt.Fprintf(buf, "<base64>%s</base64>", base64.StdEncoding.EncodeToString(v))
	case time.Time:
		fmt.Fprintf(buf, "<dateTime.iso8601>%s</dateTime.iso8601>", v.Format(iso8601))
	case []string:
		buf.WriteString("<array><data>")
		for _, s := range v {
			if err := encodeValue(buf, s); err != nil {
				return err
			}
		}
		buf.WriteString("</data></array>")
	case []any:
		buf.WriteString("<array><data>")
		for _, item := range v {
			if err := encodeValue(buf, item); err != nil {
				return err
			}
		}
		buf.WriteString("</data></array>")
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteString("<struct>")
		for _, k := range keys {
			buf.WriteString("<member><name>")
			if err := xml.EscapeText(buf, []byte(k)); err != nil {
				return fmt.Errorf("escape: %w", err)
			}
			buf.WriteString("</name>")
			if err := encodeValue(buf, v[k]); err != nil {
				return err
			}
			buf.WriteString("</member>")
		}
		buf.WriteString("</struct>")
	default:
		return fmt.Errorf("unsupported type %T", value)
	}

	buf.WriteString("</value>")
	return nil
}

func writeInt(buf *bytes.Buffer, n int64) {
	if n < math.MinInt32 || n > math.MaxInt32 {
		fmt.Fprintf(buf, "<i8>%d</i8>", n)
		return
	}

	fmt.Fprintf(buf, "<int>%d</int>", n)
}
