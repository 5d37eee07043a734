package planetlab

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

// value is a decoded (or to-be-re-encoded) XML-RPC value: exactly one
// of String/Array/Struct is meaningful, matching the variant the
// server actually sent. It intentionally covers only the string,
// array, and struct shapes GetSlices/GetNodes responses use -- ints
// pass through String as their decimal text, which is all
// ResolveSliceHosts needs from a node ID.
type value struct {
	String string
	Array  []*value
	Struct map[string]*value
}

type rawValue struct {
	String *string    `xml:"string"`
	Int    *string    `xml:"int"`
	I4     *string    `xml:"i4"`
	Array  *rawArray  `xml:"array"`
	Struct *rawStruct `xml:"struct"`
	Chars  string     `xml:",chardata"`
}

type rawArray struct {
	Data struct {
		Values []rawValue `xml:"value"`
	} `xml:"data"`
}

type rawStruct struct {
	Members []struct {
		Name  string   `xml:"name"`
		Value rawValue `xml:"value"`
	} `xml:"member"`
}

type rawMethodResponse struct {
	XMLName xml.Name `xml:"methodResponse"`
	Params  struct {
		Param []struct {
			Value rawValue `xml:"value"`
		} `xml:"param"`
	} `xml:"params"`
	Fault *struct {
		Value rawValue `xml:"value"`
	} `xml:"fault"`
}

func decodeResponse(body []byte) (*value, error) {
	var resp rawMethodResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("xmlrpc: malformed response: %w", err)
	}
	if resp.Fault != nil {
		fault := fromRaw(resp.Fault.Value)
		detail := "unknown fault"
		if s, err := fault.structField("faultString"); err == nil {
			detail = s.String
		}
		return nil, fmt.Errorf("xmlrpc fault: %s", detail)
	}
	if len(resp.Params.Param) == 0 {
		return nil, fmt.Errorf("xmlrpc: response has no return value")
	}
	v := fromRaw(resp.Params.Param[0].Value)
	return v, nil
}

func fromRaw(r rawValue) *value {
	switch {
	case r.Array != nil:
		items := make([]*value, 0, len(r.Array.Data.Values))
		for _, rv := range r.Array.Data.Values {
			items = append(items, fromRaw(rv))
		}
		return &value{Array: items}
	case r.Struct != nil:
		m := make(map[string]*value, len(r.Struct.Members))
		for _, member := range r.Struct.Members {
			m[member.Name] = fromRaw(member.Value)
		}
		return &value{Struct: m}
	case r.String != nil:
		return &value{String: *r.String}
	case r.Int != nil:
		return &value{String: *r.Int}
	case r.I4 != nil:
		return &value{String: *r.I4}
	default:
		return &value{String: r.Chars}
	}
}

func (v *value) asArray() ([]*value, error) {
	if v.Array == nil {
		return nil, fmt.Errorf("xmlrpc: expected array value")
	}
	return v.Array, nil
}

func (v *value) structField(name string) (*value, error) {
	if v.Struct == nil {
		return nil, fmt.Errorf("xmlrpc: expected struct value")
	}
	field, ok := v.Struct[name]
	if !ok {
		return nil, fmt.Errorf("xmlrpc: struct has no field %q", name)
	}
	return field, nil
}

// writeRaw re-serializes a decoded value so it can be sent back as a
// parameter of a later call (GetNodes takes the node_ids array
// GetSlices returned).
func (v *value) writeRaw(buf *bytes.Buffer) {
	switch {
	case v.Array != nil:
		buf.WriteString("<array><data>")
		for _, item := range v.Array {
			buf.WriteString("<value>")
			item.writeRaw(buf)
			buf.WriteString("</value>")
		}
		buf.WriteString("</data></array>")
	case v.Struct != nil:
		buf.WriteString("<struct>")
		for name, item := range v.Struct {
			buf.WriteString("<member><name>" + name + "</name><value>")
			item.writeRaw(buf)
			buf.WriteString("</value></member>")
		}
		buf.WriteString("</struct>")
	default:
		buf.WriteString("<string>")
		xml.EscapeText(buf, []byte(v.String))
		buf.WriteString("</string>")
	}
}
