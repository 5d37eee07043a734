package planetlab

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// auth is the PlanetLab authentication struct every API call's first
// positional argument must be, password-authenticated (the only
// AuthMethod this client supports).
type auth struct {
	Username string
	Password string
}

// ResolveSliceHosts calls GetSlices then GetNodes to turn a slice name
// into its member nodes' SSH hostnames, in the API's returned order.
func ResolveSliceHosts(apiURL, sliceName, user, password string) ([]string, error) {
	a := auth{Username: user, Password: password}

	sliceResp, err := call(apiURL, "GetSlices", a, []string{sliceName}, []string{"node_ids"})
	if err != nil {
		return nil, fmt.Errorf("GetSlices: %w", err)
	}
	slices, err := sliceResp.asArray()
	if err != nil {
		return nil, err
	}
	if len(slices) == 0 {
		return nil, fmt.Errorf("GetSlices: slice %q not found", sliceName)
	}
	nodeIDs, err := slices[0].structField("node_ids")
	if err != nil {
		return nil, err
	}
	ids, err := nodeIDs.asArray()
	if err != nil {
		return nil, err
	}

	nodeResp, err := call(apiURL, "GetNodes", a, ids, []string{"hostname"})
	if err != nil {
		return nil, fmt.Errorf("GetNodes: %w", err)
	}
	nodes, err := nodeResp.asArray()
	if err != nil {
		return nil, err
	}

	hostnames := make([]string, 0, len(nodes))
	for _, n := range nodes {
		hv, err := n.structField("hostname")
		if err != nil {
			return nil, err
		}
		hostnames = append(hostnames, hv.String)
	}
	return hostnames, nil
}

// call performs one XML-RPC request against apiURL and returns the
// single return value of the response.
func call(apiURL, method string, params ...interface{}) (*value, error) {
	body, err := encodeCall(method, params)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/xml")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("xmlrpc: unexpected status %d", resp.StatusCode)
	}

	return decodeResponse(respBody)
}

func encodeCall(method string, params []interface{}) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString("<methodCall><methodName>")
	xml.EscapeText(&buf, []byte(method))
	buf.WriteString("</methodName><params>")
	for _, p := range params {
		buf.WriteString("<param><value>")
		if err := encodeValue(&buf, p); err != nil {
			return nil, err
		}
		buf.WriteString("</value></param>")
	}
	buf.WriteString("</params></methodCall>")
	return buf.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, v interface{}) error {
	switch x := v.(type) {
	case string:
		buf.WriteString("<string>")
		xml.EscapeText(buf, []byte(x))
		buf.WriteString("</string>")
	case int:
		buf.WriteString("<int>" + strconv.Itoa(x) + "</int>")
	case auth:
		buf.WriteString(`<struct>`)
		writeMember(buf, "Username", x.Username)
		writeMember(buf, "AuthString", x.Password)
		writeMember(buf, "AuthMethod", "password")
		buf.WriteString(`</struct>`)
	case []string:
		buf.WriteString("<array><data>")
		for _, s := range x {
			buf.WriteString("<value>")
			if err := encodeValue(buf, s); err != nil {
				return err
			}
			buf.WriteString("</value>")
		}
		buf.WriteString("</data></array>")
	case []*value:
		buf.WriteString("<array><data>")
		for _, item := range x {
			buf.WriteString("<value>")
			item.writeRaw(buf)
			buf.WriteString("</value>")
		}
		buf.WriteString("</data></array>")
	default:
		return fmt.Errorf("xmlrpc: unsupported parameter type %T", v)
	}
	return nil
}

func writeMember(buf *bytes.Buffer, name, strVal string) {
	buf.WriteString("<member><name>" + name + "</name><value><string>")
	xml.EscapeText(buf, []byte(strVal))
	buf.WriteString("</string></value></member>")
}
