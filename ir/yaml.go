package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EncodeYAML renders a document as YAML.
// The output mirrors the JSON encoding key for key, in the same order.
func EncodeYAML(d *Document) ([]byte, error) {
	data, err := d.MarshalJSON()
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	root, err := jsonToNode(dec)
	if err != nil {
		return nil, fmt.Errorf("yaml: %w", err)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return nil, fmt.Errorf("yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("yaml: %w", err)
	}
	return buf.Bytes(), nil
}

// jsonToNode reads one JSON value from dec and builds the equivalent node.
func jsonToNode(dec *json.Decoder) (*yaml.Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch val := tok.(type) {
	case json.Delim:
		switch val {
		case '{':
			n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, _ := keyTok.(string)
				child, err := jsonToNode(dec)
				if err != nil {
					return nil, err
				}
				n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, child)
			}
			_, err := dec.Token()
			return n, err
		case '[':
			n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
			for dec.More() {
				child, err := jsonToNode(dec)
				if err != nil {
					return nil, err
				}
				n.Content = append(n.Content, child)
			}
			_, err := dec.Token()
			return n, err
		default:
			return nil, fmt.Errorf("unexpected delimiter %v", val)
		}
	case string:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: val}, nil
	case json.Number:
		tag := "!!int"
		if strings.ContainsAny(string(val), ".eE") {
			tag = "!!float"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: string(val)}, nil
	case bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(val)}, nil
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	default:
		return nil, fmt.Errorf("unexpected token %v", tok)
	}
}

// ParseYAML decodes a YAML document.
// Scalars are typed by their resolved YAML tag, so 2.0 stays a float and 2
// stays an integer.
func ParseYAML(data []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &DecodeError{Message: fmt.Sprintf("invalid YAML: %v", err)}
	}
	if root.Kind == 0 {
		return nil, &DecodeError{Message: "empty YAML document"}
	}

	var buf bytes.Buffer
	if err := nodeToJSON(&root, &buf); err != nil {
		return nil, err
	}
	return ParseDocument(buf.Bytes())
}

func nodeToJSON(n *yaml.Node, buf *bytes.Buffer) error {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return &DecodeError{Message: "empty YAML document"}
		}
		return nodeToJSON(n.Content[0], buf)
	case yaml.AliasNode:
		return nodeToJSON(n.Alias, buf)
	case yaml.MappingNode:
		buf.WriteByte('{')
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i]
			if key.Kind != yaml.ScalarNode {
				return yamlErr(key, "mapping keys must be scalars")
			}
			if i > 0 {
				buf.WriteByte(',')
			}
			k, _ := json.Marshal(key.Value)
			buf.Write(k)
			buf.WriteByte(':')
			if err := nodeToJSON(n.Content[i+1], buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case yaml.SequenceNode:
		buf.WriteByte('[')
		for i, child := range n.Content {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := nodeToJSON(child, buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case yaml.ScalarNode:
		return scalarToJSON(n, buf)
	default:
		return yamlErr(n, "unsupported YAML node")
	}
}

func scalarToJSON(n *yaml.Node, buf *bytes.Buffer) error {
	switch n.ShortTag() {
	case "!!str":
		s, _ := json.Marshal(n.Value)
		buf.Write(s)
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return yamlErr(n, "integer out of range: %s", n.Value)
		}
		buf.WriteString(strconv.FormatInt(i, 10))
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return yamlErr(n, "invalid float: %s", n.Value)
		}
		s, err := formatFloatJSON(f)
		if err != nil {
			return yamlErr(n, "%v", err)
		}
		buf.WriteString(s)
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return yamlErr(n, "invalid bool: %s", n.Value)
		}
		buf.WriteString(strconv.FormatBool(b))
	case "!!null":
		buf.WriteString("null")
	default:
		return yamlErr(n, "unsupported scalar tag %s", n.ShortTag())
	}
	return nil
}

func yamlErr(n *yaml.Node, format string, args ...any) *DecodeError {
	return &DecodeError{
		Path:    fmt.Sprintf("line %d", n.Line),
		Message: fmt.Sprintf(format, args...),
	}
}
