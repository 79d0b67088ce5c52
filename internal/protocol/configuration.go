package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Configuration is the opaque task configuration sent with StartNewTask. It is
// an ordered map: keys keep insertion (or document) order on the wire. Nested
// objects decode to *Configuration, lists to []interface{}.
type Configuration struct {
	keys   []string
	values map[string]interface{}
}

// NewConfiguration returns an empty configuration.
func NewConfiguration() *Configuration {
	return &Configuration{values: make(map[string]interface{})}
}

// Set stores value under key. Existing keys keep their position.
func (c *Configuration) Set(key string, value interface{}) {
	if c.values == nil {
		c.values = make(map[string]interface{})
	}
	if _, ok := c.values[key]; !ok {
		c.keys = append(c.keys, key)
	}
	c.values[key] = value
}

// Get returns the value stored under key.
func (c *Configuration) Get(key string) (interface{}, bool) {
	if c == nil || c.values == nil {
		return nil, false
	}
	v, ok := c.values[key]
	return v, ok
}

// Delete removes key.
func (c *Configuration) Delete(key string) {
	if c == nil {
		return
	}
	if _, ok := c.values[key]; !ok {
		return
	}
	delete(c.values, key)
	for i, k := range c.keys {
		if k == key {
			c.keys = append(c.keys[:i], c.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in order.
func (c *Configuration) Keys() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Len returns the number of keys.
func (c *Configuration) Len() int {
	if c == nil {
		return 0
	}
	return len(c.keys)
}

// Merge overlays other onto c. Nested configurations present on both sides
// are merged recursively; any other value from other replaces c's.
func (c *Configuration) Merge(other *Configuration) {
	if other == nil {
		return
	}
	for _, k := range other.keys {
		ov := other.values[k]
		if cur, ok := c.Get(k); ok {
			cc, curIsConf := cur.(*Configuration)
			oc, otherIsConf := ov.(*Configuration)
			if curIsConf && otherIsConf {
				cc.Merge(oc)
				continue
			}
		}
		c.Set(k, ov)
	}
}

// MarshalJSON encodes the configuration as an object in key order.
func (c *Configuration) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range c.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(c.values[k])
		if err != nil {
			return nil, fmt.Errorf("configuration key %q: %w", k, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object, keeping document order.
func (c *Configuration) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("configuration: expected object, got %v", tok)
	}
	*c = Configuration{values: make(map[string]interface{})}
	return c.decodeObject(dec)
}

func (c *Configuration) decodeObject(dec *json.Decoder) error {
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("configuration: expected key, got %v", tok)
		}
		v, err := decodeJSONValue(dec)
		if err != nil {
			return err
		}
		c.Set(key, v)
	}
	// closing '}'
	_, err := dec.Token()
	return err
}

func decodeJSONValue(dec *json.Decoder) (interface{}, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	d, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch d {
	case '{':
		sub := NewConfiguration()
		if err := sub.decodeObject(dec); err != nil {
			return nil, err
		}
		return sub, nil
	case '[':
		list := make([]interface{}, 0)
		for dec.More() {
			v, err := decodeJSONValue(dec)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return list, nil
	default:
		return nil, fmt.Errorf("configuration: unexpected delimiter %v", d)
	}
}

// UnmarshalYAML decodes a mapping node, keeping document order.
func (c *Configuration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.DocumentNode && len(value.Content) > 0 {
		value = value.Content[0]
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("configuration: line %d: expected mapping", value.Line)
	}
	*c = Configuration{values: make(map[string]interface{})}
	for i := 0; i+1 < len(value.Content); i += 2 {
		k, v := value.Content[i], value.Content[i+1]
		val, err := decodeYAMLValue(v)
		if err != nil {
			return err
		}
		c.Set(k.Value, val)
	}
	return nil
}

func decodeYAMLValue(n *yaml.Node) (interface{}, error) {
	switch n.Kind {
	case yaml.AliasNode:
		return decodeYAMLValue(n.Alias)
	case yaml.MappingNode:
		sub := NewConfiguration()
		if err := sub.UnmarshalYAML(n); err != nil {
			return nil, err
		}
		return sub, nil
	case yaml.SequenceNode:
		list := make([]interface{}, 0, len(n.Content))
		for _, item := range n.Content {
			v, err := decodeYAMLValue(item)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil
	default:
		var v interface{}
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("configuration: line %d: %w", n.Line, err)
		}
		return v, nil
	}
}
