package protocol

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
)

func TestConfiguration_JSONKeepsOrder(t *testing.T) {
	raw := []byte(`{"zeta":1,"alpha":{"b":true,"a":[1,"x",{"k":null}]},"mid":"text","num":1.0}`)

	var c Configuration
	if err := json.Unmarshal(raw, &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff([]string{"zeta", "alpha", "mid", "num"}, c.Keys()); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}

	nested, ok := c.Get("alpha")
	if !ok {
		t.Fatal("expected nested key")
	}
	sub, ok := nested.(*Configuration)
	if !ok {
		t.Fatalf("expected *Configuration, got %T", nested)
	}
	if diff := cmp.Diff([]string{"b", "a"}, sub.Keys()); diff != "" {
		t.Errorf("nested keys mismatch (-want +got):\n%s", diff)
	}

	out, err := json.Marshal(&c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != string(raw) {
		t.Errorf("expected byte-identical re-encode:\n got %s\nwant %s", out, raw)
	}
}

func TestConfiguration_UnmarshalJSONRejectsNonObject(t *testing.T) {
	var c Configuration
	if err := json.Unmarshal([]byte(`[1,2]`), &c); err == nil {
		t.Fatal("expected error for list")
	}
}

func TestConfiguration_YAMLKeepsOrder(t *testing.T) {
	doc := `
apiProvider: openrouter
openRouterModelInfo:
  maxTokens: 8192
  contextWindow: 1000000
  supportsImages: true
allowedCommands: ["*"]
language: en
`
	var c Configuration
	if err := yaml.Unmarshal([]byte(doc), &c); err != nil {
		t.Fatalf("unmarshal yaml: %v", err)
	}

	out, err := json.Marshal(&c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"apiProvider":"openrouter","openRouterModelInfo":{"maxTokens":8192,"contextWindow":1000000,"supportsImages":true},"allowedCommands":["*"],"language":"en"}`
	if string(out) != want {
		t.Errorf("unexpected JSON:\n got %s\nwant %s", out, want)
	}
}

func TestConfiguration_YAMLRejectsScalarDocument(t *testing.T) {
	var c Configuration
	if err := yaml.Unmarshal([]byte("just a string"), &c); err == nil {
		t.Fatal("expected error for scalar document")
	}
}

func TestConfiguration_SetKeepsPosition(t *testing.T) {
	c := NewConfiguration()
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("a", 3)

	if diff := cmp.Diff([]string{"a", "b"}, c.Keys()); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
	if v, _ := c.Get("a"); v != 3 {
		t.Errorf("expected a=3, got %v", v)
	}

	c.Delete("a")
	if c.Len() != 1 {
		t.Errorf("expected 1 key, got %d", c.Len())
	}
}

func TestConfiguration_Merge(t *testing.T) {
	base := NewConfiguration()
	base.Set("apiProvider", "openrouter")
	exp := NewConfiguration()
	exp.Set("search_and_replace", true)
	exp.Set("powerSteering", false)
	base.Set("experiments", exp)
	base.Set("mode", "code")

	overlayExp := NewConfiguration()
	overlayExp.Set("powerSteering", true)
	overlay := NewConfiguration()
	overlay.Set("mode", "architect")
	overlay.Set("experiments", overlayExp)
	overlay.Set("language", "de")

	base.Merge(overlay)

	out, err := json.Marshal(base)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"apiProvider":"openrouter","experiments":{"search_and_replace":true,"powerSteering":true},"mode":"architect","language":"de"}`
	if string(out) != want {
		t.Errorf("unexpected merge result:\n got %s\nwant %s", out, want)
	}
}

func TestConfiguration_NilMarshal(t *testing.T) {
	var c *Configuration
	out, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != "null" {
		t.Errorf("expected null, got %s", out)
	}
}
