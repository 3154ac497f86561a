package models

import (
	"encoding/json"
	"testing"
)

func TestFilterRule_IDRoundTripsVerbatim(t *testing.T) {
	cases := map[string]string{
		"numeric":        `{"id":1712345678901,"field":"value","operator":"greaterThan","value":1000,"logic":null}`,
		"numeric string": `{"id":"123","field":"value","operator":"greaterThan","value":1000,"logic":null}`,
		"uuid":           `{"id":"6f1c-aa","field":"stage","operator":"equals","value":"proposal","logic":"OR"}`,
		"null":           `{"id":null,"field":"name","operator":"contains","value":"a","logic":null}`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			var r FilterRule
			if err := json.Unmarshal([]byte(in), &r); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			out, err := json.Marshal(r)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			if string(out) != in {
				t.Errorf("round trip:\n got %s\nwant %s", out, in)
			}
		})
	}
}

func TestFilterRule_MissingIDDecodesEmpty(t *testing.T) {
	r := FilterRule{ID: "stale"}
	if err := json.Unmarshal([]byte(`{"field":"name","operator":"contains","value":"a"}`), &r); err != nil {
		t.Fatal(err)
	}
	if r.ID != "" || r.Field != "name" || r.Logic != LogicNone {
		t.Errorf("rule = %+v", r)
	}
}

func TestFilterRule_GoBuiltIDIsString(t *testing.T) {
	out, _ := json.Marshal(FilterRule{ID: "42", Field: "value", Operator: OpEquals, Value: 1})
	want := `{"id":"42","field":"value","operator":"equals","value":1,"logic":null}`
	if string(out) != want {
		t.Errorf("got %s, want %s", out, want)
	}
}

func TestFilterRule_BadID(t *testing.T) {
	var r FilterRule
	if err := json.Unmarshal([]byte(`{"id":true}`), &r); err == nil {
		t.Error("expected error for boolean id")
	}
}
