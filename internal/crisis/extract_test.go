package crisis

import (
	"encoding/json"
	"testing"
)

func contactsJSON(t *testing.T, contacts []Contact) string {
	t.Helper()
	raw, err := json.Marshal(extractedResources{Contacts: contacts})
	if err != nil {
		t.Fatalf("marshal contacts: %v", err)
	}
	return string(raw)
}

func TestParseContacts(t *testing.T) {
	valid := contactsJSON(t, goodContacts())

	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "bare json", raw: valid},
		{name: "json fence", raw: "```json\n" + valid + "\n```"},
		{name: "plain fence", raw: "```\n" + valid + "\n```"},
		{name: "empty response", raw: "", wantErr: true},
		{name: "prose", raw: "I could not find any hotlines.", wantErr: true},
		{name: "four contacts", raw: contactsJSON(t, goodContacts()[:4]), wantErr: true},
		{name: "six contacts", raw: contactsJSON(t, append(goodContacts(), goodContacts()[0])), wantErr: true},
		{name: "empty name", raw: func() string {
			contacts := goodContacts()
			contacts[0].Name = ""
			return contactsJSON(t, contacts)
		}(), wantErr: true},
		{name: "missing key", raw: `{"hotlines": []}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contacts, err := parseContacts(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseContacts() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && len(contacts) != contactCount {
				t.Errorf("got %d contacts, want %d", len(contacts), contactCount)
			}
		})
	}
}

func TestStripJSONFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "no fence", in: `{"a": 1}`, want: `{"a": 1}`},
		{name: "json fence", in: "```json\n{\"a\": 1}\n```", want: `{"a": 1}`},
		{name: "anonymous fence", in: "```\n{\"a\": 1}\n```", want: `{"a": 1}`},
		{name: "single line fence", in: "```{\"a\": 1}```", want: `{"a": 1}`},
		{name: "surrounding whitespace", in: "  ```json\n{\"a\": 1}\n```  ", want: `{"a": 1}`},
		{name: "empty", in: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripJSONFence(tt.in); got != tt.want {
				t.Errorf("stripJSONFence(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
