package crisis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/jsonschema-go/jsonschema"
)

const extractSystemPrompt = `You extract verified crisis hotline information from web page text.
Respond with JSON only, no prose. The JSON object has a single key
"crisis_hotlines": an array of exactly 5 objects, each with the keys
"name", "number", "website" and "description". Only include contacts that
appear in the provided sources. Prefer national suicide prevention and
mental health crisis lines over generic emergency services, but include
the general emergency number as one entry when the sources list it.`

// extractedResources is the shape the model must produce.
type extractedResources struct {
	Contacts []Contact `json:"crisis_hotlines"`
}

var (
	contactsSchemaOnce sync.Once
	contactsSchema     *jsonschema.Resolved
	contactsSchemaErr  error
)

// resolvedContactsSchema builds the payload schema once: the generated
// struct schema tightened to the exact contact count and non-empty fields.
func resolvedContactsSchema() (*jsonschema.Resolved, error) {
	contactsSchemaOnce.Do(func() {
		schema, err := jsonschema.For[extractedResources](nil)
		if err != nil {
			contactsSchemaErr = fmt.Errorf("schema for crisis contacts: %w", err)
			return
		}

		hotlines := schema.Properties["crisis_hotlines"]
		count := contactCount
		hotlines.MinItems = &count
		hotlines.MaxItems = &count

		minLen := 1
		for _, prop := range hotlines.Items.Properties {
			prop.MinLength = &minLen
		}

		contactsSchema, contactsSchemaErr = schema.Resolve(nil)
	})
	return contactsSchema, contactsSchemaErr
}

// modelExtract asks the model for the contact list and validates the raw
// payload against the schema before decoding it.
func (s *Service) modelExtract(ctx context.Context, country, corpus string) ([]Contact, error) {
	resp, err := genkit.Generate(ctx, s.g,
		ai.WithSystem(extractSystemPrompt),
		ai.WithPrompt("Country: %s\n\nSources:\n\n%s", country, corpus),
		ai.WithModelName(s.modelName),
	)
	if err != nil {
		return nil, fmt.Errorf("generating contact list: %w", err)
	}

	contacts, err := parseContacts(resp.Text())
	if err != nil {
		return nil, err
	}
	return contacts, nil
}

// parseContacts decodes a model response into contacts, tolerating a
// markdown code fence around the JSON.
func parseContacts(raw string) ([]Contact, error) {
	raw = stripJSONFence(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty model response")
	}

	var payload any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("parsing model response: %w", err)
	}

	schema, err := resolvedContactsSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(payload); err != nil {
		return nil, fmt.Errorf("model response failed validation: %w", err)
	}

	var out extractedResources
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decoding model response: %w", err)
	}
	return out.Contacts, nil
}

// stripJSONFence removes a surrounding markdown code fence (```json ... ```
// or ``` ... ```) if present.
func stripJSONFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		// Drop the language tag on the opening fence line.
		first := strings.TrimSpace(s[:idx])
		if first == "" || first == "json" {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
