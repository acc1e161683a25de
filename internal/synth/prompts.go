package synth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/template"
)

// Stage names label oracle calls, diagnostics and history rows.
const (
	StageDiscover    = "discover"
	StageConverge    = "converge"
	StageEnrich      = "enrich"
	StageViews       = "views"
	StageStories     = "stories"
	StageRationalize = "rationalize"
	StageConceptDoc  = "concept_doc"
	StageOverview    = "overview"
)

const systemPrompt = `You are a domain modelling analyst. You read source code evidence and describe the business domain it implements: the things, activities, roles, states, events, places and times that a domain expert would talk about. Never describe code artifacts (classes, modules, helpers, frameworks) as concepts. Respond only with the requested JSON object unless told otherwise.`

var funcs = template.FuncMap{
	"json": func(v any) (string, error) {
		b, err := json.MarshalIndent(v, "", "  ")
		return string(b), err
	},
}

func mustTemplate(name, text string) *template.Template {
	return template.Must(template.New(name).Funcs(funcs).Parse(text))
}

var discoverTmpl = mustTemplate("discover",
	`Repository: {{.Root}}

Exported declarations ({{len .Declarations}}{{if .Truncated}}, truncated from {{.Total}}{{end}}), one per line as kind name file:line:
{{range .Declarations}}{{.Kind}} {{.Name}} {{.File}}:{{.Line}}
{{end}}
Group the domain into one or more models (coherent subsystems). For each model list the domain concepts it contains. Every concept must cite at least one evidence reference taken from the declarations above.

Respond with JSON of exactly this shape:
{
  "summary": "<one sentence>",
  "description": "<one paragraph>",
  "models": [
    {
      "id": "<kebab-case>",
      "title": "<title>",
      "description": "<paragraph>",
      "concepts": [
        {
          "id": "<kebab-case, unique in the model>",
          "label": "<domain name>",
          "category": "thing|activity|role|state|event|place|time|other",
          "description": "<one or two sentences>",
          "aliases": ["<synonym>"],
          "evidence": [{"file": "<path>", "symbol": "<declaration name>", "line": 0}]
        }
      ]
    }
  ]
}`)

var convergeTmpl = mustTemplate("converge",
	`Repository: {{.Root}}

Exported declarations, one per line as kind name file:line:
{{range .Declarations}}{{.Kind}} {{.Name}} {{.File}}:{{.Line}}
{{end}}
{{if .Known}}Concepts already found (do NOT repeat any of these names):
{{range .Known}}- {{.}}
{{end}}
List only domain concepts that are missing from the list above. Return an empty list when nothing is missing.
{{else}}List the domain concepts this repository implements.
{{end}}
Respond with JSON of exactly this shape:
{
  "concepts": [
    {
      "name": "<domain name>",
      "boundedContext": "<classification label>",
      "summary": "<one sentence>",
      "evidence": [{"file": "<path>", "symbol": "<declaration name>", "line": 0}]
    }
  ]
}`)

var enrichTmpl = mustTemplate("enrich",
	`Enrich the domain concept below using the code snippets that implement it.

Concept:
{{json .Concept}}

Other concepts in this model (reuse their ids for relationships):
{{range .Siblings}}- {{.ID}}: {{.Label}} ({{.Category}})
{{end}}
{{if .Relationships}}Relationships already recorded in this model (reuse phrasing and avoid duplicates):
{{range .Relationships}}- {{.ID}}: {{.From}} {{.Phrase}} {{.To}}
{{end}}
{{end}}Code:
{{range .Snippets}}--- {{.File}} (lines {{.StartLine}}-{{.EndLine}})
{{.Text}}
{{end}}
Respond with JSON of exactly this shape:
{
  "description": "<refined description, or empty>",
  "aliases": ["<synonym>"],
  "notes": "<free text>",
  "relationships": [
    {"id": "<kebab-case>", "from": "<concept id>", "to": "<concept id>", "phrase": "<verb phrase>",
     "category": "is_a|part_of|causes|enables|prevents|precedes|uses|represents|other", "description": "<sentence>"}
  ],
  "rules": [
    {"id": "<kebab-case>", "title": "<title>", "text": "<rule>", "kind": "invariant|constraint|policy|assumption", "conceptIds": ["<concept id>"]}
  ],
  "lifecycles": [
    {"conceptId": "<concept id>", "stateIds": ["<state concept id>"], "transitionIds": ["<relationship id>"], "initial": "<state id>", "terminal": "<state id>"}
  ]
}`)

var viewsTmpl = mustTemplate("views",
	`Model: {{.Title}}

Concepts:
{{range .Concepts}}- {{.ID}}: {{.Label}} ({{.Category}})
{{end}}
Relationships:
{{range .Relationships}}- {{.ID}}: {{.From}} -> {{.To}} ({{.Category}})
{{end}}
Curate 3 to 7 diagram views of this model. Each view uses 4 to 8 concept ids and 4 to 10 relationship ids taken from the lists above. A view may optionally split its concepts into 2 to 5 disjoint layout groups read left-to-right (LR) or top-to-bottom (TB).

Respond with JSON of exactly this shape:
{
  "views": [
    {
      "id": "<kebab-case>",
      "name": "<title>",
      "description": "<sentence>",
      "conceptIds": ["<id>"],
      "relationshipIds": ["<id>"],
      "direction": "LR|TB",
      "groups": [{"id": "<kebab-case>", "label": "<label>", "conceptIds": ["<id>"]}]
    }
  ]
}`)

var storiesTmpl = mustTemplate("stories",
	`Model: {{.Title}}

Concepts:
{{range .Concepts}}- {{.ID}}: {{.Label}} ({{.Category}})
{{end}}
Relationships:
{{range .Relationships}}- {{.ID}}: {{.From}} {{.Phrase}} {{.To}}
{{end}}
Write 2 to 5 stories that explain how this model behaves over time. Each story has 3 to 7 steps with a 0-based index increasing by one. Each step references 2 to 6 concept ids and 1 to 5 relationship ids from the lists above, and may mark a primary subset for emphasis.

Respond with JSON of exactly this shape:
{
  "stories": [
    {
      "id": "<kebab-case>",
      "name": "<title>",
      "tags": ["<tag>"],
      "focusConceptId": "<id>",
      "steps": [
        {"id": "<kebab-case>", "index": 0, "title": "<title>", "narrative": "<paragraph>",
         "conceptIds": ["<id>"], "relationshipIds": ["<id>"],
         "primaryConceptIds": ["<id>"], "primaryRelationshipIds": ["<id>"]}
      ]
    }
  ]
}`)

var rationalizeTmpl = mustTemplate("rationalize",
	`These domain concepts were classified independently, so their labels are fragmented:
{{range .}}- {{.Name}}: {{.Label}}
{{end}}
Propose 3 to 7 consolidated labels. Each label lists the exact concept names it subsumes.

Respond with a JSON object mapping each label to its concept names, for example:
{"Finance": ["Invoice", "Payment"], "Fulfilment": ["Shipment"]}`)

var conceptDocTmpl = mustTemplate("concept_doc",
	`Document the domain concept "{{.Concept.Name}}" ({{.Concept.BoundedContext}}).
Summary: {{.Concept.Summary}}

Code:
{{range .Snippets}}--- {{.File}} (lines {{.StartLine}}-{{.EndLine}})
{{.Text}}
{{end}}
Respond with JSON of exactly this shape:
{
  "definition": "<paragraph>",
  "structure": "<paragraph on attributes and parts>",
  "lifecycle": "<paragraph on states, or empty>",
  "invariants": ["<rule>"],
  "commands": ["<operation that changes it>"],
  "events": ["<event it emits or reacts to>"],
  "implementation": ["<file or symbol implementing it>"]
}`)

var overviewTmpl = mustTemplate("overview",
	`Repository: {{.Root}}

Domain concepts:
{{range .Concepts}}- {{.Name}} ({{.BoundedContext}}): {{.Summary}}
{{end}}
Write a short plain-text overview (two or three paragraphs) of what this system does for its users. Do not use JSON.`)

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", t.Name(), err)
	}
	return buf.String(), nil
}
