package mcpserver

// FilterReference describes the rule format accepted by save_view and
// filter_records. LLM consumers should read it before building rules.
const FilterReference = `# FlowCRM Filter Reference

A saved view is a named, ordered list of filter rules for one entity type
(` + "`contacts`" + ` or ` + "`deals`" + `).

## Rule

` + "```" + `json
{"id": "r1", "field": "value", "operator": "greaterThan", "value": 1000, "logic": null}
` + "```" + `

- ` + "`id`" + ` optional; generated when missing.
- ` + "`field`" + ` must exist on the entity (see below).
- ` + "`operator`" + ` must be allowed for the field.
- ` + "`value2`" + ` is the upper bound, used only by ` + "`between`" + `.
- ` + "`logic`" + ` joins a rule to the one before it: ` + "`AND`" + ` or ` + "`OR`" + `.
  The first rule has no logic (null).

## Evaluation

Rules are folded strictly left to right with no precedence:
` + "`A OR B AND C`" + ` means ` + "`(A OR B) AND C`" + `.
A record whose field is empty never matches a rule on that field.

## Operators

| operator    | meaning                                              |
|-------------|------------------------------------------------------|
| contains    | case-insensitive substring                           |
| equals      | case-insensitive string equality                     |
| startsWith  | case-insensitive prefix                              |
| before      | date strictly earlier than value                     |
| after       | date strictly later than value                       |
| between     | numeric or date range, inclusive of value and value2 |
| greaterThan | numeric >                                            |
| lessThan    | numeric <                                            |
| in          | exact (case-sensitive) equality with a single value  |

Dates use ISO-8601 (` + "`2024-03-31`" + ` or ` + "`2024-03-31T12:00:00Z`" + `).

## Fields

contacts: name, email, company, position (contains, equals, startsWith);
tags (contains, equals); lastActivity, createdAt (before, after, between).
Quick search scans name, email and company.

deals: title (contains, equals, startsWith); value, probability (equals,
greaterThan, lessThan, between); stage (equals, in); expectedCloseDate,
createdAt (before, after, between). Quick search scans title and stage.

Stages: prospect, qualified, proposal, negotiation, closed-won, closed-lost.
`
