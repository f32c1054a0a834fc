// Package validation checks the scalar fields of service definitions.
//
// Rules are pipe-separated strings keyed by dotted field paths, validated
// against a flat map of string values. Fields are checked in sorted order and
// validation of a field stops at its first failing rule.
//
//	v := validation.Make(map[string]string{
//	    "services.mailer":              "mailer",
//	    "services.mailer.creationMode": "factory",
//	}, validation.Rules{
//	    "services.mailer":              "service_id",
//	    "services.mailer.creationMode": "nullable|in:auto,module,function,class",
//	})
//
//	if v.Fails() {
//	    return v.Errors() // *Errors is an error
//	}
//
// # Available Rules
//
//   - required      field must be present and non-empty
//   - nullable      skip the remaining rules when the field is absent or empty
//   - sometimes     same as nullable
//   - numeric, integer, boolean
//   - min:n, max:n  UTF-8 length bounds
//   - in:a,b,c / not_in:a,b,c
//   - alpha_dash, regex:pattern
//   - service_id    letters, digits, '.', '_' and '-'
//   - reference     service_id optionally followed by ":method"
//   - method        a method name
package validation
