package validation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-wiring/framework/validation"
)

func TestRules(t *testing.T) {
	tests := []struct {
		rule  string
		value string
		pass  bool
	}{
		{"required", "x", true},
		{"required", "  ", false},
		{"numeric", "1.5", true},
		{"numeric", "abc", false},
		{"integer", "10", true},
		{"integer", "1.5", false},
		{"boolean", "yes", true},
		{"boolean", "maybe", false},
		{"min:3", "abc", true},
		{"min:3", "ab", false},
		{"max:3", "abcd", false},
		{"in:auto,module, function,class", "function", true},
		{"in:auto,module,function,class", "factory", false},
		{"not_in:container", "container", false},
		{"alpha_dash", "a_b-c", true},
		{"alpha_dash", "a.b", false},
		{"regex:^v[0-9]+$", "v12", true},
		{"regex:^v[0-9]+$", "x12", false},
		{"service_id", "mail.smtp-1_a", true},
		{"service_id", "mail smtp", false},
		{"service_id", "mail:send", false},
		{"reference", "mail.smtp:send", true},
		{"reference", "mail.smtp", true},
		{"reference", "mail:send:now", false},
		{"reference", "mail:", false},
		{"method", "Build", true},
		{"method", "build_2", true},
		{"method", "2build", false},
		{"method", "a.b", false},
	}
	for _, tt := range tests {
		t.Run(tt.rule+"/"+tt.value, func(t *testing.T) {
			v := validation.Make(map[string]string{"field": tt.value}, validation.Rules{"field": tt.rule})
			assert.Equal(t, tt.pass, v.Passes(), v.Errors().First("field"))
		})
	}
}

func TestNullableSkipsAbsentFields(t *testing.T) {
	v := validation.Make(map[string]string{}, validation.Rules{
		"services.a.creationMode": "nullable|in:auto,module",
		"services.a.configurator": "sometimes|reference",
	})
	assert.True(t, v.Passes())

	v = validation.Make(map[string]string{"services.a.creationMode": "bogus"}, validation.Rules{
		"services.a.creationMode": "nullable|in:auto,module",
	})
	assert.True(t, v.Fails())
}

func TestStopsAtFirstFailure(t *testing.T) {
	v := validation.Make(map[string]string{"id": ""}, validation.Rules{"id": "required|service_id|min:3"})

	require.True(t, v.Fails())
	assert.Len(t, v.Errors().Bag["id"], 1)
	assert.Equal(t, "The id field is required.", v.Errors().First("id"))
}

func TestErrors(t *testing.T) {
	var e validation.Errors
	assert.NoError(t, e.Err())
	assert.Empty(t, e.First("x"))

	e.Add("services.b", "second")
	e.Add("services.a", "first")
	other := &validation.Errors{}
	other.Add("services.a", "again")
	e.Merge(other)
	e.Merge(nil)

	require.Error(t, e.Err())
	assert.Equal(t, []string{"services.a", "services.b"}, e.Fields())
	assert.Equal(t, "services.a: first again\nservices.b: second", e.Error())
}

func TestRevalidationResetsErrors(t *testing.T) {
	data := map[string]string{"id": "bad id"}
	v := validation.Make(data, validation.Rules{"id": "service_id"})
	require.True(t, v.Fails())

	data["id"] = "good"
	assert.True(t, v.Passes())
}
