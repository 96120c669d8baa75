package rules

import (
	"github.com/antonmedv/expr"
	"github.com/stretchr/testify/assert"
	"testing"
	"testing/fstest"
)

func Test_compileRule(t *testing.T) {
	t.Run("returns an error if the filter compilation fails", func(t *testing.T) {
		r := Rule{
			Filter: "INVALID UNPARSABLE FILTER",
		}

		crs, err := compileRules([]Rule{r})
		assert.Error(t, err)
		assert.Nil(t, crs)
		assert.Contains(t, err.Error(), "filter compilation:")
	})

	t.Run("returns an error if the filter is not boolean", func(t *testing.T) {
		crs, err := compileRules([]Rule{{Filter: "Product.Name"}})
		assert.Error(t, err)
		assert.Nil(t, crs)
	})

	t.Run("returns a compiled rule", func(t *testing.T) {
		r := Rule{
			Description: "Keystone",
			Filter:      `"keyst" in Commands`,
			Actions: Actions{
				Settings: map[string]Settings{
					"keyst": {"Icon": "mdi:trapezoid"},
				},
			},
		}

		cr, err := compileRules([]Rule{r})
		assert.NoError(t, err)

		assert.Equal(t, r.Description, cr[0].Description)
		assert.NotNil(t, cr[0].Filter)
		assert.Equal(t, r.Actions, cr[0].Actions)
		assert.Nil(t, cr[0].Children)
	})
}

func TestEngine_CompileRules(t *testing.T) {
	t.Run("raises an error if a depended on ruleset is not loaded", func(t *testing.T) {
		e := Engine{
			RuleSets: map[string]RuleSet{
				"one": {
					Name:      "one",
					DependsOn: []string{"two"},
				},
			},
		}

		err := e.CompileRules()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "ruleset missing dependency: one->two")
	})

	t.Run("raises an error if there is a circular dependency", func(t *testing.T) {
		e := Engine{
			RuleSets: map[string]RuleSet{
				"one": {
					Name:      "one",
					DependsOn: []string{"two"},
				},
				"two": {
					Name:      "two",
					DependsOn: []string{"one"},
				},
			},
		}

		err := e.CompileRules()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "ruleset circular dependency: one->two->one")
	})

	t.Run("raises an error if a rule fails to compile", func(t *testing.T) {
		e := Engine{
			RuleSets: map[string]RuleSet{
				"one": {
					Name: "one",
					Rules: []Rule{
						{
							Description: "this rule",
							Filter:      "INVALID UNPARSABLE FILTER",
						},
					},
				},
			},
		}

		err := e.CompileRules()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "ruleset compilation: one: filter compilation:")
	})

	t.Run("successfully compiles nested rules and resolves execution order", func(t *testing.T) {
		e := Engine{
			RuleSets: map[string]RuleSet{
				"one": {
					Name:      "one",
					DependsOn: []string{"three"},
					Rules:     []Rule{{Description: "one", Filter: "1 == 1"}},
				},
				"two": {
					Name:      "two",
					DependsOn: []string{"one"},
					Rules: []Rule{
						{
							Description: "two",
							Filter:      "1 == 1",
							Children:    []Rule{{Description: "two-one", Filter: "1 == 1"}},
						},
					},
				},
				"three": {
					Name:  "three",
					Rules: []Rule{{Description: "three", Filter: "1 == 1"}},
				},
			},
		}

		assert.NoError(t, e.CompileRules())

		var descriptions []string
		for _, r := range e.Rules {
			descriptions = append(descriptions, r.Description)
		}

		assert.Equal(t, []string{"three", "one", "two"}, descriptions)
		assert.Equal(t, "two-one", e.Rules[2].Children[0].Description)
	})

	t.Run("compiling twice does not duplicate rules", func(t *testing.T) {
		e := Engine{
			RuleSets: map[string]RuleSet{
				"one": {Name: "one", Rules: []Rule{{Description: "one", Filter: "true"}}},
			},
		}

		assert.NoError(t, e.CompileRules())
		assert.NoError(t, e.CompileRules())
		assert.Len(t, e.Rules, 1)
	})
}

func TestEngine_Execute(t *testing.T) {
	t.Run("executes all rules that match, including any descendants", func(t *testing.T) {
		i := Input{
			Product:  InputProductData{Manufacturer: "BenQ", Name: "W1070"},
			Commands: []string{"bri", "keyst", "micvol"},
		}

		match, err := expr.Compile(`Product.Manufacturer == "BenQ"`, expr.Env(Input{}), expr.AsBool())
		assert.NoError(t, err)
		nomatch, err := expr.Compile(`Product.Manufacturer == "Optoma"`, expr.Env(Input{}), expr.AsBool())
		assert.NoError(t, err)

		e := Engine{
			Rules: []CompiledRule{
				{
					Filter:  nomatch,
					Actions: Actions{Remove: []string{"bri"}},
					Children: []CompiledRule{
						{Filter: match, Actions: Actions{Remove: []string{"keyst"}}},
					},
				},
				{
					Filter: match,
					Actions: Actions{
						Settings: map[string]Settings{"bri": {"Name": "Lamp Brightness", "MaxValue": 50}},
					},
					Children: []CompiledRule{
						{
							Filter:  match,
							Actions: Actions{Remove: []string{"micvol"}},
						},
					},
				},
				{
					Filter: match,
					Actions: Actions{
						Settings: map[string]Settings{"bri": {"MaxValue": 80}},
					},
				},
			},
		}

		o, err := e.Execute(i)
		assert.NoError(t, err)

		assert.False(t, o.Remove["bri"])
		assert.False(t, o.Remove["keyst"])
		assert.True(t, o.Remove["micvol"])
		assert.Equal(t, Settings{"Name": "Lamp Brightness", "MaxValue": 80}, o.Settings["bri"])
	})

	t.Run("filters can inspect the commands the projector supports", func(t *testing.T) {
		e := New()
		assert.NoError(t, e.LoadString(`
name: test
rules:
  - description: no keystone without microphone
    filter: '"keyst" in Commands && !("micvol" in Commands)'
    actions:
      remove: [keyst]
`))
		assert.NoError(t, e.CompileRules())

		o, err := e.Execute(Input{Commands: []string{"keyst"}})
		assert.NoError(t, err)
		assert.True(t, o.Remove["keyst"])

		o, err = e.Execute(Input{Commands: []string{"keyst", "micvol"}})
		assert.NoError(t, err)
		assert.False(t, o.Remove["keyst"])
	})
}

func TestEngine_Load(t *testing.T) {
	t.Run("loads a yaml ruleset from a string", func(t *testing.T) {
		e := New()

		err := e.LoadString(`
name: overrides
depends_on: [base]
rules:
  - description: rename brightness
    filter: "true"
    actions:
      settings:
        bri:
          Name: Lamp
    children:
      - description: child
        filter: "false"
`)
		assert.NoError(t, err)

		rs := e.RuleSets["overrides"]
		assert.Equal(t, []string{"base"}, rs.DependsOn)
		assert.Equal(t, "rename brightness", rs.Rules[0].Description)
		assert.Equal(t, Settings{"Name": "Lamp"}, rs.Rules[0].Actions.Settings["bri"])
		assert.Equal(t, "child", rs.Rules[0].Children[0].Description)
	})

	t.Run("rejects rulesets without a name", func(t *testing.T) {
		e := New()
		assert.Error(t, e.LoadString("rules: []"))
	})

	t.Run("rejects duplicate rulesets", func(t *testing.T) {
		e := New()
		assert.NoError(t, e.LoadString("name: one"))
		assert.Error(t, e.LoadString("name: one"))
	})

	t.Run("rejects malformed yaml", func(t *testing.T) {
		e := New()
		assert.Error(t, e.LoadString("name: [one"))
	})
}

func TestEngine_LoadFS(t *testing.T) {
	t.Run("loads all yaml files in a FileSystem, also Embedded rules are legal by association", func(t *testing.T) {
		e := New()

		err := e.LoadFS(Embedded)
		assert.NoError(t, err)

		assert.Contains(t, e.RuleSets, "base")
		assert.Contains(t, e.RuleSets, "benq")
	})

	t.Run("ignores files which are not yaml", func(t *testing.T) {
		e := New()

		err := e.LoadFS(fstest.MapFS{
			"custom/one.yml": {Data: []byte("name: one")},
			"README.md":      {Data: []byte("# not a ruleset")},
		})
		assert.NoError(t, err)

		assert.Len(t, e.RuleSets, 1)
		assert.Contains(t, e.RuleSets, "one")
	})
}

func TestSettings_Merge(t *testing.T) {
	t.Run("later settings override earlier ones without modifying either", func(t *testing.T) {
		a := Settings{"Name": "A", "Icon": "mdi:a"}
		b := Settings{"Name": "B"}

		assert.Equal(t, Settings{"Name": "B", "Icon": "mdi:a"}, a.Merge(b))
		assert.Equal(t, Settings{"Name": "A", "Icon": "mdi:a"}, a)
	})

	t.Run("merging into nil settings works", func(t *testing.T) {
		var s Settings
		assert.Equal(t, Settings{"MaxValue": 10}, s.Merge(Settings{"MaxValue": 10}))
	})
}
