package rules

import (
	"embed"
	"fmt"
	"github.com/antonmedv/expr"
	"github.com/antonmedv/expr/vm"
	"gopkg.in/yaml.v3"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
)

//go:embed default/*.yaml
var Embedded embed.FS

type Engine struct {
	RuleSets map[string]RuleSet
	Rules    []CompiledRule
}

func New() *Engine {
	return &Engine{RuleSets: map[string]RuleSet{}}
}

type Actions struct {
	// Remove lists commands which should not have a number created for them.
	Remove []string `yaml:"remove"`
	// Settings is keyed by command, the settings are passed to the numbers Enumerate.
	Settings map[string]Settings `yaml:"settings"`
}

type Rule struct {
	Description string  `yaml:"description"`
	Filter      string  `yaml:"filter"`
	Actions     Actions `yaml:"actions"`
	Children    []Rule  `yaml:"children"`
}

type CompiledRule struct {
	Description string
	Filter      *vm.Program
	Actions     Actions
	Children    []CompiledRule
}

type RuleSet struct {
	Name      string   `yaml:"name"`
	DependsOn []string `yaml:"depends_on"`
	Rules     []Rule   `yaml:"rules"`
}

type InputProductData struct {
	Name         string
	Manufacturer string
	Version      string
	Serial       string
}

type Input struct {
	Product  InputProductData
	Commands []string
}

type Output struct {
	Remove   map[string]bool
	Settings map[string]Settings
}

func (e *Engine) LoadString(s string) error {
	return e.LoadReader(strings.NewReader(s))
}

func (e *Engine) LoadReader(r io.Reader) error {
	var rs RuleSet

	if err := yaml.NewDecoder(r).Decode(&rs); err != nil {
		return fmt.Errorf("failed to decode ruleset: %w", err)
	}

	if len(rs.Name) == 0 {
		return fmt.Errorf("ruleset has no name")
	}

	if _, found := e.RuleSets[rs.Name]; found {
		return fmt.Errorf("ruleset already loaded: %s", rs.Name)
	}

	if e.RuleSets == nil {
		e.RuleSets = map[string]RuleSet{}
	}

	e.RuleSets[rs.Name] = rs
	return nil
}

// LoadFS loads every yaml file found within the file system.
func (e *Engine) LoadFS(f fs.FS) error {
	return fs.WalkDir(f, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		if ext := path.Ext(p); ext != ".yaml" && ext != ".yml" {
			return nil
		}

		file, err := f.Open(p)
		if err != nil {
			return fmt.Errorf("failed to open ruleset %s: %w", p, err)
		}
		defer file.Close()

		if err := e.LoadReader(file); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}

		return nil
	})
}

// CompileRules compiles all loaded rulesets, rulesets are ordered such that dependencies are executed first.
func (e *Engine) CompileRules() error {
	alreadyLoaded := map[string]bool{}
	e.Rules = nil

	for k := range e.RuleSets {
		alreadyLoaded[k] = false
	}

	for _, k := range sortedKeys(e.RuleSets) {
		if !alreadyLoaded[k] {
			if err := e.compileRuleSet(alreadyLoaded, []string{}, k); err != nil {
				return err
			}
		}
	}

	return nil
}

func (e *Engine) compileRuleSet(alreadyLoaded map[string]bool, trail []string, name string) error {
	rs, ok := e.RuleSets[name]
	if !ok {
		return fmt.Errorf("ruleset missing dependency: %s->%s", strings.Join(trail, "->"), name)
	}

	trail = append(trail, rs.Name)

	for _, k := range rs.DependsOn {
		for _, t := range trail {
			if k == t {
				return fmt.Errorf("ruleset circular dependency: %s->%s", strings.Join(trail, "->"), k)
			}
		}

		if !alreadyLoaded[k] {
			if err := e.compileRuleSet(alreadyLoaded, trail, k); err != nil {
				return err
			}
		}
	}

	if cr, err := compileRules(rs.Rules); err != nil {
		return fmt.Errorf("ruleset compilation: %s: %w", strings.Join(trail, "->"), err)
	} else {
		e.Rules = append(e.Rules, cr...)
	}

	alreadyLoaded[name] = true

	return nil
}

func compileRules(rules []Rule) ([]CompiledRule, error) {
	var compiledRules []CompiledRule

	for _, rule := range rules {
		cf, err := expr.Compile(rule.Filter, expr.Env(Input{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("filter compilation: %w", err)
		}

		if childCompiledRules, err := compileRules(rule.Children); err != nil {
			return nil, fmt.Errorf("%s: %w", rule.Description, err)
		} else {
			compiledRules = append(compiledRules, CompiledRule{
				Description: rule.Description,
				Filter:      cf,
				Actions:     rule.Actions,
				Children:    childCompiledRules,
			})
		}
	}

	return compiledRules, nil
}

// Execute runs all compiled rules against the input. A rules children are only evaluated if it matched, later
// matches override settings of earlier matches.
func (e *Engine) Execute(i Input) (Output, error) {
	o := Output{Remove: map[string]bool{}, Settings: map[string]Settings{}}

	if err := executeRules(e.Rules, i, &o); err != nil {
		return Output{}, err
	}

	return o, nil
}

func executeRules(rules []CompiledRule, i Input, o *Output) error {
	for _, r := range rules {
		result, err := expr.Run(r.Filter, i)
		if err != nil {
			return fmt.Errorf("failed to execute rule '%s': %w", r.Description, err)
		}

		if matched, ok := result.(bool); !ok || !matched {
			continue
		}

		for _, c := range r.Actions.Remove {
			o.Remove[c] = true
		}

		for c, s := range r.Actions.Settings {
			o.Settings[c] = o.Settings[c].Merge(s)
		}

		if err := executeRules(r.Children, i, o); err != nil {
			return fmt.Errorf("%s: %w", r.Description, err)
		}
	}

	return nil
}

func sortedKeys(m map[string]RuleSet) []string {
	var keys []string

	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)
	return keys
}
