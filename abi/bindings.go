package abi

import (
	"fmt"
	"go/format"
	"go/token"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	contractImport = "github.com/govm-net/contractkit/contract"
	coreImport     = "github.com/govm-net/contractkit/core"
)

// BindingOptions controls GenerateBindings.
type BindingOptions struct {
	// Package is the package clause of the generated file.
	Package string
	// Imports maps type qualifiers used in the metadata, such as "erc20",
	// to import paths. "core" is always known.
	Imports map[string]string
	// Raw skips gofmt, which is useful when debugging the generator.
	Raw bool
}

var qualifierRe = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\.`)

// exportedName turns a snake_case label into CamelCase.
func exportedName(label string) string {
	var sb strings.Builder
	title := cases.Title(language.English, cases.NoLower)
	for _, part := range strings.Split(label, "_") {
		sb.WriteString(title.String(part))
	}
	return sb.String()
}

// paramName turns a snake_case name into a local identifier.
func paramName(name string) string {
	n := exportedName(name)
	if n == "" {
		return "arg"
	}
	n = strings.ToLower(n[:1]) + n[1:]
	if token.IsKeyword(n) || n == "env" || n == "ref" || n == "transferred" {
		n += "_"
	}
	return n
}

type bindingGen struct {
	m       *Metadata
	opts    BindingOptions
	name    string
	imports map[string]string
	sb      strings.Builder
}

// GenerateBindings writes Go source for calling the contract described by m:
// its selectors, an input builder per entry and a <Contract>Ref type whose
// methods invoke the messages from another contract.
func GenerateBindings(m *Metadata, opts BindingOptions) ([]byte, error) {
	if opts.Package == "" {
		opts.Package = strings.ToLower(m.Contract) + "ref"
	}
	g := &bindingGen{
		m:       m,
		opts:    opts,
		name:    exportedName(m.Contract),
		imports: map[string]string{"contract": contractImport, "core": coreImport},
	}
	if err := g.resolveImports(); err != nil {
		return nil, err
	}

	g.header()
	g.selectors()
	for _, e := range m.Constructors {
		g.inputBuilder(e)
	}
	for _, e := range m.Messages {
		g.inputBuilder(e)
	}
	g.ref()

	code := []byte(g.sb.String())
	if opts.Raw {
		return code, nil
	}
	formatted, err := format.Source(code)
	if err != nil {
		return nil, fmt.Errorf("failed to format bindings: %w", err)
	}
	return formatted, nil
}

func (g *bindingGen) types() []string {
	var ts []string
	for _, list := range [][]Entry{g.m.Constructors, g.m.Messages} {
		for _, e := range list {
			for _, a := range e.Args {
				ts = append(ts, a.Type)
			}
			ts = append(ts, e.Returns)
		}
	}
	return ts
}

func (g *bindingGen) resolveImports() error {
	for q, path := range g.opts.Imports {
		g.imports[q] = path
	}
	used := map[string]bool{"contract": true, "core": true}
	for _, t := range g.types() {
		for _, match := range qualifierRe.FindAllStringSubmatch(t, -1) {
			q := match[1]
			if _, ok := g.imports[q]; !ok {
				return fmt.Errorf("type %s: no import for qualifier %q", t, q)
			}
			used[q] = true
		}
	}
	for q := range g.imports {
		if !used[q] {
			delete(g.imports, q)
		}
	}
	return nil
}

func (g *bindingGen) header() {
	g.sb.WriteString("// Code generated by contractctl. DO NOT EDIT.\n\n")
	g.sb.WriteString(fmt.Sprintf("package %s\n\n", g.opts.Package))

	quals := make([]string, 0, len(g.imports))
	for q := range g.imports {
		quals = append(quals, q)
	}
	sort.Slice(quals, func(i, j int) bool { return g.imports[quals[i]] < g.imports[quals[j]] })

	g.sb.WriteString("import (\n")
	for _, q := range quals {
		path := g.imports[q]
		if path[strings.LastIndex(path, "/")+1:] == q {
			g.sb.WriteString(fmt.Sprintf("\t%q\n", path))
		} else {
			g.sb.WriteString(fmt.Sprintf("\t%s %q\n", q, path))
		}
	}
	g.sb.WriteString(")\n\n")
}

// ident is the Go name of an entry, qualified by its trait when the plain
// label is taken by another entry.
func (g *bindingGen) ident(e Entry) string {
	n := exportedName(e.Label)
	if e.Trait == "" {
		return n
	}
	for _, list := range [][]Entry{g.m.Constructors, g.m.Messages} {
		for _, o := range list {
			if o.Label == e.Label && o.Trait != e.Trait {
				return exportedName(e.Trait) + n
			}
		}
	}
	return n
}

func (g *bindingGen) selectorName(e Entry) string {
	return fmt.Sprintf("%s%sSelector", g.name, g.ident(e))
}

func (g *bindingGen) selectors() {
	g.sb.WriteString(fmt.Sprintf("// Selectors of %s.\nvar (\n", g.m.Contract))
	for _, list := range [][]Entry{g.m.Constructors, g.m.Messages} {
		for _, e := range list {
			s := e.Selector
			g.sb.WriteString(fmt.Sprintf("\t%s = contract.Selector{0x%02x, 0x%02x, 0x%02x, 0x%02x}\n",
				g.selectorName(e), s[0], s[1], s[2], s[3]))
		}
	}
	g.sb.WriteString(")\n\n")
}

func (g *bindingGen) argsType(e Entry) string {
	return fmt.Sprintf("%s%sArgs", strings.ToLower(g.name[:1])+g.name[1:], g.ident(e))
}

// params writes "a T, b U" and returns the composite literal of the args
// struct.
func (g *bindingGen) params(e Entry) (string, string) {
	var decl, lit []string
	for _, a := range e.Args {
		p := paramName(a.Name)
		decl = append(decl, fmt.Sprintf("%s %s", p, a.Type))
		lit = append(lit, fmt.Sprintf("%s: %s", exportedName(a.Name), p))
	}
	return strings.Join(decl, ", "), fmt.Sprintf("%s{%s}", g.argsType(e), strings.Join(lit, ", "))
}

// inputBuilder writes the args struct of e and a function returning its
// call input.
func (g *bindingGen) inputBuilder(e Entry) {
	g.sb.WriteString(fmt.Sprintf("type %s struct {\n", g.argsType(e)))
	for _, a := range e.Args {
		g.sb.WriteString(fmt.Sprintf("\t%s %s\n", exportedName(a.Name), a.Type))
	}
	g.sb.WriteString("}\n\n")

	decl, lit := g.params(e)
	if e.Docs != "" {
		g.sb.WriteString(fmt.Sprintf("// %s%sInput encodes a call of %s. %s\n", g.name, g.ident(e), e.Label, e.Docs))
	}
	g.sb.WriteString(fmt.Sprintf("func %s%sInput(%s) ([]byte, error) {\n", g.name, g.ident(e), decl))
	g.sb.WriteString(fmt.Sprintf("\treturn contract.Input(%s, %s)\n}\n\n", g.selectorName(e), lit))
}

func (g *bindingGen) ref() {
	ref := g.name + "Ref"
	g.sb.WriteString(fmt.Sprintf("// %s calls a deployed %s from another contract.\n", ref, g.m.Contract))
	g.sb.WriteString(fmt.Sprintf("type %s struct {\n\tAddress core.AccountId\n}\n\n", ref))

	for _, e := range g.m.Messages {
		decl, lit := g.params(e)
		value := "core.Balance{}"
		if e.Payable {
			if decl != "" {
				decl += ", "
			}
			decl += "transferred core.Balance"
			value = "transferred"
		}
		if decl != "" {
			decl = ", " + decl
		}
		if e.Docs != "" {
			g.sb.WriteString(fmt.Sprintf("// %s calls %s. %s\n", g.ident(e), e.Label, e.Docs))
		}
		g.sb.WriteString(fmt.Sprintf("func (ref %s) %s(env contract.Env%s) (%s, error) {\n", ref, g.ident(e), decl, e.Returns))
		g.sb.WriteString(fmt.Sprintf("\treturn contract.Invoke[%s](env, ref.Address, %s, %s, %s)\n}\n\n",
			e.Returns, g.selectorName(e), lit, value))
	}
}
