package java

import (
	"strconv"
	"strings"

	"github.com/matzehuels/diagramgen/pkg/errors"
	"github.com/matzehuels/diagramgen/pkg/extract"
)

// Option keys understood by the extractor.
const (
	OptEdgerNames           = "edgerNames"
	OptEnableKeepNodeFilter = "enableKeepNodeFilter"
	OptDefaultKeepNode      = "defaultKeepNode"
	OptKeepNode             = "keepNode"
)

// Edger names.
const (
	EdgerControlFlow = "control-flow"
	EdgerAST         = "ast"
)

type options struct {
	controlFlow bool
	ast         bool

	filter      bool
	defaultKeep bool
	keepRules   []keepRule
}

type keepRule struct {
	nodeType string
	keep     bool
}

func parseOptions(cfg extract.Config) (options, error) {
	var o options

	for _, name := range strings.Split(cfg.Option(OptEdgerNames, EdgerControlFlow), ",") {
		switch strings.TrimSpace(name) {
		case EdgerControlFlow:
			o.controlFlow = true
		case EdgerAST:
			o.ast = true
		case "":
		default:
			return o, errors.New(errors.ErrCodeConfiguration, "unknown edger %q (must be %q or %q)", name, EdgerControlFlow, EdgerAST)
		}
	}
	if !o.controlFlow && !o.ast {
		return o, errors.New(errors.ErrCodeConfiguration, "%s selects no edgers", OptEdgerNames)
	}

	var err error
	if o.filter, err = parseBool(cfg, OptEnableKeepNodeFilter, false); err != nil {
		return o, err
	}
	if o.defaultKeep, err = parseBool(cfg, OptDefaultKeepNode, true); err != nil {
		return o, err
	}

	for _, tok := range strings.Fields(cfg.Option(OptKeepNode, "")) {
		switch tok[0] {
		case '-':
			o.keepRules = append(o.keepRules, keepRule{nodeType: tok[1:], keep: false})
		case '+':
			o.keepRules = append(o.keepRules, keepRule{nodeType: tok[1:], keep: true})
		default:
			o.keepRules = append(o.keepRules, keepRule{nodeType: tok, keep: true})
		}
	}
	return o, nil
}

func parseBool(cfg extract.Config, key string, def bool) (bool, error) {
	raw := cfg.Option(key, "")
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def, errors.Wrap(errors.ErrCodeConfiguration, err, "option %s", key)
	}
	return v, nil
}

// keeps reports whether a node of nodeType survives filtering. The last
// matching rule wins.
func (o options) keeps(nodeType string) bool {
	if !o.filter {
		return true
	}
	keep := o.defaultKeep
	for _, r := range o.keepRules {
		if r.nodeType == nodeType {
			keep = r.keep
		}
	}
	return keep
}
