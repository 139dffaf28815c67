package gateway

import (
	"fmt"
	"sort"

	"github.com/cloudbox/sysgate"
)

const (
	methodListMethods     = "system.listMethods"
	methodMethodHelp      = "system.methodHelp"
	methodMethodSignature = "system.methodSignature"
)

type systemMethod func(params []any) (any, error)

func (s *Server) systemMethods() map[string]systemMethod {
	return map[string]systemMethod{
		methodListMethods:     s.listMethods,
		methodMethodHelp:      s.methodHelp,
		methodMethodSignature: s.methodSignature,
	}
}

var systemHelp = map[string]string{
	methodListMethods:     "Return the names of every method the server answers.",
	methodMethodHelp:      "Return the documentation string of a method.",
	methodMethodSignature: "Return the signatures of a method as [[return, params...]].",
}

var systemSignatures = map[string][]string{
	methodListMethods:     {"array"},
	methodMethodHelp:      {"string", "string"},
	methodMethodSignature: {"array", "string"},
}

func (s *Server) listMethods(params []any) (any, error) {
	if len(params) != 0 {
		return nil, errInvalidParams(methodListMethods, 0, len(params))
	}

	methods := s.resolver.Methods()
	for name := range s.system {
		methods = append(methods, name)
	}
	sort.Strings(methods)

	return methods, nil
}

func (s *Server) methodHelp(params []any) (any, error) {
	name, err := nameParam(methodMethodHelp, params)
	if err != nil {
		return nil, err
	}

	if help, ok := systemHelp[name]; ok {
		return help, nil
	}

	return s.resolver.Help(name)
}

func (s *Server) methodSignature(params []any) (any, error) {
	name, err := nameParam(methodMethodSignature, params)
	if err != nil {
		return nil, err
	}

	if sig, ok := systemSignatures[name]; ok {
		return []any{sig}, nil
	}

	if _, err := s.resolver.Resolve(name); err != nil {
		return nil, err
	}

	// every resolved method takes no params and returns a string
	return []any{[]string{"string"}}, nil
}

func nameParam(method string, params []any) (string, error) {
	if len(params) != 1 {
		return "", errInvalidParams(method, 1, len(params))
	}

	name, ok := params[0].(string)
	if !ok {
		return "", fmt.Errorf("%s: expected string, got %T: %w", method, params[0], sysgate.ErrInvalidParams)
	}

	return name, nil
}

func errInvalidParams(method string, want, got int) error {
	return fmt.Errorf("%s takes %d params, got %d: %w", method, want, got, sysgate.ErrInvalidParams)
}
