// Package resolver maps XML-RPC method names onto provider reads.
//
// Resolution is structural: any name of the form get<Group> resolves to a
// read of the lower-cased group, so groups added to the collector become
// callable without registering them here.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/oriser/regroup"

	"github.com/cloudbox/sysgate"
)

const (
	getterPrefix = "get"

	methodInit   = "init"
	methodGetAll = "getAll"
)

// Method performs one resolved call and returns its JSON payload.
type Method func(ctx context.Context) (string, error)

// Provider is the read side of the stats provider.
type Provider interface {
	Read(ctx context.Context, group string) (string, error)
	ReadAll(ctx context.Context) (string, error)
	Has(group string) bool
	Groups() []string
}

type Config struct {
	Provider Provider
	Aliases  []sysgate.Alias
	Version  string
}

type Resolver struct {
	provider Provider
	rewrite  sysgate.Rewriter
	getter   *regroup.ReGroup
	version  string
}

type getterName struct {
	Noun string `regroup:"Noun"`
}

func New(c Config) (*Resolver, error) {
	if c.Provider == nil {
		return nil, fmt.Errorf("no provider: %w", sysgate.ErrFatal)
	}

	rewriter, err := sysgate.NewRewriter(c.Aliases)
	if err != nil {
		return nil, fmt.Errorf("aliases: %w", err)
	}

	getter, err := regroup.Compile(`^` + getterPrefix + `(?P<Noun>[A-Z][A-Za-z0-9]*)$`)
	if err != nil {
		return nil, fmt.Errorf("regexp: %w", err)
	}

	return &Resolver{
		provider: c.Provider,
		rewrite:  rewriter,
		getter:   getter,
		version:  c.Version,
	}, nil
}

// Resolve returns the Method for name, or ErrMethodNotFound.
func (r *Resolver) Resolve(name string) (Method, error) {
	name = r.rewrite(name)

	switch name {
	case methodInit:
		version := r.version
		return func(context.Context) (string, error) { return version, nil }, nil
	case methodGetAll:
		return r.provider.ReadAll, nil
	}

	group, ok := r.group(name)
	if !ok || !r.provider.Has(group) {
		return nil, fmt.Errorf("%s: %w", name, sysgate.ErrMethodNotFound)
	}

	return func(ctx context.Context) (string, error) {
		return r.provider.Read(ctx, group)
	}, nil
}

func (r *Resolver) group(name string) (string, bool) {
	target := new(getterName)
	if err := r.getter.MatchToTarget(name, target); err != nil {
		return "", false
	}

	return strings.ToLower(target.Noun), true
}

// Methods lists every resolvable method name.
func (r *Resolver) Methods() []string {
	groups := r.provider.Groups()

	methods := make([]string, 0, len(groups)+2)
	methods = append(methods, methodInit, methodGetAll)
	for _, group := range groups {
		methods = append(methods, MethodName(group))
	}

	return methods
}

// Help describes a resolvable method.
func (r *Resolver) Help(name string) (string, error) {
	name = r.rewrite(name)

	switch name {
	case methodInit:
		return "Return the server version.", nil
	case methodGetAll:
		return "Return every metric group as a JSON object string.", nil
	}

	group, ok := r.group(name)
	if !ok || !r.provider.Has(group) {
		return "", fmt.Errorf("%s: %w", name, sysgate.ErrMethodNotFound)
	}

	return fmt.Sprintf("Return the %s metric group as a JSON string.", group), nil
}

// MethodName returns the getter method exposing group, e.g. cpu -> getCpu.
func MethodName(group string) string {
	if group == "" {
		return getterPrefix
	}

	return getterPrefix + strings.ToUpper(group[:1]) + group[1:]
}
