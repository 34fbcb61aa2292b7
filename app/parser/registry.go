package parser

import (
	"fmt"
	"sort"
)

type Factory func(opts Options) Parser

// Registry maps a format kind to the parser that handles it.
type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// DefaultRegistry knows every agency format shipped with newswire.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, d := range dialects {
		r.Register(d.format, func(opts Options) Parser {
			return &XMLParser{dialect: d, encoding: opts.Encoding}
		})
	}
	r.Register(FormatMAP, func(opts Options) Parser {
		return &MAPParser{encoding: opts.Encoding}
	})
	r.Register(FormatMENA, func(opts Options) Parser {
		return &MENAParser{encoding: opts.Encoding}
	})
	return r
}

// Register adds or replaces the factory for format.
func (r *Registry) Register(format string, factory Factory) {
	if r.factories == nil {
		r.factories = map[string]Factory{}
	}
	r.factories[format] = factory
}

// Resolve builds the parser for format or fails when it is absent.
func (r *Registry) Resolve(format string, opts Options) (Parser, error) {
	if factory, ok := r.factories[format]; ok {
		return factory(opts), nil
	}
	return nil, fmt.Errorf("parser %s is not registered", format)
}

func (r *Registry) Formats() []string {
	formats := make([]string, 0, len(r.factories))
	for f := range r.factories {
		formats = append(formats, f)
	}
	sort.Strings(formats)
	return formats
}
