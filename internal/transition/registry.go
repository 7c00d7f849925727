package transition

import (
	"fmt"
	"strings"
)

// UnknownStrategyError is returned for a strategy name that is not registered.
type UnknownStrategyError struct {
	Name string
}

func (e *UnknownStrategyError) Error() string {
	return fmt.Sprintf("unknown strategy %q (available: %s)", e.Name, strings.Join(Names(), ", "))
}

var order = []string{Crossfade, BeatSync, EchoFade, Harmonic}

var registry = map[string]func(Options) Strategy{
	Crossfade: func(o Options) Strategy { return &crossfade{opts: o} },
	BeatSync:  func(o Options) Strategy { return &beatSync{opts: o} },
	EchoFade:  func(o Options) Strategy { return &echoFade{opts: o} },
	Harmonic:  func(o Options) Strategy { return &harmonic{opts: o} },
}

// New looks up a strategy by name, case-insensitively.
func New(name string, opts Options) (Strategy, error) {
	build, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, &UnknownStrategyError{Name: name}
	}
	return build(opts), nil
}

// Valid reports whether name is a registered strategy.
func Valid(name string) bool {
	_, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Names lists registered strategies in a stable order.
func Names() []string {
	return append([]string(nil), order...)
}

// Info describes a registered strategy.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Catalogue describes every registered strategy.
func Catalogue() []Info {
	infos := make([]Info, 0, len(order))
	for _, name := range order {
		s := registry[name](DefaultOptions())
		infos = append(infos, Info{Name: s.Name(), Description: s.Description()})
	}
	return infos
}
