package command

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultLocale is consulted when a guild locale has no alias for a name.
const DefaultLocale = "en"

// ParseAliases decodes a YAML alias table of the form
//
//	play:
//	  en: [play, p]
//	  ru: [играть]
//
// into command key -> locale -> names.
func ParseAliases(data []byte) (map[string]map[string][]string, error) {
	var aliases map[string]map[string][]string
	if err := yaml.Unmarshal(data, &aliases); err != nil {
		return nil, fmt.Errorf("failed to parse command aliases: %w", err)
	}
	return aliases, nil
}

// Holder keeps registered commands ordered by priority and resolves
// localized names to them.
type Holder struct {
	mu       sync.RWMutex
	commands []*Command
	byKey    map[string]*Command
	byLocale map[string]map[string]*Command // locale -> lower-cased name -> command
}

// NewHolder creates an empty Holder.
func NewHolder() *Holder {
	return &Holder{
		byKey:    make(map[string]*Command),
		byLocale: make(map[string]map[string]*Command),
	}
}

// Register adds cmd. Keys are unique.
func (h *Holder) Register(cmd *Command) error {
	if cmd == nil || cmd.Key == "" || cmd.Handler == nil {
		return ErrInvalidCommand
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	key := strings.ToLower(cmd.Key)
	if _, ok := h.byKey[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateCommand, cmd.Key)
	}
	h.byKey[key] = cmd

	for locale, names := range cmd.Aliases {
		index, ok := h.byLocale[locale]
		if !ok {
			index = make(map[string]*Command)
			h.byLocale[locale] = index
		}
		for _, name := range names {
			index[strings.ToLower(name)] = cmd
		}
	}

	pos, _ := slices.BinarySearchFunc(h.commands, cmd, compareCommands)
	h.commands = slices.Insert(h.commands, pos, cmd)
	return nil
}

// Lookup resolves name in locale, then in DefaultLocale, then as a raw key.
// Comparison is case-insensitive.
func (h *Holder) Lookup(name, locale string) (*Command, bool) {
	name = strings.ToLower(name)

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, l := range []string{locale, DefaultLocale} {
		if cmd, ok := h.byLocale[l][name]; ok {
			return cmd, true
		}
	}
	cmd, ok := h.byKey[name]
	return cmd, ok
}

// Get returns the command registered under key.
func (h *Holder) Get(key string) (*Command, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	cmd, ok := h.byKey[strings.ToLower(key)]
	return cmd, ok
}

// Commands returns all commands, lowest priority value first.
func (h *Holder) Commands() []*Command {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.commands)
}

func compareCommands(a, b *Command) int {
	if a.Priority != b.Priority {
		return a.Priority - b.Priority
	}
	return strings.Compare(a.Key, b.Key)
}
