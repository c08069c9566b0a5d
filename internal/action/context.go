// internal/action/context.go
package action

import (
	"sort"
	"strings"

	"github.com/xkilldash9x/loopguard/api/schemas"
)

// Well-known context variables written by the prompt-generation action.
const (
	VarTaskComplete = "task_complete"
	VarPromptRisk   = "continuation_prompt_risk"
	DefaultVariable = "prompt"
)

// Context is the mutable state shared by the actions of one run. It is
// created fresh on every monitor start and owned by the monitor; actions must
// not keep a reference past their own Execute call.
type Context struct {
	vars              map[string]string
	shouldTerminate   bool
	terminationReason string
	pending           []schemas.Event
}

// NewContext returns an empty context.
func NewContext() *Context {
	return &Context{vars: make(map[string]string)}
}

// Set stores a variable, replacing any previous value.
func (c *Context) Set(key, value string) {
	c.vars[key] = value
}

// Get returns a variable's value.
func (c *Context) Get(key string) (string, bool) {
	v, ok := c.vars[key]
	return v, ok
}

// Vars returns a copy of the variable mapping.
func (c *Context) Vars() map[string]string {
	out := make(map[string]string, len(c.vars))
	for k, v := range c.vars {
		out[k] = v
	}
	return out
}

// Expand replaces every "$name" token with the value of variable name. Each
// variable is substituted once, longer names first so "$prompt_risk" is not
// clobbered by "$prompt"; substituted values are not expanded again.
func (c *Context) Expand(text string) string {
	if len(c.vars) == 0 || !strings.Contains(text, "$") {
		return text
	}
	keys := make([]string, 0, len(c.vars))
	for k := range c.vars {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "$"+k, c.vars[k])
	}
	// Replacer scans the input once, so values are never re-expanded.
	return strings.NewReplacer(pairs...).Replace(text)
}

// RequestTermination asks the monitor to stop after the current sequence.
func (c *Context) RequestTermination(reason string) {
	c.shouldTerminate = true
	c.terminationReason = reason
}

// TerminationRequested reports whether an action asked the monitor to stop.
func (c *Context) TerminationRequested() bool {
	return c.shouldTerminate
}

// TerminationReason returns the reason given with the termination request.
func (c *Context) TerminationReason() (string, bool) {
	return c.terminationReason, c.shouldTerminate && c.terminationReason != ""
}

// emit queues an event raised from inside an action. The sequence forwards
// queued events right after the action returns.
func (c *Context) emit(e schemas.Event) {
	c.pending = append(c.pending, e)
}

func (c *Context) takeEvents() []schemas.Event {
	out := c.pending
	c.pending = nil
	return out
}
