// Package slash parses operator commands of the form "/agent-action args" and
// resolves them against a catalog, reporting how far the input got so a console
// can offer completions.
package slash

import (
	"sort"
	"strings"
)

// Command is a parsed slash command.
type Command struct {
	Name string // text between "/" and the first whitespace
	Arg  string // the rest, trimmed
}

// Parse splits input into a command. It reports false when input is not a slash command.
func Parse(input string) (*Command, bool) {
	trimmed := strings.TrimSpace(input)
	if !strings.HasPrefix(trimmed, "/") {
		return nil, false
	}
	body := strings.TrimPrefix(trimmed, "/")
	name, arg, _ := strings.Cut(body, " ")
	return &Command{Name: strings.TrimSpace(name), Arg: strings.TrimSpace(arg)}, true
}

// ShouldIntercept reports whether input should be handled as a command rather
// than passed through.
func ShouldIntercept(input string) bool {
	_, ok := Parse(input)
	return ok
}

// Agent is one command group in a catalog.
type Agent struct {
	Description string
	// Actions maps an action name to its description.
	Actions map[string]string
}

// Catalog maps agent names to their actions. Names are lower case.
type Catalog map[string]Agent

func (c Catalog) agents() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c Catalog) actions(agent string) []string {
	actions := c[agent].Actions
	names := make([]string, 0, len(actions))
	for name := range actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stage is how far an input resolved.
type Stage string

const (
	StageAgentSelect   Stage = "agent_select"   // "/" alone: pick an agent
	StageAgentPartial  Stage = "agent_partial"  // prefix of one or more agents
	StageUnknownAgent  Stage = "unknown_agent"  // "agent-..." with an agent that does not exist
	StageActionSelect  Stage = "action_select"  // a full agent name: pick an action
	StageActionPartial Stage = "action_partial" // a known agent with an action prefix
	StageComplete      Stage = "complete"       // agent and action both matched
)

// Resolution is the outcome of Resolve. Agents and Actions hold the candidates
// for the stages that offer a choice, sorted.
type Resolution struct {
	Stage   Stage
	Agent   string
	Action  string
	Query   string
	Agents  []string
	Actions []string
	Arg     string
}

// Resolve matches input against c. It reports false when input is not a slash
// command. Matching is case-insensitive and only the first word is the command
// key; the rest is returned as Arg.
func Resolve(input string, c Catalog) (Resolution, bool) {
	cmd, ok := Parse(input)
	if !ok {
		return Resolution{}, false
	}
	key := strings.ToLower(cmd.Name)
	arg := cmd.Arg

	if key == "" {
		return Resolution{Stage: StageAgentSelect, Agents: c.agents(), Arg: arg}, true
	}

	agent, action, hasDash := strings.Cut(key, "-")
	if !hasDash {
		if _, ok := c[key]; ok {
			return Resolution{Stage: StageActionSelect, Agent: key, Actions: c.actions(key), Arg: arg}, true
		}
		var candidates []string
		for _, name := range c.agents() {
			if strings.HasPrefix(name, key) {
				candidates = append(candidates, name)
			}
		}
		return Resolution{Stage: StageAgentPartial, Query: key, Agents: candidates, Arg: arg}, true
	}

	if _, ok := c[agent]; !ok {
		return Resolution{Stage: StageUnknownAgent, Agent: agent, Agents: c.agents(), Arg: arg}, true
	}
	if action == "" {
		return Resolution{Stage: StageActionSelect, Agent: agent, Actions: c.actions(agent), Arg: arg}, true
	}
	if _, ok := c[agent].Actions[action]; ok {
		return Resolution{Stage: StageComplete, Agent: agent, Action: action, Arg: arg}, true
	}

	var candidates []string
	for _, name := range c.actions(agent) {
		if strings.HasPrefix(name, action) {
			candidates = append(candidates, name)
		}
	}
	return Resolution{Stage: StageActionPartial, Agent: agent, Query: action, Actions: candidates, Arg: arg}, true
}
