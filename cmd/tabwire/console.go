package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/entrhq/tabwire/pkg/channel"
	"github.com/entrhq/tabwire/pkg/plan"
	"github.com/entrhq/tabwire/pkg/slash"
	"github.com/entrhq/tabwire/pkg/tools"
	"github.com/entrhq/tabwire/pkg/types"
)

// Client is the part of the channel manager the console drives.
type Client interface {
	Connect(ctx context.Context) error
	Disconnect()
	Status() channel.Status
	EnableAutoConnect(ctx context.Context) error
	DisableAutoConnect() error
	RunAgent(ctx context.Context, goal string, onProgress func(types.Progress)) (json.RawMessage, error)
	StopAgent(ctx context.Context) error
	GenerateScript(ctx context.Context, req types.ScriptRequest, onProgress func(types.Progress)) (json.RawMessage, error)
	GetStats(ctx context.Context) (map[string]any, error)
	ClearHistory(ctx context.Context) error
}

// newCatalog lists the console commands. Tool actions are the lower-cased
// action types of every registered tool.
func newCatalog(reg *tools.Registry) slash.Catalog {
	toolActions := make(map[string]string)
	for _, t := range reg.List() {
		toolActions[strings.ToLower(string(t.Action()))] = t.Description()
	}
	return slash.Catalog{
		"agent": {
			Description: "Drive the server-side agent",
			Actions: map[string]string{
				"run":    "Run the agent on a goal: /agent-run <goal>",
				"stop":   "Stop the running agent",
				"stats":  "Show server statistics",
				"clear":  "Clear the agent conversation history",
				"script": "Generate an action plan for a goal: /agent-script <goal>",
			},
		},
		"channel": {
			Description: "Manage the server connection",
			Actions: map[string]string{
				"connect":     "Connect to the server",
				"disconnect":  "Disconnect and stay disconnected",
				"status":      "Show the connection status",
				"autoconnect": "Toggle the auto-connect monitor: /channel-autoconnect on|off",
			},
		},
		"tool": {
			Description: "Run a browser tool locally: /tool-<action> {params}",
			Actions:     toolActions,
		},
		"plan": {
			Description: "Run action plans",
			Actions: map[string]string{
				"run": "Run a plan file, or the last generated plan: /plan-run [path]",
			},
		},
	}
}

type console struct {
	client     Client
	dispatcher plan.Dispatcher
	runner     *plan.Runner
	catalog    slash.Catalog
	logger     *zap.Logger

	mu       sync.Mutex
	out      io.Writer
	lastPlan *plan.Plan

	runs sync.WaitGroup
}

var (
	okColor   = color.New(color.FgGreen)
	infoColor = color.New(color.FgCyan)
	warnColor = color.New(color.FgYellow)
	errColor  = color.New(color.FgRed, color.Bold)
	dimColor  = color.New(color.FgHiBlack)
)

func newConsole(client Client, d plan.Dispatcher, catalog slash.Catalog, out io.Writer, logger *zap.Logger) *console {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "console"))
	return &console{
		client:     client,
		dispatcher: d,
		runner:     plan.NewRunner(d, logger),
		catalog:    catalog,
		logger:     logger,
		out:        out,
	}
}

// Run reads commands from in until EOF, "/quit" or ctx is done. At EOF it waits
// for agent runs started from the console; otherwise they are cancelled first.
func (c *console) Run(ctx context.Context, in io.Reader) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer c.runs.Wait()
	defer cancel()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-runCtx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	c.prompt()
	for {
		select {
		case <-runCtx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				c.runs.Wait()
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if !c.handle(runCtx, line) {
				return nil
			}
			c.prompt()
		}
	}
}

func (c *console) prompt() {
	c.printf(dimColor, "tabwire> ")
}

func (c *console) printf(col *color.Color, format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = col.Fprintf(c.out, format, args...)
}

func (c *console) println(col *color.Color, format string, args ...any) {
	c.printf(col, format+"\n", args...)
}

func (c *console) printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		c.println(errColor, "cannot display result: %v", err)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintln(c.out, string(data))
}

// handle executes one input line. It returns false when the console should exit.
func (c *console) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	switch strings.ToLower(line) {
	case "":
		return true
	case "/quit", "/exit":
		return false
	case "/help":
		c.help()
		return true
	}

	res, ok := slash.Resolve(line, c.catalog)
	if !ok {
		// Plain text is a goal for the agent.
		c.runAgent(ctx, line)
		return true
	}

	switch res.Stage {
	case slash.StageAgentSelect:
		c.listAgents(res.Agents)
	case slash.StageAgentPartial:
		if len(res.Agents) == 0 {
			c.println(errColor, "unknown command /%s, try /help", res.Query)
			return true
		}
		c.listAgents(res.Agents)
	case slash.StageUnknownAgent:
		c.println(errColor, "unknown command group %q", res.Agent)
		c.listAgents(res.Agents)
	case slash.StageActionSelect, slash.StageActionPartial:
		if len(res.Actions) == 0 {
			c.println(errColor, "no %s command matches %q", res.Agent, res.Query)
			return true
		}
		c.listActions(res.Agent, res.Actions)
	case slash.StageComplete:
		c.execute(ctx, res)
	}
	return true
}

func (c *console) help() {
	c.println(infoColor, "Commands:")
	for _, agent := range sortedKeys(c.catalog) {
		c.println(okColor, "  %s", agent)
		c.println(dimColor, "    %s", c.catalog[agent].Description)
	}
	c.println(dimColor, "Type /<group>- to list a group's commands. Plain text runs the agent. /quit exits.")
}

func (c *console) listAgents(agents []string) {
	for _, a := range agents {
		c.println(okColor, "  /%s-", a)
		c.println(dimColor, "    %s", c.catalog[a].Description)
	}
}

func (c *console) listActions(agent string, actions []string) {
	for _, a := range actions {
		c.println(okColor, "  /%s-%s", agent, a)
		c.println(dimColor, "    %s", c.catalog[agent].Actions[a])
	}
}

func (c *console) execute(ctx context.Context, res slash.Resolution) {
	switch res.Agent {
	case "agent":
		c.executeAgent(ctx, res.Action, res.Arg)
	case "channel":
		c.executeChannel(ctx, res.Action, res.Arg)
	case "tool":
		c.executeTool(ctx, types.ActionType(strings.ToUpper(res.Action)), res.Arg)
	case "plan":
		c.executePlan(ctx, res.Arg)
	}
}

func (c *console) executeAgent(ctx context.Context, action, arg string) {
	switch action {
	case "run":
		c.runAgent(ctx, arg)
	case "stop":
		if err := c.client.StopAgent(ctx); err != nil {
			c.println(errColor, "stop failed: %v", err)
			return
		}
		c.println(okColor, "agent stopped")
	case "stats":
		stats, err := c.client.GetStats(ctx)
		if err != nil {
			c.println(errColor, "stats failed: %v", err)
			return
		}
		c.printJSON(stats)
	case "clear":
		if err := c.client.ClearHistory(ctx); err != nil {
			c.println(errColor, "clear failed: %v", err)
			return
		}
		c.println(okColor, "history cleared")
	case "script":
		c.generateScript(ctx, arg)
	}
}

// runAgent runs in the background so the operator can still stop it.
func (c *console) runAgent(ctx context.Context, goal string) {
	if strings.TrimSpace(goal) == "" {
		c.println(errColor, "usage: /agent-run <goal>")
		return
	}
	c.runs.Add(1)
	go func() {
		defer c.runs.Done()
		c.println(infoColor, "agent started: %s", goal)
		result, err := c.client.RunAgent(ctx, goal, c.progress)
		switch {
		case errors.Is(err, channel.ErrAgentStopped):
			c.println(warnColor, "agent stopped before finishing")
		case err != nil:
			c.println(errColor, "agent failed: %v", err)
		default:
			c.println(okColor, "agent finished")
			c.printRaw(result)
		}
		c.prompt()
	}()
}

func (c *console) progress(p types.Progress) {
	switch {
	case p.Status != "" && p.Message != "":
		c.println(dimColor, "  [%s] %s", p.Status, p.Message)
	case p.Message != "":
		c.println(dimColor, "  %s", p.Message)
	case p.Status != "":
		c.println(dimColor, "  [%s]", p.Status)
	}
}

func (c *console) printRaw(raw json.RawMessage) {
	if len(raw) == 0 {
		return
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		c.println(dimColor, "%s", raw)
		return
	}
	c.printJSON(v)
}

// generateScript asks the server for a plan. A result that parses as a plan is
// kept for /plan-run.
func (c *console) generateScript(ctx context.Context, goal string) {
	if strings.TrimSpace(goal) == "" {
		c.println(errColor, "usage: /agent-script <goal>")
		return
	}
	req := types.ScriptRequest{Goal: goal}
	if env := c.dispatcher.Dispatch(ctx, types.ActionDescriptor{
		RequestID:  "console-page-info",
		ActionType: types.ActionGetPageInfo,
		Params:     types.Params{},
	}); env.Success {
		req.TargetURL = pageURL(env.Data)
	}

	result, err := c.client.GenerateScript(ctx, req, c.progress)
	if err != nil {
		c.println(errColor, "script generation failed: %v", err)
		return
	}
	c.printRaw(result)

	p, err := plan.Parse(extractPlan(result))
	if err != nil || len(p.Actions) == 0 {
		return
	}
	if p.Name == "" {
		p.Name = goal
	}
	c.mu.Lock()
	c.lastPlan = p
	c.mu.Unlock()
	c.println(okColor, "plan with %d actions ready, run it with /plan-run", len(p.Actions))
}

// extractPlan accepts either a bare plan or one wrapped as {"action_plan": ...}.
// The JSON is compacted since YAML rejects tab indentation.
func extractPlan(raw json.RawMessage) []byte {
	var wrapped struct {
		ActionPlan json.RawMessage `json:"action_plan"`
	}
	data := []byte(raw)
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.ActionPlan) > 0 {
		data = wrapped.ActionPlan
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return data
	}
	return buf.Bytes()
}

func pageURL(data any) string {
	raw, ok := data.(json.RawMessage)
	if !ok {
		return ""
	}
	var info struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &info); err != nil {
		return ""
	}
	return info.URL
}

func (c *console) executeChannel(ctx context.Context, action, arg string) {
	switch action {
	case "connect":
		if err := c.client.Connect(ctx); err != nil {
			c.println(errColor, "connect failed: %v", err)
			return
		}
		c.println(okColor, "connected")
	case "disconnect":
		c.client.Disconnect()
		c.println(warnColor, "disconnected")
	case "status":
		c.printStatus(c.client.Status())
	case "autoconnect":
		var err error
		switch strings.ToLower(arg) {
		case "on", "true", "enable":
			err = c.client.EnableAutoConnect(ctx)
		case "off", "false", "disable":
			err = c.client.DisableAutoConnect()
		default:
			c.println(errColor, "usage: /channel-autoconnect on|off")
			return
		}
		if err != nil {
			c.println(errColor, "autoconnect failed: %v", err)
			return
		}
		c.println(okColor, "auto-connect %s", strings.ToLower(arg))
	}
}

func (c *console) printStatus(s channel.Status) {
	col := warnColor
	if s.Connected {
		col = okColor
	}
	c.println(col, "state: %s", s.State)
	c.println(dimColor, "  auto-connect: %t  attempts: %d  pending: %d  agent running: %t",
		s.AutoConnect, s.Attempts, s.Pending, s.AgentRunning)
	if s.LastError != "" {
		c.println(errColor, "  last error: %s", s.LastError)
	}
}

func (c *console) executeTool(ctx context.Context, action types.ActionType, arg string) {
	params := types.Params{}
	if strings.TrimSpace(arg) != "" {
		if err := yaml.Unmarshal([]byte(arg), &params); err != nil {
			c.println(errColor, "invalid params: %v", err)
			return
		}
	}
	env := c.dispatcher.Dispatch(ctx, types.ActionDescriptor{
		RequestID:  "console-" + strings.ToLower(string(action)),
		ActionType: action,
		Params:     params,
	})
	if !env.Success {
		c.println(errColor, "%s failed: %s", action, env.Error)
		return
	}
	c.println(okColor, "%s ok", action)
	if raw, ok := env.Data.(json.RawMessage); ok {
		c.printRaw(raw)
	} else if env.Data != nil {
		c.printJSON(env.Data)
	}
}

func (c *console) executePlan(ctx context.Context, path string) {
	var p *plan.Plan
	if path == "" {
		c.mu.Lock()
		p = c.lastPlan
		c.mu.Unlock()
		if p == nil {
			c.println(errColor, "no action plan provided: generate one with /agent-script or pass a file")
			return
		}
	} else {
		loaded, err := plan.Load(path)
		if err != nil {
			c.println(errColor, "%v", err)
			return
		}
		p = loaded
	}

	summary := c.runner.Run(ctx, p, func(r plan.StepResult) {
		if r.Success {
			c.println(okColor, "  %d. %s ok", r.Index, r.Action)
			return
		}
		c.println(errColor, "  %d. %s failed: %s", r.Index, r.Action, r.Error)
	})
	col := okColor
	if !summary.Success {
		col = warnColor
	}
	c.println(col, "%s", summary.Message)
}

func sortedKeys(c slash.Catalog) []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
