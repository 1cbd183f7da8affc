package browser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/tabwire/pkg/browser/browsertest"
	"github.com/entrhq/tabwire/pkg/tools"
	"github.com/entrhq/tabwire/pkg/types"
)

func toolsCall(params types.Params) tools.Call {
	return tools.Call{Params: params}
}

func TestWaitForElement_Timeout(t *testing.T) {
	f := newFixture(t)

	start := time.Now()
	_, err := f.run(t, types.ActionWaitForElement, types.Params{"selector": "#late", "timeout": float64(500)})
	elapsed := time.Since(start)

	assert.EqualError(t, err, "Timeout waiting for #late to be visible")
	assert.GreaterOrEqual(t, elapsed, 500*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)
}

func TestWaitForElement_Appears(t *testing.T) {
	f := newFixture(t)
	time.AfterFunc(50*time.Millisecond, func() {
		f.host.Update(f.tabID, func(p *browsertest.Page) {
			p.Elements = append(p.Elements, &browsertest.Element{Tag: "div", ID: "late"})
		})
	})

	res, err := f.run(t, types.ActionWaitForElement, types.Params{"selector": "#late", "timeout": float64(2000)})
	require.NoError(t, err)
	assert.Equal(t, "Element #late is visible", res.(Message).Message)
}

func TestWaitForElement_Conditions(t *testing.T) {
	tests := []struct {
		name      string
		selector  string
		condition string
		wantErr   bool
	}{
		{name: "visible element exists", selector: "#go", condition: "exists"},
		{name: "visible element visible", selector: "#go", condition: "visible"},
		{name: "visible element hidden", selector: "#go", condition: "hidden", wantErr: true},
		{name: "hidden element exists", selector: "a.hidden-link", condition: "exists"},
		{name: "hidden element visible", selector: "a.hidden-link", condition: "visible", wantErr: true},
		{name: "hidden element hidden", selector: "a.hidden-link", condition: "hidden"},
		{name: "missing element hidden", selector: "#missing", condition: "hidden"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.host.Update(f.tabID, func(p *browsertest.Page) {
				p.Elements = append(p.Elements, &browsertest.Element{Selector: "a.hidden-link", Tag: "a", Hidden: true})
			})

			_, err := f.run(t, types.ActionWaitForElement, types.Params{
				"selector":  tt.selector,
				"condition": tt.condition,
				"timeout":   float64(50),
			})
			if tt.wantErr {
				assert.EqualError(t, err, "Timeout waiting for "+tt.selector+" to be "+tt.condition)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWaitForElement_InvalidCondition(t *testing.T) {
	f := newFixture(t)
	_, err := f.run(t, types.ActionWaitForElement, types.Params{"selector": "#go", "condition": "shiny"})
	assert.ErrorContains(t, err, "invalid condition")
}

func TestWaitForElement_DefaultTimeout(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.ElementWaitTimeout = 30 * time.Millisecond })
	_, err := f.run(t, types.ActionWaitForElement, types.Params{"selector": "#never"})
	assert.EqualError(t, err, "Timeout waiting for #never to be visible")
}
