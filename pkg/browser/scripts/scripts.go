// Package scripts holds the page functions executed inside a tab.
//
// Each script is a single JavaScript function expression taking one JSON argument and
// returning a JSON-serializable value. Scripts must be self-contained: they capture
// nothing from the Go side except the argument they are called with.
package scripts

import (
	"embed"
	"fmt"
	"strings"
)

//go:embed js/*.js
var files embed.FS

// Script is a named page function.
type Script struct {
	Name   string
	Source string
}

// Names of the embedded scripts.
const (
	NamePageInfo          = "page_info"
	NameExtractDOM        = "extract_dom"
	NameClick             = "click"
	NameTypeText          = "type_text"
	NameFillForm          = "fill_form"
	NameSelectDropdown    = "select_dropdown"
	NameElementState      = "element_state"
	NameScroll            = "scroll"
	NameElementText       = "element_text"
	NameElementAttributes = "element_attributes"
	NameLocalStorageGet   = "local_storage_get"
	NameLocalStorageSet   = "local_storage_set"
	NameHover             = "hover"
	NameFindElements      = "find_elements"
	NamePageHTML          = "page_html"
	NameCustom            = "custom"
)

var (
	PageInfo          = mustLoad(NamePageInfo)
	ExtractDOM        = mustLoad(NameExtractDOM)
	Click             = mustLoad(NameClick)
	TypeText          = mustLoad(NameTypeText)
	FillForm          = mustLoad(NameFillForm)
	SelectDropdown    = mustLoad(NameSelectDropdown)
	ElementState      = mustLoad(NameElementState)
	Scroll            = mustLoad(NameScroll)
	ElementText       = mustLoad(NameElementText)
	ElementAttributes = mustLoad(NameElementAttributes)
	LocalStorageGet   = mustLoad(NameLocalStorageGet)
	LocalStorageSet   = mustLoad(NameLocalStorageSet)
	Hover             = mustLoad(NameHover)
	FindElements      = mustLoad(NameFindElements)
	PageHTML          = mustLoad(NamePageHTML)
)

func mustLoad(name string) Script {
	raw, err := files.ReadFile("js/" + name + ".js")
	if err != nil {
		panic(fmt.Sprintf("scripts: missing embedded script %s: %v", name, err))
	}
	return Script{Name: name, Source: strings.TrimSpace(string(raw))}
}

// Custom wraps a caller-supplied function body. The body sees its argument as `args`
// and may use await.
func Custom(body string) Script {
	return Script{
		Name:   NameCustom,
		Source: "async (args) => {\n" + body + "\n}",
	}
}

// Wrap turns a script into a page expression that never throws: it resolves to
// {ok: true, value} or {ok: false, error}.
func Wrap(s Script) string {
	return `async (arg) => {
  try {
    const value = await (` + s.Source + `)(arg);
    return { ok: true, value: value === undefined ? null : value };
  } catch (e) {
    return { ok: false, error: String((e && e.message) || e) };
  }
}`
}
