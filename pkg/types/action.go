package types

import "sort"

// ActionType identifies one operation in the closed tool vocabulary.
type ActionType string

const (
	ActionOpenTab         ActionType = "OPEN_TAB"               // ActionOpenTab opens a new tab, optionally activating it.
	ActionCloseTab        ActionType = "CLOSE_TAB"              // ActionCloseTab closes the target tab.
	ActionSwitchTab       ActionType = "SWITCH_TAB"             // ActionSwitchTab activates a tab by id or direction.
	ActionNavigate        ActionType = "NAVIGATE"               // ActionNavigate loads a URL in the target tab.
	ActionReloadTab       ActionType = "RELOAD_TAB"             // ActionReloadTab reloads the target tab.
	ActionDuplicateTab    ActionType = "DUPLICATE_TAB"          // ActionDuplicateTab opens a copy of the target tab.
	ActionGoBack          ActionType = "GO_BACK"                // ActionGoBack navigates back in history.
	ActionGoForward       ActionType = "GO_FORWARD"             // ActionGoForward navigates forward in history.
	ActionGetAllTabs      ActionType = "GET_ALL_TABS"           // ActionGetAllTabs lists every open tab.
	ActionScreenshot      ActionType = "SCREENSHOT"             // ActionScreenshot captures the visible viewport.
	ActionGetCookies      ActionType = "GET_COOKIES"            // ActionGetCookies reads (filtered) cookies.
	ActionSetCookie       ActionType = "SET_COOKIE"             // ActionSetCookie writes a cookie.
	ActionWait            ActionType = "WAIT"                   // ActionWait sleeps for a fixed time.
	ActionGetPageInfo     ActionType = "GET_PAGE_INFO"          // ActionGetPageInfo summarizes the page and its interactive elements.
	ActionExtractDOM      ActionType = "EXTRACT_DOM"            // ActionExtractDOM dumps the DOM tree up to a depth.
	ActionGetPageContent  ActionType = "GET_PAGE_CONTENT"       // ActionGetPageContent returns cleaned page HTML.
	ActionClick           ActionType = "CLICK"                  // ActionClick clicks an element.
	ActionTypeText        ActionType = "TYPE"                   // ActionTypeText injects text into an input or content-editable element.
	ActionFillForm        ActionType = "FILL_FORM"              // ActionFillForm fills several fields and optionally submits.
	ActionSelectDropdown  ActionType = "SELECT_DROPDOWN"        // ActionSelectDropdown picks an option in a select element.
	ActionWaitForElement  ActionType = "WAIT_FOR_ELEMENT"       // ActionWaitForElement polls until an element matches a condition.
	ActionScroll          ActionType = "SCROLL"                 // ActionScroll scrolls the page or to an element.
	ActionGetElementText  ActionType = "GET_ELEMENT_TEXT"       // ActionGetElementText reads text or one attribute.
	ActionGetElementAttrs ActionType = "GET_ELEMENT_ATTRIBUTES" // ActionGetElementAttrs reads every attribute of an element.
	ActionExecuteScript   ActionType = "EXECUTE_SCRIPT"         // ActionExecuteScript runs caller-supplied page code.
	ActionGetLocalStorage ActionType = "GET_LOCAL_STORAGE"      // ActionGetLocalStorage reads localStorage.
	ActionSetLocalStorage ActionType = "SET_LOCAL_STORAGE"      // ActionSetLocalStorage writes one localStorage key.
	ActionHover           ActionType = "HOVER"                  // ActionHover dispatches a synthetic mouseover.
	ActionFindElements    ActionType = "FIND_ELEMENTS"          // ActionFindElements searches for elements with a result cap.
)

var vocabulary = map[ActionType]struct{}{
	ActionOpenTab: {}, ActionCloseTab: {}, ActionSwitchTab: {}, ActionNavigate: {},
	ActionReloadTab: {}, ActionDuplicateTab: {}, ActionGoBack: {}, ActionGoForward: {},
	ActionGetAllTabs: {}, ActionScreenshot: {}, ActionGetCookies: {}, ActionSetCookie: {},
	ActionWait: {}, ActionGetPageInfo: {}, ActionExtractDOM: {}, ActionGetPageContent: {},
	ActionClick: {}, ActionTypeText: {}, ActionFillForm: {}, ActionSelectDropdown: {},
	ActionWaitForElement: {}, ActionScroll: {}, ActionGetElementText: {}, ActionGetElementAttrs: {},
	ActionExecuteScript: {}, ActionGetLocalStorage: {}, ActionSetLocalStorage: {}, ActionHover: {},
	ActionFindElements: {},
}

// Known reports whether a is part of the vocabulary.
func (a ActionType) Known() bool {
	_, ok := vocabulary[a]
	return ok
}

// String returns the wire name of the action.
func (a ActionType) String() string {
	return string(a)
}

// Vocabulary returns every action type, sorted by name.
func Vocabulary() []ActionType {
	out := make([]ActionType, 0, len(vocabulary))
	for a := range vocabulary {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ActionDescriptor is a single tool call issued by the remote peer.
// It is treated as immutable once dispatched.
type ActionDescriptor struct {
	RequestID  string     `json:"tool_id" yaml:"-"`
	ActionType ActionType `json:"action_type" yaml:"type"`
	Params     Params     `json:"params" yaml:"params"`
}

// TargetHandle is the tab (and window) an action resolved to.
// It is only valid for the duration of one dispatch.
type TargetHandle struct {
	TabID    int `json:"tab_id"`
	WindowID int `json:"window_id,omitempty"`
}
