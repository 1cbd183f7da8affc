// Package browser implements the browser tools: one tools.Tool per action type in
// the vocabulary, each running against a browser.Host.
//
// # Direct and injected tools
//
// Direct tools call the host API (tabs, navigation, cookies, capture). Injected tools
// run one embedded page function from package scripts inside the target tab; their
// arguments and results cross a JSON boundary and an exception thrown in the page
// becomes the tool's error message verbatim.
//
// # Waiting
//
// Navigation tools wait for the tab's load event but never longer than a fixed
// fallback (Options.NavigationTimeout, Options.ReloadTimeout); hitting the fallback is
// not an error. WAIT_FOR_ELEMENT polls the element state every Options.PollInterval
// until its condition holds or its timeout elapses.
//
// # Policy
//
// URLs opened by OPEN_TAB and NAVIGATE are checked against Options.Policy, and
// EXECUTE_SCRIPT is refused unless Options.AllowCustomScripts is set. GET_COOKIES
// only returns authentication-looking cookies, capped and truncated.
package browser
