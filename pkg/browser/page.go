package browser

import "context"

// Element is a handle to a single DOM node.
//
// Handles go stale when the site re-renders; callers re-resolve them by
// selector instead of caching them across page loads.
type Element interface {
	// Click performs a native mouse click. It fails when another element
	// intercepts the pointer.
	Click() error
	// JSClick dispatches element.click() from script, bypassing overlays.
	JSClick() error
	Input(text string) error
	Text() (string, error)
	// Attribute returns the attribute value and whether it is present.
	Attribute(name string) (string, bool, error)
	Visible() (bool, error)
}

// Page is the DOM contract the automation is written against
type Page interface {
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	URL() (string, error)
	HTML() (string, error)
	BodyText() (string, error)

	// Element returns the first match without waiting. A missing element is
	// reported as an ELEMENT_NOT_FOUND BrowserError.
	Element(selector string) (Element, error)
	Elements(selector string) ([]Element, error)
	Exists(selector string) (bool, error)

	Cookies() ([]Cookie, error)
	SetCookies(cookies []Cookie) error
	Storage(kind StorageKind) (map[string]string, error)
	SetStorage(kind StorageKind, items map[string]string) error
	UserAgent() (string, error)
	WindowSize() (Size, error)
}

// ClickWithFallback tries a native click and falls back to a script click
// when the native one is intercepted. It reports whether the fallback ran.
func ClickWithFallback(el Element) (usedJS bool, err error) {
	if err := el.Click(); err == nil {
		return false, nil
	}
	if err := el.JSClick(); err != nil {
		return true, &BrowserError{
			Code:    ErrCodeScriptExecution,
			Message: "Failed to click element: " + err.Error(),
		}
	}
	return true, nil
}

// FirstPresent returns the first selector that resolves to a visible element
func FirstPresent(page Page, selectors []string) (Element, string, error) {
	for _, sel := range selectors {
		el, err := page.Element(sel)
		if err != nil {
			continue
		}
		if visible, err := el.Visible(); err == nil && !visible {
			continue
		}
		return el, sel, nil
	}
	return nil, "", &BrowserError{
		Code:    ErrCodeElementNotFound,
		Message: "No candidate selector matched",
		Details: map[string]interface{}{
			"selectors": selectors,
		},
	}
}
