package browser

import (
	"github.com/go-rod/rod"
	"github.com/go-rod/stealth"
)

// fingerprintScript papers over the headless giveaways go-rod/stealth does
// not cover: webdriver flag, languages and hardware hints.
const fingerprintScript = `
(function() {
    'use strict';
    Object.defineProperty(navigator, 'webdriver', { get: () => undefined, configurable: true });
    try { delete Object.getPrototypeOf(navigator).webdriver; } catch (e) {}
    Object.defineProperty(navigator, 'languages', {
        get: () => Object.freeze(['ko-KR', 'ko', 'en-US', 'en']),
        configurable: true
    });
    if (!navigator.hardwareConcurrency) {
        Object.defineProperty(navigator, 'hardwareConcurrency', { get: () => 4, configurable: true });
    }
    if (!navigator.deviceMemory) {
        Object.defineProperty(navigator, 'deviceMemory', { get: () => 8, configurable: true });
    }
    if (!window.chrome) {
        Object.defineProperty(window, 'chrome', { value: {}, writable: true, enumerable: true });
    }
})();
`

// NewPage opens a page with stealth patches applied. The source site blocks
// obvious automation so every crawl page goes through here.
func NewPage(b *rod.Browser) (*rod.Page, error) {
	page, err := stealth.Page(b)
	if err != nil {
		return nil, err
	}
	if _, err := page.EvalOnNewDocument(fingerprintScript); err != nil {
		page.Close()
		return nil, err
	}
	return page, nil
}
