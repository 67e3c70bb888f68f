package crawler

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/nineylabs/placefeed/internal/browser"
	"github.com/nineylabs/placefeed/internal/config"
)

// rodSession is the production session, backed by a stealth page from the
// browser pool.
type rodSession struct {
	page *rod.Page
	cfg  config.CrawlerConfig
}

func newRodSession(inst *browser.Instance, cfg config.CrawlerConfig) (*rodSession, error) {
	page, err := browser.NewPage(inst.Browser)
	if err != nil {
		return nil, err
	}
	return &rodSession{page: page, cfg: cfg}, nil
}

func (s *rodSession) Navigate(ctx context.Context, url string) (string, error) {
	page := s.page.Context(ctx).Timeout(s.cfg.NavigationTimeout)
	if err := page.Navigate(url); err != nil {
		return "", err
	}
	if err := page.WaitLoad(); err != nil {
		return "", err
	}
	// Short-link forms redirect to the canonical resource; report where we
	// actually landed.
	info, err := page.Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (s *rodSession) WaitForContent(ctx context.Context) error {
	var lastErr error
	for _, sel := range primaryContentSelectors {
		el, err := s.page.Context(ctx).Timeout(s.cfg.StepTimeout).Element(sel)
		if err != nil {
			lastErr = err
			continue
		}
		if err := el.WaitVisible(); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr == nil {
		lastErr = errors.New("no content selector matched")
	}
	return fmt.Errorf("waiting for feed content: %w", lastErr)
}

func (s *rodSession) ClickLoadMore(ctx context.Context) (bool, error) {
	for _, sel := range loadMoreSelectors {
		el, err := s.page.Context(ctx).Timeout(s.cfg.StepTimeout).Element(sel)
		if err != nil {
			continue
		}
		visible, err := el.Visible()
		if err != nil || !visible {
			continue
		}
		if err := el.ScrollIntoView(); err != nil {
			return false, err
		}
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

func (s *rodSession) HTML(ctx context.Context) (string, error) {
	return s.page.Context(ctx).HTML()
}

func (s *rodSession) Close() {
	_ = s.page.Close()
}
