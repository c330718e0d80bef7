package extractor

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"go.uber.org/zap"

	"github.com/amosWeiskopf/harvester/internal/models"
	"github.com/amosWeiskopf/harvester/pkg/siteconfig"
	"github.com/amosWeiskopf/harvester/pkg/utils"
)

var (
	ErrEmptySelector    = errors.New("empty selector")
	ErrBadSelector      = errors.New("invalid selector")
	ErrNoMatch          = errors.New("no element matched")
	ErrEmptyValue       = errors.New("matched element has no value")
	ErrMissingAttribute = errors.New("attribute not present")
	ErrInvalidLink      = errors.New("link cannot be resolved")
)

// ExtractionError records why one field came out as the sentinel.
type ExtractionError struct {
	Field    string
	Selector string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("field %q (selector %q): %v", e.Field, e.Selector, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Extractor pulls field values out of item containers. Links are resolved
// against baseURL.
type Extractor struct {
	baseURL string
	logger  *zap.Logger

	mu        sync.Mutex
	selectors map[string]compiled
}

type compiled struct {
	sel cascadia.Selector
	err error
}

// New creates a new Extractor instance
func New(baseURL string, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		baseURL:   baseURL,
		logger:    logger,
		selectors: make(map[string]compiled),
	}
}

// Containers parses a page and returns the item containers matching
// itemSelector, in document order.
func (e *Extractor) Containers(body string, itemSelector string) ([]*goquery.Selection, error) {
	sel, err := e.compile(itemSelector)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	matches := doc.FindMatcher(sel)
	items := make([]*goquery.Selection, 0, matches.Length())
	for i := range matches.Nodes {
		items = append(items, matches.Eq(i))
	}
	return items, nil
}

// Assemble applies every field rule to one container. The record always has
// exactly the configured field names.
func (e *Extractor) Assemble(container *goquery.Selection, fields siteconfig.FieldSet) models.Record {
	values := make(map[string]string, fields.Len())
	for _, f := range fields.All() {
		values[f.Name] = e.Extract(container, f.Name, f.Rule)
	}
	return models.NewRecord(fields.Names(), values)
}

// Extract returns the value of one field, or models.Sentinel when the rule
// yields nothing. It never fails; the reason for a sentinel is logged.
func (e *Extractor) Extract(container *goquery.Selection, name string, rule siteconfig.FieldRule) (value string) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("extraction panicked",
				zap.String("field", name),
				zap.String("selector", rule.Selector),
				zap.Any("panic", r),
			)
			value = models.Sentinel
		}
	}()

	v, err := e.extract(container, rule)
	if err == nil {
		return v
	}

	xerr := &ExtractionError{Field: name, Selector: rule.Selector, Err: err}
	switch {
	case errors.Is(err, ErrBadSelector), errors.Is(err, ErrInvalidLink):
		e.logger.Error("field extraction failed", zap.Error(xerr))
	default:
		e.logger.Debug("field missing", zap.Error(xerr))
	}
	return models.Sentinel
}

func (e *Extractor) extract(container *goquery.Selection, rule siteconfig.FieldRule) (string, error) {
	if strings.TrimSpace(rule.Selector) == "" {
		return "", ErrEmptySelector
	}
	sel, err := e.compile(rule.Selector)
	if err != nil {
		return "", err
	}

	found := first(container, sel)
	if found == nil {
		return "", ErrNoMatch
	}

	switch rule.Attribute.Kind() {
	case siteconfig.AttributeText:
		text := strings.TrimSpace(found.Text())
		if text == "" {
			return "", ErrEmptyValue
		}
		return text, nil

	case siteconfig.AttributeHref:
		href, ok := found.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return "", ErrMissingAttribute
		}
		link, err := utils.ResolveURL(e.baseURL, href)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidLink, err)
		}
		return link, nil

	case siteconfig.AttributeOther:
		v, ok := found.Attr(rule.Attribute.Name())
		if !ok {
			return "", ErrMissingAttribute
		}
		if v == "" {
			return "", ErrEmptyValue
		}
		return v, nil

	default:
		return "", fmt.Errorf("unknown attribute kind %d", rule.Attribute.Kind())
	}
}

// first returns the first element, in document order, of the container
// itself and its descendants that matches sel.
func first(container *goquery.Selection, sel cascadia.Selector) *goquery.Selection {
	if container.Length() == 0 {
		return nil
	}
	if container.IsMatcher(sel) {
		return container.First()
	}
	found := container.FindMatcher(sel).First()
	if found.Length() == 0 {
		return nil
	}
	return found
}

func (e *Extractor) compile(selector string) (cascadia.Selector, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.selectors[selector]
	if !ok {
		sel, err := cascadia.Compile(selector)
		if err != nil {
			err = fmt.Errorf("%w %q: %v", ErrBadSelector, selector, err)
		}
		c = compiled{sel: sel, err: err}
		e.selectors[selector] = c
	}
	return c.sel, c.err
}
