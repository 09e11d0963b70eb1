// Package watcher indexes stylesheet declarations by media query and
// resolves effective property values for prioritized selectors.
package watcher

import (
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"mqwatch/css"
	"mqwatch/diag"
	"mqwatch/media"
)

// NoMediaRule is index key for rules outside of any media group.
const NoMediaRule = "noMediaRule"

// Diagnostic record identification for rules which could not be indexed.
const (
	ComponentID       = "MediaQueryWatcher"
	CodeBlockNotFound = "css_block_not_found"
)

// SelectorRules maps selector to its declarations in source order.
type SelectorRules map[string][]Declaration

// Index maps media query text (or NoMediaRule) to selector rules.
type Index map[string]SelectorRules

// Option configures Watcher.
type Option func(*Watcher)

// WithErrorLogger sets sink for diagnostics about malformed rules.
func WithErrorLogger(sink diag.Sink) Option {
	return func(w *Watcher) {
		w.sink = sink
	}
}

// WithSkipMalformed makes scan skip rules which declaration block could not
// be located instead of failing.
func WithSkipMalformed() Option {
	return func(w *Watcher) {
		w.skipMalformed = true
	}
}

// Watcher owns media rule index built from scanned stylesheets. Index only
// grows: declarations from later scans are appended to existing entries.
// NOTE: presently not to be used concurrently!
type Watcher struct {
	log           *zap.Logger
	oracle        media.Oracle
	sink          diag.Sink
	skipMalformed bool

	index Index
	order []string // media keys in discovery order
	subs  []uuid.UUID
}

// New creates empty watcher. oracle answers media queries, when nil no
// media query ever matches.
func New(oracle media.Oracle, log *zap.Logger, opts ...Option) *Watcher {
	if log == nil {
		log = zap.NewNop()
	}
	w := &Watcher{
		log:    log.Named("watcher"),
		oracle: oracle,
		index:  make(Index),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.sink != nil {
		w.log.Info("Error logger is defined")
	} else {
		w.log.Info("Error logger is not defined")
	}
	return w
}

// AddMediaQueriesListener scans top-level rules of sheet merging their
// declarations into the index and subscribes onChange to every media group
// found. Returned list starts with NoMediaRule followed by media groups
// currently matching, in source order. When a rule block cannot be located
// the scan stops with error unless watcher skips malformed rules, in which
// case such rules are ignored. Declarations merged before failure are kept.
func (w *Watcher) AddMediaQueriesListener(sheet css.StyleSheet, onChange media.Listener) ([]string, error) {
	matched := []string{NoMediaRule}
	if sheet == nil {
		return matched, nil
	}

	var skipped error
	handle := func(err error) error {
		if !w.skipMalformed {
			return err
		}
		skipped = multierr.Append(skipped, err)
		return nil
	}

	for _, rule := range sheet.CSSRules() {
		switch rule.Kind() {
		case css.RuleKindMedia:
			key := rule.MediaText()
			w.entry(key)
			for _, nested := range rule.CSSRules() {
				if nested.Kind() != css.RuleKindStyle {
					w.log.Debug("Skipping nested rule", zap.String("media", key), zap.Stringer("kind", nested.Kind()))
					continue
				}
				if err := handle(w.merge(key, nested)); err != nil {
					return matched, err
				}
			}
			if w.matches(key) {
				matched = append(matched, key)
			}
			if onChange != nil && w.oracle != nil {
				w.subs = append(w.subs, w.oracle.Subscribe(key, onChange))
			}
		case css.RuleKindStyle:
			if err := handle(w.merge(NoMediaRule, rule)); err != nil {
				return matched, err
			}
		default:
			w.log.Debug("Skipping rule", zap.Stringer("kind", rule.Kind()))
		}
	}

	if skipped != nil {
		w.log.Warn("Malformed rules were skipped", zap.Int("count", len(multierr.Errors(skipped))), zap.Error(skipped))
	}
	return matched, nil
}

func (w *Watcher) merge(key string, rule css.Rule) error {
	rules, err := ExtractRule(rule.SelectorText(), rule.CSSText())
	if err != nil {
		if w.sink != nil {
			w.sink.AddError(ComponentID, CodeBlockNotFound, err.Error(), map[string]any{
				"selector": rule.SelectorText(),
				"media":    key,
			})
		}
		return fmt.Errorf("unable to index rule in '%s': %w", key, err)
	}
	entry := w.entry(key)
	for sel, decls := range rules {
		entry[sel] = append(entry[sel], decls...)
	}
	return nil
}

func (w *Watcher) entry(key string) SelectorRules {
	rules, ok := w.index[key]
	if !ok {
		rules = make(SelectorRules)
		w.index[key] = rules
		w.order = append(w.order, key)
	}
	return rules
}

func (w *Watcher) matches(key string) bool {
	return w.oracle != nil && w.oracle.Matches(key)
}

// Index returns index owned by watcher, callers should not modify it.
func (w *Watcher) Index() Index {
	return w.index
}

// Rules returns selector rules for media key, nil if key was never seen.
func (w *Watcher) Rules(mediaKey string) SelectorRules {
	return w.index[mediaKey]
}

// Media returns known media keys in order of discovery.
func (w *Watcher) Media() []string {
	return slices.Clone(w.order)
}

// Matched recomputes match state: NoMediaRule followed by every known media
// group key currently matching, in order of discovery. Intended to be called
// from change listeners.
func (w *Watcher) Matched() []string {
	matched := []string{NoMediaRule}
	for _, key := range w.order {
		if key != NoMediaRule && w.matches(key) {
			matched = append(matched, key)
		}
	}
	return matched
}

// Resolve resolves targets against single media key.
func (w *Watcher) Resolve(mediaKey string, selectors, targets []string) (map[string]string, []string) {
	return ResolveProperties(w.index[mediaKey], selectors, targets)
}

// ResolveMatched resolves targets against every media key in matched order,
// values from later keys override earlier ones.
func (w *Watcher) ResolveMatched(matched, selectors, targets []string) map[string]string {
	result := make(map[string]string)
	for _, key := range matched {
		res, _ := ResolveProperties(w.index[key], selectors, targets)
		maps.Copy(result, res)
	}
	return result
}

// Close removes all listeners registered by this watcher. Index is kept.
func (w *Watcher) Close() error {
	var err error
	for _, id := range w.subs {
		if !w.oracle.Unsubscribe(id) {
			err = multierr.Append(err, fmt.Errorf("listener %s was not registered", id))
		}
	}
	w.subs = nil
	return err
}
