package nav

import (
	"strings"
	"sync"

	apperrors "github.com/hosilim/dashboard-session/internal/errors"
	"github.com/hosilim/dashboard-session/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// SubmenuState is the sidebar submenu as derived from the current path.
type SubmenuState struct {
	IsOpen           bool   `json:"isOpen"`
	ActiveSection    string `json:"activeSection,omitempty"`
	ActiveSubSection string `json:"activeSubSection,omitempty"`
}

// Navigator performs navigation requests. The submenu never changes the path itself.
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) { f(path) }

// wildcard matches one or more trailing segments.
const wildcard = "*"

// routePattern maps a path shape to a submenu state.
type routePattern struct {
	segments []string
	section  string
	sub      string
}

func (rp routePattern) match(segments []string) bool {
	n := len(rp.segments)
	if n > 0 && rp.segments[n-1] == wildcard {
		if len(segments) < n {
			return false
		}
		n--
	} else if len(segments) != n {
		return false
	}
	for i := 0; i < n; i++ {
		if rp.segments[i] != segments[i] {
			return false
		}
	}
	return true
}

// buildPatterns lists, for every section with a submenu, in match order: the section
// root, each sub route, each sub route with trailing detail segments, then any other
// path under the section, which falls back to the "all" sub.
func buildPatterns(sections []Section) []routePattern {
	var patterns []routePattern
	for _, s := range sections {
		if !s.HasSubmenu {
			continue
		}
		root := splitPath(s.Path)
		patterns = append(patterns, routePattern{segments: root, section: s.ID, sub: SubAll})
		for _, sub := range s.Subs {
			exact := append(append([]string(nil), root...), sub.ID)
			detail := append(append([]string(nil), exact...), wildcard)
			patterns = append(patterns,
				routePattern{segments: exact, section: s.ID, sub: sub.ID},
				routePattern{segments: detail, section: s.ID, sub: sub.ID},
			)
		}
		unknown := append(append([]string(nil), root...), wildcard)
		patterns = append(patterns, routePattern{segments: unknown, section: s.ID, sub: SubAll})
	}
	return patterns
}

func splitPath(p string) []string {
	p = strings.Trim(CleanPath(p), "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// Submenu tracks which section submenu is open. The current path is the source of
// truth: every transition requests navigation and then reconciles from the requested
// path.
type Submenu struct {
	root     string
	areas    []string
	sections []Section
	patterns []routePattern
	nav      Navigator

	mu    sync.Mutex
	state SubmenuState
}

// NewSubmenu builds the submenu over the dashboards of every role user holds. Roles
// without nested navigation get a submenu that is always collapsed.
func NewSubmenu(user *users.Profile, nav Navigator) (*Submenu, error) {
	if nav == nil {
		return nil, errors.New("[NewSubmenu] navigator is required")
	}
	var areas []string
	if user != nil {
		areas = areasFor(user)
	}
	sections := heldSections(user)
	return &Submenu{
		root:     DefaultRouteFor(user),
		areas:    areas,
		sections: sections,
		patterns: buildPatterns(sections),
		nav:      nav,
	}, nil
}

// State returns the current submenu state.
func (m *Submenu) State() SubmenuState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ReconcileFromPath replaces the local state with the state p implies.
func (m *Submenu) ReconcileFromPath(p string) SubmenuState {
	state := m.stateFor(p)
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
	return state
}

// OpenSubmenu expands section and navigates to its root.
func (m *Submenu) OpenSubmenu(sectionID string) error {
	section, err := m.section(sectionID)
	if err != nil {
		return err
	}
	m.navigate(section.Path)
	return nil
}

// SelectSub navigates to sub within the open section.
func (m *Submenu) SelectSub(sub string) error {
	state := m.State()
	if !state.IsOpen {
		return errors.Wrapf(apperrors.ErrSubmenuCollapsed, "[SelectSub] %s", sub)
	}
	section, err := m.section(state.ActiveSection)
	if err != nil {
		return err
	}
	if !section.hasSub(sub) {
		return errors.Wrapf(apperrors.ErrUnknownSubSection, "[SelectSub] %s/%s", section.ID, sub)
	}
	m.navigate(section.SubPath(sub))
	return nil
}

// Collapse closes the submenu and navigates to the root of the dashboard holding the
// open section. It does nothing when already collapsed.
func (m *Submenu) Collapse() {
	state := m.State()
	if !state.IsOpen {
		return
	}
	m.navigate(m.dashboardOf(state.ActiveSection))
}

// BackTarget is where a back action leads from the current state: a sub route goes
// to its section root, anything else to the dashboard root.
func (m *Submenu) BackTarget() string {
	state := m.State()
	if !state.IsOpen {
		return m.root
	}
	section, err := m.section(state.ActiveSection)
	if err != nil {
		return m.root
	}
	if state.ActiveSubSection != SubAll {
		return section.Path
	}
	return m.dashboardOf(section.ID)
}

// dashboardOf is the root of the role area holding sectionID, or the default route.
func (m *Submenu) dashboardOf(sectionID string) string {
	section, err := m.section(sectionID)
	if err != nil {
		return m.root
	}
	for _, area := range m.areas {
		if within(section.Path, area) {
			return area
		}
	}
	return m.root
}

func (m *Submenu) navigate(p string) {
	log.Debug().Str("path", p).Msg("submenu navigation")
	m.nav.Navigate(p)
	m.ReconcileFromPath(p)
}

// section finds the submenu section id. Section ids repeat across roles; only one
// role's section with a given id has a submenu.
func (m *Submenu) section(id string) (Section, error) {
	known := false
	for _, s := range m.sections {
		if s.ID != id {
			continue
		}
		if s.HasSubmenu {
			return s, nil
		}
		known = true
	}
	if known {
		return Section{}, errors.Wrapf(apperrors.ErrNoSubmenu, "[Submenu] %s", id)
	}
	return Section{}, errors.Wrapf(apperrors.ErrUnknownSection, "[Submenu] %s", id)
}

func (m *Submenu) stateFor(p string) SubmenuState {
	segments := splitPath(p)
	for _, rp := range m.patterns {
		if rp.match(segments) {
			return SubmenuState{IsOpen: true, ActiveSection: rp.section, ActiveSubSection: rp.sub}
		}
	}
	return SubmenuState{}
}
