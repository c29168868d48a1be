package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"streamscout/internal/lookup"
	"streamscout/internal/media"
	"streamscout/internal/provider"
)

// Session is the lookup session the browser drives.
type Session interface {
	Lookup(ctx context.Context, query string) (*lookup.Resolution, error)
	Expand(ctx context.Context, code media.CountryCode) (media.CountryDetail, error)
	Eligible(code media.CountryCode) bool
}

type browseKeys struct {
	Up     key.Binding
	Down   key.Binding
	Toggle key.Binding
	Search key.Binding
	Quit   key.Binding
}

func (k browseKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Toggle, k.Search, k.Quit}
}

func (k browseKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var defaultBrowseKeys = browseKeys{
	Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Toggle: key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "expand")),
	Search: key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
	Quit:   key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
}

// detailMsg carries an enrichment result for one country.
type detailMsg struct {
	gen    uint64
	code   media.CountryCode
	detail media.CountryDetail
	err    error
}

// resolvedMsg carries the result of a new search.
type resolvedMsg struct {
	query string
	res   *lookup.Resolution
	err   error
}

// row is one visible line: a provider, or a country under an expanded one.
type row struct {
	provider int
	country  int // -1 for the provider row itself
}

type browseModel struct {
	ctx     context.Context
	session Session
	keys    browseKeys
	help    help.Model
	spinner spinner.Model
	input   textinput.Model

	res       *lookup.Resolution
	gen       uint64
	expanded  map[int]bool
	details   map[media.CountryCode]media.CountryDetail
	loading   map[media.CountryCode]bool
	cursor    int
	searching bool // text input active
	pending   bool // lookup in flight
	status    string
}

func newBrowseModel(ctx context.Context, session Session, res *lookup.Resolution) browseModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	ti := textinput.New()
	ti.Placeholder = "new search"
	ti.CharLimit = 200

	m := browseModel{
		ctx:     ctx,
		session: session,
		keys:    defaultBrowseKeys,
		help:    help.New(),
		spinner: sp,
		input:   ti,
	}
	m.reset(res)
	return m
}

func (m *browseModel) reset(res *lookup.Resolution) {
	m.res = res
	m.gen = 0
	if res != nil {
		m.gen = res.Generation
	}
	m.expanded = make(map[int]bool)
	m.details = make(map[media.CountryCode]media.CountryDetail)
	m.loading = make(map[media.CountryCode]bool)
	m.cursor = 0
}

func (m browseModel) Init() tea.Cmd { return nil }

func (m browseModel) rows() []row {
	if m.res == nil {
		return nil
	}
	var out []row
	for i, p := range m.res.Providers {
		out = append(out, row{provider: i, country: -1})
		if m.expanded[i] {
			for j := range p.Countries {
				out = append(out, row{provider: i, country: j})
			}
		}
	}
	return out
}

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case detailMsg:
		if msg.gen != m.gen || errors.Is(msg.err, lookup.ErrStale) {
			return m, nil // belongs to an earlier result
		}
		delete(m.loading, msg.code)
		if errors.Is(msg.err, lookup.ErrNoTitle) {
			return m, nil // the session no longer holds this result
		}
		if msg.err != nil {
			m.details[msg.code] = media.EmptyDetail()
		} else {
			m.details[msg.code] = msg.detail
		}
		return m, nil

	case resolvedMsg:
		m.pending = false
		if msg.err != nil {
			m.status = searchStatus(msg.query, msg.err)
			switch {
			case msg.res != nil:
				m.reset(msg.res)
			case !errors.Is(msg.err, lookup.ErrStale):
				// The session dropped the previous result when the search began.
				m.reset(nil)
			}
			return m, nil
		}
		m.status = ""
		m.reset(msg.res)
		return m, nil

	case spinner.TickMsg:
		if len(m.loading) == 0 && !m.pending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.updateBrowse(msg)
	}
	return m, nil
}

func (m browseModel) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.searching = false
		m.input.Blur()
		return m, nil
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEnter:
		query := strings.TrimSpace(m.input.Value())
		m.searching = false
		m.input.Blur()
		if query == "" {
			return m, nil
		}
		m.pending = true
		m.status = "Searching for " + query + "..."
		return m, tea.Batch(m.lookupCmd(query), m.spinner.Tick)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m browseModel) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	rows := m.rows()
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Search):
		m.searching = true
		m.input.SetValue("")
		m.input.Focus()
		return m, textinput.Blink
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(rows)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Toggle):
		if m.cursor >= len(rows) {
			return m, nil
		}
		r := rows[m.cursor]
		if r.country < 0 {
			m.expanded[r.provider] = !m.expanded[r.provider]
			return m, nil
		}
		code := m.res.Providers[r.provider].Countries[r.country].Code
		if !m.session.Eligible(code) || m.loading[code] {
			return m, nil
		}
		if _, ok := m.details[code]; ok {
			return m, nil
		}
		m.loading[code] = true
		return m, tea.Batch(m.expandCmd(m.gen, code), m.spinner.Tick)
	}
	return m, nil
}

func (m browseModel) expandCmd(gen uint64, code media.CountryCode) tea.Cmd {
	return func() tea.Msg {
		d, err := m.session.Expand(m.ctx, code)
		return detailMsg{gen: gen, code: code, detail: d, err: err}
	}
}

func (m browseModel) lookupCmd(query string) tea.Cmd {
	return func() tea.Msg {
		res, err := m.session.Lookup(m.ctx, query)
		return resolvedMsg{query: query, res: res, err: err}
	}
}

func searchStatus(query string, err error) string {
	switch {
	case errors.Is(err, lookup.ErrNotFound):
		return "Nothing to stream for " + query
	case errors.Is(err, lookup.ErrStale):
		return ""
	default:
		return "Search failed: " + err.Error()
	}
}

func (m browseModel) View() string {
	var b strings.Builder

	if m.res != nil {
		b.WriteString(titleStyle.Render(provider.FormatDisplayTitle(m.res.Title)))
		b.WriteString("\n\n")
		if m.res.Empty() {
			b.WriteString(mutedStyle.Render("Not available on any subscription service."))
			b.WriteString("\n")
		}
	}

	for i, r := range m.rows() {
		cursor := "  "
		if i == m.cursor {
			cursor = cursorStyle.Render("> ")
		}
		p := m.res.Providers[r.provider]

		if r.country < 0 {
			marker := "▸"
			if m.expanded[r.provider] {
				marker = "▾"
			}
			fmt.Fprintf(&b, "%s%s %s %s\n", cursor, marker, providerStyle.Render(p.Name),
				countStyle.Render(fmt.Sprintf("(%d %s)", len(p.Countries), plural(len(p.Countries), "country", "countries"))))
			continue
		}

		c := p.Countries[r.country]
		fmt.Fprintf(&b, "%s    %s %s\n", cursor, countryStyle.Render(c.Name), mutedStyle.Render(string(c.Code)))
		b.WriteString(m.countryDetail(p.Name, c.Code))
	}

	b.WriteString("\n")
	if m.searching {
		b.WriteString(promptStyle.Render("Search:") + " " + m.input.View() + "\n")
	} else if m.status != "" {
		line := m.status
		if m.pending {
			line = m.spinner.View() + " " + line
		}
		b.WriteString(errorStyleFor(m.pending).Render(line) + "\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

// countryDetail renders the enrichment lines under a country row.
func (m browseModel) countryDetail(providerName string, code media.CountryCode) string {
	const indent = "        "
	if !m.session.Eligible(code) {
		return ""
	}
	if m.loading[code] {
		return indent + m.spinner.View() + mutedStyle.Render(" looking up details...") + "\n"
	}
	d, ok := m.details[code]
	if !ok {
		return ""
	}

	var b strings.Builder
	if d.DeepLinkSupported {
		b.WriteString(indent + "JustWatch: " + linkStyle.Render(d.JustWatchURL) + "\n")
	}
	if tiers, ok := d.QualityByProvider[providerName]; ok && len(tiers) > 0 {
		b.WriteString(indent + "Quality: " + qualityStyle.Render(media.JoinQualities(tiers)) + "\n")
	}
	if b.Len() == 0 {
		b.WriteString(indent + mutedStyle.Render("details unavailable") + "\n")
	}
	return b.String()
}

func errorStyleFor(pending bool) lipgloss.Style {
	if pending {
		return mutedStyle
	}
	return errorStyle
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// Browse runs the interactive provider browser for res until the user quits.
func Browse(ctx context.Context, session Session, res *lookup.Resolution) error {
	p := tea.NewProgram(newBrowseModel(ctx, session, res), tea.WithContext(ctx), tea.WithAltScreen())
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("running browser: %w", err)
	}
	return nil
}
