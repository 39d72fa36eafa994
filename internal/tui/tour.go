package tui

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"github.com/pkg/browser"

	"github.com/kennan/folio/internal/storage/entity"
	"github.com/kennan/folio/internal/tour"
)

const defaultWidth = 80

// TourModel walks through the virtual tour of one project.
type TourModel struct {
	// Dependencies
	ctx      context.Context
	project  *entity.Project
	nav      *tour.Navigator
	renderer *ImageRenderer
	pageURL  string
	openURL  func(string) error

	// UI components
	keys    KeyMap
	help    HelpModel
	spinner spinner.Model

	// State
	selected int
	showHelp bool
	started  bool
	errMsg   string
	notice   string

	// View dimensions
	width  int
	height int
}

// NewTourModel creates the tour view of p. Images are downloaded with f;
// pageURL is the public page of the project, used by the open key.
func NewTourModel(ctx context.Context, p *entity.Project, f Fetcher, pageURL string) TourModel {
	r := NewImageRenderer(f)
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	keys := DefaultKeyMap()
	g := p.Tour()
	if !p.HasTour() {
		g = tour.NewGraph(nil)
	}
	return TourModel{
		ctx:      ctx,
		project:  p,
		nav:      tour.New(g, "", r),
		renderer: r,
		pageURL:  pageURL,
		openURL:  browser.OpenURL,
		keys:     keys,
		help:     NewHelpModel(keys),
		spinner:  sp,
		width:    defaultWidth,
	}
}

// Navigator returns the navigator driving the view.
func (m TourModel) Navigator() *tour.Navigator {
	return m.nav
}

// Init starts loading the first scene.
func (m TourModel) Init() tea.Cmd {
	if !m.nav.Available() {
		return nil
	}
	return tea.Batch(m.spinner.Tick, m.start())
}

func (m TourModel) start() tea.Cmd {
	return func() tea.Msg {
		err := m.nav.Start(m.ctx)
		return SceneLoadedMsg{SceneID: m.nav.CurrentID(), Err: err}
	}
}

// follow activates the selected hotspot the way a click in a graphical
// viewer would.
func (m TourModel) follow(i int) tea.Cmd {
	return func() tea.Msg {
		if err := m.renderer.Activate(i); err != nil {
			return ErrorMsg{Err: err}
		}
		return SceneLoadedMsg{SceneID: m.nav.CurrentID(), Err: m.nav.Err()}
	}
}

// jump moves to a scene directly, like a click on the minimap.
func (m TourModel) jump(sceneID string) tea.Cmd {
	return func() tea.Msg {
		err := m.nav.Sync(m.ctx, sceneID)
		if errors.Is(err, tour.ErrSuperseded) {
			err = nil
		}
		return SceneLoadedMsg{SceneID: m.nav.CurrentID(), Err: err}
	}
}

func (m TourModel) open() tea.Cmd {
	u := m.pageURL + "/tour"
	if id := m.nav.CurrentID(); id != "" {
		u += "?scene=" + url.QueryEscape(id)
	}
	return func() tea.Msg {
		return BrowserOpenedMsg{URL: u, Err: m.openURL(u)}
	}
}

// Update handles messages.
func (m TourModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case SceneLoadedMsg:
		m.started = true
		m.selected = 0
		m.errMsg = ""
		if msg.Err != nil {
			m.errMsg = msg.Err.Error()
		}
		return m, nil

	case BrowserOpenedMsg:
		if msg.Err != nil {
			m.notice = fmt.Sprintf("Could not open %s: %v", msg.URL, msg.Err)
		} else {
			m.notice = "Opened " + msg.URL
		}
		return m, nil

	case ErrorMsg:
		m.errMsg = msg.Err.Error()
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	}
	return m, nil
}

func (m TourModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		_ = m.nav.Close()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		return m, nil
	case key.Matches(msg, m.keys.Open):
		return m, m.open()
	}
	if !m.nav.Available() || m.nav.Loading() {
		return m, nil
	}

	markers := m.renderer.Markers()
	switch {
	case key.Matches(msg, m.keys.NextHotspot):
		if len(markers) != 0 {
			m.selected = (m.selected + 1) % len(markers)
		}
	case key.Matches(msg, m.keys.PrevHotspot):
		if len(markers) != 0 {
			m.selected = (m.selected - 1 + len(markers)) % len(markers)
		}
	case key.Matches(msg, m.keys.Follow):
		if m.selected < len(markers) {
			m.notice = ""
			return m, tea.Batch(m.spinner.Tick, m.follow(m.selected))
		}
	case key.Matches(msg, m.keys.NextScene):
		return m, m.step(1)
	case key.Matches(msg, m.keys.PrevScene):
		return m, m.step(-1)
	}
	return m, nil
}

// step jumps to the scene delta positions away in list order, wrapping
// around.
func (m TourModel) step(delta int) tea.Cmd {
	scenes := m.nav.Graph().Scenes()
	cur := m.nav.CurrentID()
	for i, s := range scenes {
		if s.ID == cur {
			next := scenes[(i+delta+len(scenes))%len(scenes)]
			return tea.Batch(m.spinner.Tick, m.jump(next.ID))
		}
	}
	return nil
}

// View renders the tour.
func (m TourModel) View() string {
	var b strings.Builder
	width := m.width
	if width <= 0 {
		width = defaultWidth
	}
	b.WriteString(TitleStyle.Render(m.project.Name))
	b.WriteString("\n")

	if !m.nav.Available() {
		b.WriteString(NoticeStyle.Render("This project has no virtual tour yet."))
		b.WriteString("\n")
		b.WriteString(HelpStyle.Render("q quit"))
		return b.String()
	}

	scenes := m.nav.Graph().Scenes()
	cur, _ := m.nav.Current()
	pos := 0
	for i, s := range scenes {
		if s.ID == cur.ID {
			pos = i + 1
		}
	}
	header := SceneStyle.Render(cur.Name) + LabelStyle.Render(fmt.Sprintf("  %d / %d", pos, len(scenes)))
	if m.nav.Loading() || !m.started {
		header += "  " + m.spinner.View() + " loading"
	}
	b.WriteString(header)
	b.WriteString("\n")

	b.WriteString(PanelStyle.Render(m.panorama(cur, width-4)))
	b.WriteString("\n")

	if m.errMsg != "" {
		b.WriteString(ErrorStyle.Render(wordwrap.String(m.errMsg, width)))
		b.WriteString("\n")
	}
	if m.notice != "" {
		b.WriteString(NoticeStyle.Render(wordwrap.String(m.notice, width)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(LabelStyle.Render("Hotspots"))
	b.WriteString("\n")
	markers := m.renderer.Markers()
	if len(markers) == 0 {
		b.WriteString(NormalItemStyle.Render("  none"))
		b.WriteString("\n")
	}
	for i, mk := range markers {
		line := fmt.Sprintf("%s  yaw %.0f° pitch %.0f°", mk.Label, mk.Yaw, mk.Pitch)
		if i == m.selected {
			b.WriteString(SelectedItemStyle.Render("> " + line))
		} else {
			b.WriteString(NormalItemStyle.Render("  " + line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(LabelStyle.Render("Scenes"))
	b.WriteString("\n")
	for _, s := range scenes {
		line := fmt.Sprintf("%s  (%.0f%%, %.0f%%)", s.Name, s.Position.X, s.Position.Y)
		if s.ID == cur.ID {
			b.WriteString(SelectedItemStyle.Render("● " + line))
		} else {
			b.WriteString(NormalItemStyle.Render("○ " + line))
		}
		b.WriteString("\n")
	}

	if m.showHelp {
		b.WriteString(m.help.View(width))
	} else {
		b.WriteString(HelpStyle.Render(m.help.ShortView(width)))
	}
	return b.String()
}

func (m TourModel) panorama(s tour.Scene, width int) string {
	f, ok := m.renderer.Frame(s.ImageURL)
	if !ok {
		if m.errMsg != "" && !m.nav.Loading() {
			return "This panorama could not be loaded."
		}
		return LabelStyle.Render(s.ImageURL)
	}
	kind := "flat image"
	if f.Equirectangular() {
		kind = "360° panorama"
	}
	lines := []string{
		fmt.Sprintf("%s, %d×%d %s, %s", kind, f.Width, f.Height, f.Format, humanBytes(f.Size)),
		LabelStyle.Render(wordwrap.String(f.URL, max(width, 20))),
	}
	return strings.Join(lines, "\n")
}

func humanBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}
