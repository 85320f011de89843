package tui

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	chat_widget "github.com/wirnat/chat-widget"
)

const (
	pageChat    = "chat"
	pagePreview = "preview"

	defaultPlaceholder = "Type your question..."
)

// View renders the chat widget in a terminal. All mutations are queued onto
// the tview event loop, so the methods are safe to call from any goroutine
// except the event loop itself while it is blocked.
type View struct {
	app    *tview.Application
	update func(func())

	pages      *tview.Pages
	root       *tview.Flex
	transcript *tview.TextView
	replies    *tview.Flex
	input      *tview.InputField
	send       *tview.Button
	card       *tview.Flex
	preview    *tview.TextView
	closeBtn   *tview.Button

	enabled bool // event loop only

	mu        sync.Mutex
	images    map[string]string // region id -> image url
	regions   []string
	selecting bool
	current   chat_widget.QuickReplies

	onSubmit  func(text string)
	onReply   func(r chat_widget.QuickReply)
	onImage   func(url string)
	onOverlay func(target chat_widget.OverlayTarget)
}

func NewView(app *tview.Application) *View {
	return newView(app, func(f func()) { app.QueueUpdateDraw(f) })
}

// newView builds the widgets. update decides how mutations reach the event
// loop; tests run them inline.
func newView(app *tview.Application, update func(func())) *View {
	v := &View{
		app:     app,
		update:  update,
		images:  make(map[string]string),
		replies: tview.NewFlex().SetDirection(tview.FlexColumn),
	}

	v.transcript = tview.NewTextView().
		SetDynamicColors(true).
		SetRegions(true).
		SetWordWrap(true).
		SetScrollable(true)
	v.transcript.SetBorder(true).SetTitle(" Chat ")
	v.transcript.SetHighlightedFunc(v.highlighted)
	v.transcript.SetInputCapture(v.transcriptKeys)

	v.input = tview.NewInputField().
		SetLabel("> ").
		SetPlaceholder(defaultPlaceholder).
		SetFieldWidth(0)
	v.input.SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEnter:
			v.submit()
		case tcell.KeyTab:
			v.app.SetFocus(v.transcript)
		}
	})
	v.send = tview.NewButton("Send").SetSelectedFunc(v.submit)

	inputRow := tview.NewFlex().
		AddItem(v.input, 0, 1, true).
		AddItem(v.send, 8, 0, false)

	v.root = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(v.transcript, 0, 1, false).
		AddItem(v.replies, 0, 0, false).
		AddItem(inputRow, 1, 0, true)

	v.preview = tview.NewTextView().SetDynamicColors(true).SetTextAlign(tview.AlignCenter)
	v.closeBtn = tview.NewButton("Close").SetSelectedFunc(func() {
		v.overlay(chat_widget.OverlayCloseButton)
	})
	v.card = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(v.preview, 0, 1, false).
		AddItem(v.closeBtn, 1, 0, true)
	v.card.SetBorder(true).SetTitle(" " + chat_widget.ImageCaption + " ")

	overlay := tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(v.card, 9, 0, true).
			AddItem(nil, 0, 1, false), 0, 3, true).
		AddItem(nil, 0, 1, false)
	overlay.SetMouseCapture(v.overlayMouse)
	overlay.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape {
			v.overlay(chat_widget.OverlayCloseButton)
			return nil
		}
		return event
	})

	v.pages = tview.NewPages().
		AddPage(pageChat, v.root, true, true).
		AddPage(pagePreview, overlay, true, false)
	return v
}

// Root is the primitive to hand to tview.Application.SetRoot.
func (v *View) Root() tview.Primitive {
	return v.pages
}

func (v *View) OnSubmit(fn func(text string))                       { v.onSubmit = fn }
func (v *View) OnQuickReply(fn func(r chat_widget.QuickReply))      { v.onReply = fn }
func (v *View) OnImage(fn func(url string))                         { v.onImage = fn }
func (v *View) OnOverlay(fn func(target chat_widget.OverlayTarget)) { v.onOverlay = fn }

// ====== chat_widget.View ======

func (v *View) AppendMessage(m chat_widget.Message) {
	v.mu.Lock()
	text := formatMessage(m, v.registerImage)
	v.mu.Unlock()

	v.update(func() {
		fmt.Fprint(v.transcript, text)
	})
}

func (v *View) ScrollToEnd() {
	v.update(func() {
		v.transcript.ScrollToEnd()
	})
}

func (v *View) SetControlsEnabled(enabled bool) {
	v.update(func() {
		v.enabled = enabled
		v.input.SetDisabled(!enabled)
		v.send.SetDisabled(!enabled)
	})
}

func (v *View) SetPlaceholder(text string) {
	v.update(func() {
		v.input.SetPlaceholder(text)
	})
}

func (v *View) ClearInput() {
	v.update(func() {
		v.input.SetText("")
	})
}

func (v *View) FocusInput() {
	v.update(func() {
		if v.previewOpen() {
			return
		}
		v.app.SetFocus(v.input)
	})
}

func (v *View) ShowQuickReplies(replies chat_widget.QuickReplies) {
	replies = replies.Clone()
	v.mu.Lock()
	v.current = replies
	v.mu.Unlock()

	v.update(func() {
		v.replies.Clear()
		for i, r := range replies {
			r := r
			label := r.Title
			if i < 9 {
				label = fmt.Sprintf("%d %s", i+1, r.Title)
			}
			btn := tview.NewButton(label).SetSelectedFunc(func() { v.reply(r) })
			v.replies.AddItem(btn, len([]rune(label))+4, 0, false)
			v.replies.AddItem(nil, 1, 0, false)
		}
		height := 0
		if len(replies) > 0 {
			height = 1
		}
		v.root.ResizeItem(v.replies, height, 0)
	})
}

func (v *View) ShowPreview(p chat_widget.Preview) {
	v.update(func() {
		v.preview.SetText(fmt.Sprintf("\n[::b]%s[::-]\n\n[::u]%s[::-]", tview.Escape(p.Caption), tview.Escape(p.URL)))
		v.pages.ShowPage(pagePreview)
		v.app.SetFocus(v.closeBtn)
	})
}

func (v *View) HidePreview() {
	v.update(func() {
		v.pages.HidePage(pagePreview)
		v.mu.Lock()
		v.selecting = true
		v.mu.Unlock()
		v.transcript.Highlight()
		v.mu.Lock()
		v.selecting = false
		v.mu.Unlock()
		v.app.SetFocus(v.input)
	})
}

// ====== input handling ======

func (v *View) submit() {
	if v.onSubmit == nil || !v.enabled {
		return
	}
	v.onSubmit(v.input.GetText())
}

func (v *View) reply(r chat_widget.QuickReply) {
	if v.onReply != nil {
		v.onReply(r)
	}
}

// ReplyAt triggers the i-th visible quick reply (0 based).
func (v *View) ReplyAt(i int) bool {
	v.mu.Lock()
	if i < 0 || i >= len(v.current) {
		v.mu.Unlock()
		return false
	}
	r := v.current[i]
	v.mu.Unlock()
	v.reply(r)
	return true
}

func (v *View) overlay(target chat_widget.OverlayTarget) {
	if v.onOverlay != nil {
		v.onOverlay(target)
	}
}

func (v *View) previewOpen() bool {
	name, _ := v.pages.GetFrontPage()
	return name == pagePreview
}

// highlighted fires when an image region is clicked or selected.
func (v *View) highlighted(added, removed, remaining []string) {
	v.mu.Lock()
	selecting := v.selecting
	var url string
	if len(added) > 0 {
		url = v.images[added[0]]
	}
	v.mu.Unlock()

	if selecting || url == "" || v.onImage == nil {
		return
	}
	v.onImage(url)
}

// transcriptKeys lets the keyboard reach thumbnails: Tab and Backtab cycle
// through them, Enter opens the selected one, Esc returns to the input.
func (v *View) transcriptKeys(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyTab, tcell.KeyBacktab:
		v.cycleImage(event.Key() == tcell.KeyBacktab)
		return nil
	case tcell.KeyEnter:
		if ids := v.transcript.GetHighlights(); len(ids) > 0 {
			v.mu.Lock()
			url := v.images[ids[0]]
			v.mu.Unlock()
			if url != "" && v.onImage != nil {
				v.onImage(url)
			}
		}
		return nil
	case tcell.KeyEscape:
		v.app.SetFocus(v.input)
		return nil
	}
	return event
}

func (v *View) cycleImage(backwards bool) {
	v.mu.Lock()
	regions := append([]string(nil), v.regions...)
	v.mu.Unlock()
	if len(regions) == 0 {
		return
	}

	next := len(regions) - 1
	if ids := v.transcript.GetHighlights(); len(ids) > 0 {
		for i, id := range regions {
			if id != ids[0] {
				continue
			}
			if backwards {
				next = (i - 1 + len(regions)) % len(regions)
			} else {
				next = (i + 1) % len(regions)
			}
		}
	}

	v.mu.Lock()
	v.selecting = true
	v.mu.Unlock()
	v.transcript.Highlight(regions[next]).ScrollToHighlight()
	v.mu.Lock()
	v.selecting = false
	v.mu.Unlock()
}

// overlayMouse closes the overlay on clicks outside the card. Clicks on the
// image text are swallowed so they do not close it.
func (v *View) overlayMouse(action tview.MouseAction, event *tcell.EventMouse) (tview.MouseAction, *tcell.EventMouse) {
	if action != tview.MouseLeftClick {
		return action, event
	}
	x, y := event.Position()
	switch {
	case !v.card.InRect(x, y):
		v.overlay(chat_widget.OverlayBackground)
		return action, nil
	case v.preview.InRect(x, y):
		v.overlay(chat_widget.OverlayImage)
		return action, nil
	}
	return action, event
}

// registerImage assigns a region id to url. Callers hold v.mu.
func (v *View) registerImage(url string) string {
	id := fmt.Sprintf("img-%d", len(v.regions))
	v.regions = append(v.regions, id)
	v.images[id] = url
	return id
}

// ====== rendering ======

func roleStyle(role chat_widget.Role) (label, color string) {
	switch role {
	case chat_widget.User:
		return "You", "green"
	case chat_widget.System:
		return "System", "red"
	default:
		return "Bot", "aqua"
	}
}

// formatMessage renders one transcript entry as tview markup. Text lines are
// escaped; every image becomes a clickable region.
func formatMessage(m chat_widget.Message, region func(url string) string) string {
	var b strings.Builder
	label, color := roleStyle(m.Role)
	fmt.Fprintf(&b, "[%s::b]%s[-::-]\n", color, label)
	for _, line := range m.Lines() {
		b.WriteString("  ")
		b.WriteString(tview.Escape(line))
		b.WriteByte('\n')
	}
	for _, url := range m.Images {
		fmt.Fprintf(&b, "  [\"%s\"][::u]🖼 %s[::-][\"\"]\n", region(url), chat_widget.ImageCaption)
	}
	b.WriteByte('\n')
	return b.String()
}
