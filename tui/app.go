package tui

import (
	"context"
	"errors"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/rs/zerolog"
	chat_widget "github.com/wirnat/chat-widget"
)

// App is the interactive terminal chat widget.
type App struct {
	app  *tview.Application
	view *View
	ctrl *chat_widget.Controller
	log  zerolog.Logger

	ctx context.Context
	wg  sync.WaitGroup
}

func New(pageURL string, o chat_widget.Options) *App {
	log := zerolog.Nop()
	if o.Logger != nil {
		log = *o.Logger
	}

	a := &App{
		app: tview.NewApplication().EnableMouse(true),
		log: log.With().Str("component", "tui").Logger(),
		ctx: context.Background(),
	}
	a.view = NewView(a.app)
	a.ctrl = chat_widget.New(a.view, pageURL, o)

	a.view.OnSubmit(func(text string) {
		a.exchange(func(ctx context.Context) (chat_widget.Outcome, error) {
			return a.ctrl.Submit(ctx, text)
		})
	})
	a.view.OnQuickReply(func(r chat_widget.QuickReply) {
		a.exchange(func(ctx context.Context) (chat_widget.Outcome, error) {
			return a.ctrl.SubmitQuickReply(ctx, r)
		})
	})
	a.view.OnImage(a.ctrl.OpenImage)
	a.view.OnOverlay(a.ctrl.ClickOverlay)

	a.app.SetRoot(a.view.Root(), true).SetInputCapture(a.keys)
	return a
}

func (a *App) Controller() *chat_widget.Controller {
	return a.ctrl
}

// Run blocks until the user quits or ctx is cancelled. A missing token is not
// an error: the widget stays open showing why it is disabled.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.ctx = ctx

	if err := a.ctrl.Init(); err != nil && !errors.Is(err, chat_widget.ErrMissingToken) {
		return err
	}

	go func() {
		<-ctx.Done()
		a.app.Stop()
	}()

	err := a.app.Run()
	cancel()
	a.wg.Wait()
	return err
}

// exchange runs a blocking controller call off the event loop.
func (a *App) exchange(fn func(ctx context.Context) (chat_widget.Outcome, error)) {
	ctx := a.ctx
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		out, err := fn(ctx)
		switch {
		case errors.Is(err, chat_widget.ErrEmptySubmission), errors.Is(err, chat_widget.ErrBusy):
			a.log.Debug().Err(err).Msg("submission ignored")
		case err != nil:
			a.log.Warn().Err(err).Msg("submission rejected")
		default:
			a.log.Debug().Str("outcome", out.String()).Msg("exchange done")
		}
	}()
}

// keys adds Alt+1..9 for quick replies on top of the widget bindings.
func (a *App) keys(event *tcell.EventKey) *tcell.EventKey {
	if event.Key() == tcell.KeyRune && event.Modifiers()&tcell.ModAlt != 0 {
		if r := event.Rune(); r >= '1' && r <= '9' {
			if a.view.ReplyAt(int(r - '1')) {
				return nil
			}
		}
	}
	return event
}
