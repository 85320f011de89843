package chat_widget

// View is everything the controller needs from the widget surface. The
// controller owns the logic; a View only renders. Implementations must be
// safe to call from the goroutine that runs the exchange.
type View interface {
	// AppendMessage adds an entry to the transcript.
	AppendMessage(m Message)
	// ScrollToEnd reveals the newest content.
	ScrollToEnd()
	// SetControlsEnabled toggles the input field and the send control together.
	SetControlsEnabled(enabled bool)
	SetPlaceholder(text string)
	ClearInput()
	FocusInput()
	// ShowQuickReplies replaces the visible batch; an empty batch removes it.
	ShowQuickReplies(replies QuickReplies)
	ShowPreview(p Preview)
	HidePreview()
}
