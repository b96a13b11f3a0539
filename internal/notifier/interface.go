package notifier

// TextNotifier is the minimal notification surface. It is intentionally small
// so subscribers can depend on it without importing concrete transports.
type TextNotifier interface {
	SendText(text string) error
}
