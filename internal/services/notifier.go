package services

// Notifier is the fan-out surface the engines push through. Delivery is
// best-effort: implementations swallow write failures, so a notify call never
// fails an already-committed operation.
type Notifier interface {
	EmitToUser(userID int, event string, data interface{})
	EmitToChat(chatID int, event string, data interface{})
}

// NopNotifier discards all events. Used where no live connections exist.
type NopNotifier struct{}

func (NopNotifier) EmitToUser(int, string, interface{}) {}
func (NopNotifier) EmitToChat(int, string, interface{}) {}
