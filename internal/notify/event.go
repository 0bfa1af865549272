// Package notify carries outbound operator notifications from the hub to
// the chat delivery worker over the message queue. Delivery is best-effort
// from the triggering request's perspective: the request that caused a
// notification never fails because delivery did.
package notify

// Kind classifies a notification event.
type Kind string

const (
	// KindScanResult is a scan photo with its analysis caption.
	KindScanResult Kind = "scan_result"
	// KindRobotStopped is a status-change alert for a robot that stopped.
	KindRobotStopped Kind = "robot_stopped"
)

// Event is one queued notification, addressed to an operator's chat
// identity. Text events carry Text; photo events carry PhotoURL + Caption.
type Event struct {
	TelegramID string `json:"telegram_id"`
	Kind       Kind   `json:"kind"`
	Text       string `json:"text,omitempty"`
	PhotoURL   string `json:"photo_url,omitempty"`
	Caption    string `json:"caption,omitempty"`
}
