package domain

import "encoding/json"

// Notification actions pushed to a duplex-channel client.
const (
	ActionConnected                   = "connected"
	ActionRequestReceived             = "request_received"
	ActionModificationRequestReceived = "modification_request_received"
	ActionStatusUpdate                = "status_update"
	ActionPlanCreated                 = "plan_created"
	ActionPlanModified                = "plan_modified"
	ActionError                       = "error"
)

// Notification is one out-of-band message to a single client connection.
// It is never persisted.
type Notification struct {
	Action       string `json:"action"`
	Message      string `json:"message,omitempty"`
	ConnectionID string `json:"connectionId,omitempty"`
	PlanID       string `json:"planId,omitempty"`
	Plan         any    `json:"plan,omitempty"`
	RedirectURL  string `json:"redirectUrl,omitempty"`
	IsRoundTrip  *bool  `json:"isRoundTrip,omitempty"`
	Warning      string `json:"warning,omitempty"`
	ErrorDetails string `json:"error_details,omitempty"`
}

// IsTerminal reports whether n ends a request's notification sequence.
func (n Notification) IsTerminal() bool {
	switch n.Action {
	case ActionPlanCreated, ActionPlanModified, ActionError:
		return true
	}
	return false
}

// StatusUpdate builds a progress notification.
func StatusUpdate(msg string) Notification {
	return Notification{Action: ActionStatusUpdate, Message: msg}
}

// ErrorNotification builds the terminal failure notification.
func ErrorNotification(msg string, err error) Notification {
	n := Notification{Action: ActionError, Message: msg}
	if err != nil {
		n.ErrorDetails = err.Error()
	}
	return n
}

// Queue message kinds.
const (
	KindCreate = "create"
	KindModify = "modify"
)

// QueueMessage is one unit of asynchronous work.
type QueueMessage struct {
	ConnectionID string          `json:"connectionId"`
	RequestData  json.RawMessage `json:"requestData"`
	Kind         string          `json:"kind,omitempty"`
}

// AnonymousUser is the identity used when no credential can be trusted.
const AnonymousUser = "anonymous"

// Identity is the resolved caller.
type Identity struct {
	UserID    string
	Anonymous bool
}

// Anonymous returns the degraded identity.
func Anonymous() Identity {
	return Identity{UserID: AnonymousUser, Anonymous: true}
}
