package model

// Inbound is the closed set of message variants the orchestrator accepts.
// The webhook handler converts channel payloads into one of these; nothing
// downstream ever inspects raw webhook JSON.
type Inbound interface {
	isInbound()
}

// TextMessage is a free-text message from the patient.
type TextMessage struct {
	Body string
}

// LocationMessage is a GPS coordinate pair shared through the channel's
// native location feature.
type LocationMessage struct {
	Lat float64
	Lon float64
}

// InteractiveReply is a tap on an interactive element (button or list row).
type InteractiveReply struct {
	ID    string
	Title string
}

func (TextMessage) isInbound()      {}
func (LocationMessage) isInbound()  {}
func (InteractiveReply) isInbound() {}
