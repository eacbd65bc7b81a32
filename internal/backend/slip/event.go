package slip

// ImageEvent is an inbound image message from the chat platform.
type ImageEvent struct {
	SenderID   string
	MessageID  string
	ReplyToken string
}

// TextEvent is an inbound text message from the chat platform.
type TextEvent struct {
	SenderID   string
	Text       string
	ReplyToken string
}
