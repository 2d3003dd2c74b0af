package line

import "github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"

// Text builds a plain text message.
func Text(text string) *messaging_api.TextMessage {
	return &messaging_api.TextMessage{Text: text}
}

// Image points both the original and the preview at the same public URL.
func Image(url string) *messaging_api.ImageMessage {
	return &messaging_api.ImageMessage{OriginalContentUrl: url, PreviewImageUrl: url}
}

// Carousel wraps columns into a template message.
func Carousel(altText, aspectRatio, imageSize string, columns []messaging_api.CarouselColumn) *messaging_api.TemplateMessage {
	return &messaging_api.TemplateMessage{
		AltText: altText,
		Template: &messaging_api.CarouselTemplate{
			Columns:          columns,
			ImageAspectRatio: aspectRatio,
			ImageSize:        imageSize,
		},
	}
}

// MessageAction sends text as if the user typed it.
func MessageAction(label, text string) *messaging_api.MessageAction {
	return &messaging_api.MessageAction{Label: label, Text: text}
}

// PostbackAction returns data to the webhook without echoing it in chat.
func PostbackAction(label, data string) *messaging_api.PostbackAction {
	return &messaging_api.PostbackAction{Label: label, Data: data}
}

// QuickReplyOf turns actions into quick reply buttons.
func QuickReplyOf(actions ...messaging_api.ActionInterface) *messaging_api.QuickReply {
	items := make([]messaging_api.QuickReplyItem, len(actions))
	for i, a := range actions {
		items[i] = messaging_api.QuickReplyItem{Action: a}
	}
	return &messaging_api.QuickReply{Items: items}
}
