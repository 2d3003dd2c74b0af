package bot

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"

	"github.com/ByLCY/blessing/line"
	"github.com/ByLCY/blessing/pipeline"
	"github.com/ByLCY/blessing/prompt"
)

func (b *Bot) keywords(n int) string {
	phrases := b.cfg.TriggerPhrases
	if n > 0 && len(phrases) > n {
		phrases = phrases[:n]
	}
	quoted := make([]string, len(phrases))
	for i, p := range phrases {
		quoted[i] = "「" + p + "」"
	}
	return strings.Join(quoted, "、")
}

func (b *Bot) welcomeMessage() messaging_api.MessageInterface {
	text, err := prompt.Render(b.cfg.WelcomeMessage, map[string]string{"keywords": b.keywords(0)})
	if err != nil {
		text = b.cfg.WelcomeMessage
	}
	return line.Text(text)
}

func (b *Bot) hintText() string {
	return fmt.Sprintf("您好！若要開始生成長輩圖，請輸入%s等關鍵字。", b.keywords(3))
}

func (b *Bot) themeCarousel() messaging_api.MessageInterface {
	themes := b.catalog.Themes()
	columns := make([]messaging_api.CarouselColumn, 0, len(themes))
	for _, th := range themes {
		columns = append(columns, messaging_api.CarouselColumn{
			ThumbnailImageUrl: th.Thumbnail,
			Title:             th.Name,
			Text:              "點擊選擇此主題",
			Actions:           []messaging_api.ActionInterface{line.MessageAction("選擇", th.Name)},
		})
	}
	return line.Carousel("請選擇今天想傳的祝福主題 🌸", "square", "cover", columns)
}

func (b *Bot) styleCarousel(themeID string) messaging_api.MessageInterface {
	styles := b.catalog.Styles()
	columns := make([]messaging_api.CarouselColumn, 0, len(styles))
	for _, st := range styles {
		data := url.Values{"themeId": {themeID}, "styleId": {st.ID}}.Encode()
		columns = append(columns, messaging_api.CarouselColumn{
			ThumbnailImageUrl: st.Thumbnail,
			Title:             st.Name,
			Text:              "點我選擇此風格",
			Actions:           []messaging_api.ActionInterface{line.PostbackAction("選擇", data)},
		})
	}
	return line.Carousel("請選擇風格", "square", "contain", columns)
}

func (b *Bot) textPrompt() messaging_api.MessageInterface {
	msg := line.Text(fmt.Sprintf("要加上祝福語嗎？可以直接輸入，或使用預設文字。✍️ (建議字數不超過 %d 字，以確保圖片美觀)", b.cfg.MaxTextLength))
	msg.QuickReply = line.QuickReplyOf(
		line.MessageAction(pipeline.UseDefaultText, pipeline.UseDefaultText),
		line.MessageAction(AIGenerateText, AIGenerateText),
	)
	return msg
}
