package safety

import (
	"context"
	"errors"

	"wish-backend/internal/wechat"
)

// ErrUnsafeContent is returned when the checker rejects the text. The wish
// never reaches the LLM in that case.
var ErrUnsafeContent = errors.New("content rejected by safety check")

// Checker validates user-authored text before it is sent anywhere.
type Checker interface {
	Check(ctx context.Context, openID, text string) error
}

// WeChatChecker runs msg_sec_check through the platform client.
type WeChatChecker struct {
	Client *wechat.Client
}

// Check implements Checker.
func (c *WeChatChecker) Check(ctx context.Context, openID, text string) error {
	err := c.Client.MsgSecCheck(ctx, openID, text)
	if errors.Is(err, wechat.ErrRiskyContent) {
		return ErrUnsafeContent
	}
	return err
}

// AllowAll accepts everything, for dev environments without platform credentials.
type AllowAll struct{}

// Check implements Checker.
func (AllowAll) Check(ctx context.Context, openID, text string) error {
	_ = ctx
	_ = openID
	_ = text
	return nil
}

var (
	_ Checker = (*WeChatChecker)(nil)
	_ Checker = AllowAll{}
)
