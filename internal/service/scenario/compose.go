package scenario

import "fmt"

// Compose prefixes the speaker's text with a bracketed scenario tag so the
// scorer sees the situation being responded to.
func Compose(label, prompt, text string) string {
	switch {
	case label == "" && prompt == "":
		return text
	case prompt == "":
		return fmt.Sprintf("【当前场景：%s】用户发言：%s", label, text)
	case label == "":
		return fmt.Sprintf("【当前场景：%s】用户发言：%s", prompt, text)
	default:
		return fmt.Sprintf("【当前场景：%s - %s】用户发言：%s", label, prompt, text)
	}
}
