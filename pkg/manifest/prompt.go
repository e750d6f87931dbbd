package manifest

import "strings"

// PrependText is the fixed style prefix prepended to every prompt at
// generation time. The survey UI hides it behind a toggle so raters
// judge against the core prompt.
const PrependText = "2D animation / anime style, cel-shaded, clean bold outlines, SFW, family-friendly, " +
	"vibrant but not neon, avoid photorealistic textures. Unless specified, do not add " +
	"on-image text or watermarks. Emphasize clarity and readability. When a phrase appears " +
	"in quotes below, render the phrase in the image without quotation marks. Render all " +
	"on-image text in UPPERCASE ASCII (no curly punctuation). Do not reference or imitate " +
	"the style of any living artist or copyrighted characters. "

// SplitPrompt separates the style prefix from the core prompt.
// If full does not start with the prefix, the core is full itself.
func SplitPrompt(full string) (prepend, core string) {
	if strings.HasPrefix(full, PrependText) {
		return PrependText, strings.TrimLeft(full[len(PrependText):], " \t\n")
	}
	return PrependText, full
}
