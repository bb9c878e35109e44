package htmlutil

import (
	"strings"

	"github.com/k3a/html2text"
)

var markdown = strings.NewReplacer("**", "", "__", "", "`", "", "#", "")

// ToText reduces HTML or light markdown to plain text on a single line.
// Entities are decoded and tags stripped by a real HTML parser.
func ToText(s string) string {
	s = html2text.HTML2Text(s)
	s = markdown.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
