package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/russross/blackfriday/v2"
)

var narrativeCache = newRenderCache(32)

// Narrative 把后端生成的 Markdown 叙述渲染成终端文本
// width <= 0 时不折行
func Narrative(md string, width int) string {
	md = strings.TrimSpace(md)
	if md == "" {
		return ""
	}

	key := cacheKey{width: width, text: md}
	if out, ok := narrativeCache.get(key); ok {
		return out
	}

	r := &narrativeRenderer{width: width, st: defaultStyles}
	parser := blackfriday.New(blackfriday.WithExtensions(blackfriday.CommonExtensions))
	parser.Parse([]byte(md)).Walk(r.visit)
	out := strings.TrimRight(r.out.String(), "\n")

	narrativeCache.add(key, out)
	return out
}

type narrativeStyles struct {
	heading    lipgloss.Style
	subheading lipgloss.Style
	strong     lipgloss.Style
	emph       lipgloss.Style
	del        lipgloss.Style
	link       lipgloss.Style
	code       lipgloss.Style
	bullet     lipgloss.Style
	quote      lipgloss.Style
	rule       lipgloss.Style
}

var defaultStyles = narrativeStyles{
	heading:    lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true),
	subheading: lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true),
	strong:     lipgloss.NewStyle().Bold(true),
	emph:       lipgloss.NewStyle().Italic(true),
	del:        lipgloss.NewStyle().Strikethrough(true),
	link:       lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Underline(true),
	code:       lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Background(lipgloss.Color("236")),
	bullet:     lipgloss.NewStyle().Foreground(lipgloss.Color("78")),
	quote:      lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	rule:       lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
}

type listState struct {
	ordered bool
	index   int
	prefix  string
	pad     string
}

type narrativeRenderer struct {
	width int
	st    narrativeStyles

	out    strings.Builder
	inline strings.Builder

	strong, emph, del, link int
	quote                   int
	lists                   []*listState
}

func (r *narrativeRenderer) visit(node *blackfriday.Node, entering bool) blackfriday.WalkStatus {
	switch node.Type {
	case blackfriday.Heading:
		if entering {
			r.inline.Reset()
			break
		}
		style := r.st.subheading
		if node.Level <= 2 {
			style = r.st.heading
		}
		r.block(style.Render(r.takeInline()))

	case blackfriday.Paragraph:
		if entering {
			r.inline.Reset()
			break
		}
		r.paragraph(r.takeInline())

	case blackfriday.List:
		if entering {
			r.lists = append(r.lists, &listState{ordered: node.ListFlags&blackfriday.ListTypeOrdered != 0})
			break
		}
		r.lists = r.lists[:len(r.lists)-1]
		if len(r.lists) == 0 {
			r.out.WriteString("\n")
		}

	case blackfriday.Item:
		if !entering || len(r.lists) == 0 {
			break
		}
		l := r.lists[len(r.lists)-1]
		l.index++
		marker := "•"
		if l.ordered {
			marker = fmt.Sprintf("%d.", l.index)
		}
		l.prefix = r.st.bullet.Render(marker) + " "
		l.pad = strings.Repeat(" ", lipgloss.Width(l.prefix))

	case blackfriday.BlockQuote:
		if entering {
			r.quote++
		} else {
			r.quote--
		}

	case blackfriday.Strong:
		r.strong += depth(entering)
	case blackfriday.Emph:
		r.emph += depth(entering)
	case blackfriday.Del:
		r.del += depth(entering)
	case blackfriday.Link:
		r.link += depth(entering)

	case blackfriday.Text:
		r.inline.WriteString(r.styleInline(string(node.Literal)))
	case blackfriday.Code:
		r.inline.WriteString(r.st.code.Render(string(node.Literal)))
	case blackfriday.HTMLSpan:
		r.inline.Write(node.Literal)
	case blackfriday.Softbreak:
		r.inline.WriteString(" ")
	case blackfriday.Hardbreak:
		r.inline.WriteString("\n")

	case blackfriday.CodeBlock:
		r.block(r.st.code.Render(strings.TrimRight(string(node.Literal), "\n")))
	case blackfriday.HTMLBlock:
		r.block(strings.TrimRight(string(node.Literal), "\n"))
	case blackfriday.HorizontalRule:
		n := r.available()
		if n <= 0 || n > 40 {
			n = 40
		}
		r.block(r.st.rule.Render(strings.Repeat("─", n)))
	}
	return blackfriday.GoToNext
}

func depth(entering bool) int {
	if entering {
		return 1
	}
	return -1
}

func (r *narrativeRenderer) takeInline() string {
	s := r.inline.String()
	r.inline.Reset()
	return s
}

func (r *narrativeRenderer) styleInline(s string) string {
	if r.strong == 0 && r.emph == 0 && r.del == 0 && r.link == 0 {
		return s
	}
	style := lipgloss.NewStyle()
	if r.link > 0 {
		style = r.st.link
	}
	if r.strong > 0 {
		style = style.Bold(true)
	}
	if r.emph > 0 {
		style = style.Italic(true)
	}
	if r.del > 0 {
		style = style.Strikethrough(true)
	}
	return style.Render(s)
}

// available 扣除引用前缀后的可用宽度
func (r *narrativeRenderer) available() int {
	if r.width <= 0 {
		return 0
	}
	return r.width - 2*r.quote
}

func (r *narrativeRenderer) paragraph(text string) {
	if len(r.lists) == 0 {
		r.block(wrap(text, r.available()))
		return
	}

	l := r.lists[len(r.lists)-1]
	indent := strings.Repeat("  ", len(r.lists)-1)
	prefix := l.prefix
	if prefix == "" {
		prefix = l.pad
	}
	l.prefix = ""

	w := r.available()
	if w > 0 {
		w -= len(indent) + len(l.pad)
		if w < 10 {
			w = 10
		}
	}
	lines := strings.Split(wrap(text, w), "\n")
	for i, line := range lines {
		if i == 0 {
			lines[i] = indent + prefix + line
		} else {
			lines[i] = indent + l.pad + line
		}
	}
	r.writeLines(lines)
}

// block 输出一个块并空一行
func (r *narrativeRenderer) block(s string) {
	r.writeLines(strings.Split(s, "\n"))
	r.out.WriteString("\n")
}

func (r *narrativeRenderer) writeLines(lines []string) {
	bar := ""
	if r.quote > 0 {
		bar = r.st.quote.Render(strings.Repeat("│ ", r.quote))
	}
	for _, line := range lines {
		r.out.WriteString(bar)
		r.out.WriteString(line)
		r.out.WriteString("\n")
	}
}

// wrap 按宽度折行，去掉 lipgloss 补齐的尾部空格
func wrap(s string, width int) string {
	if width <= 0 {
		return s
	}
	lines := strings.Split(lipgloss.NewStyle().Width(width).Render(s), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " ")
	}
	return strings.Join(lines, "\n")
}
